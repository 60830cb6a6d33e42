package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikhilbhutani/medportal/internal/models"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrExists             = errors.New("account already exists")
	ErrConflict           = errors.New("account was modified concurrently")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// maxUpdateAttempts bounds the compare-and-swap retry loop in Update.
const maxUpdateAttempts = 8

// Repository is the account store. Put is a compare-and-swap on
// Account.Revision: it fails with ErrConflict when the stored revision moved
// since the account was read, and bumps the revision on success.
type Repository interface {
	Get(ctx context.Context, accountNumber string) (*models.Account, error)
	Create(ctx context.Context, accountNumber string, acc *models.Account) error
	Put(ctx context.Context, accountNumber string, acc *models.Account) error
	// Update loads the account, applies fn and persists the result, retrying
	// on ErrConflict. An error from fn aborts without writing.
	Update(ctx context.Context, accountNumber string, fn func(*models.Account) error) (*models.Account, error)
	List(ctx context.Context) ([]string, error)
}

type getPutter interface {
	Get(ctx context.Context, accountNumber string) (*models.Account, error)
	Put(ctx context.Context, accountNumber string, acc *models.Account) error
}

func updateWithRetry(ctx context.Context, r getPutter, accountNumber string, fn func(*models.Account) error) (*models.Account, error) {
	for attempt := 1; ; attempt++ {
		acc, err := r.Get(ctx, accountNumber)
		if err != nil {
			return nil, err
		}
		if err := fn(acc); err != nil {
			return nil, err
		}
		err = r.Put(ctx, accountNumber, acc)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		if attempt == maxUpdateAttempts {
			return nil, fmt.Errorf("update account after %d attempts: %w", attempt, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Mask hides all but the first four characters of an account number for
// logging.
func Mask(accountNumber string) string {
	if len(accountNumber) <= 4 {
		return "****"
	}
	return accountNumber[:4] + "****"
}
