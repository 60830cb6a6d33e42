package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/medportal/internal/models"
)

const maxGenerateAttempts = 5

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Repository() Repository { return s.repo }

// Generate creates an account for dob and returns its number. A number that
// is already taken is regenerated.
func (s *Service) Generate(ctx context.Context, dob string) (string, error) {
	if dob == "" {
		return "", fmt.Errorf("date of birth is required")
	}

	for i := 0; i < maxGenerateAttempts; i++ {
		number, err := NewAccountNumber()
		if err != nil {
			return "", fmt.Errorf("generate account number: %w", err)
		}

		acc := &models.Account{
			DOBHash:      Hash(dob),
			CombinedHash: CombinedHash(dob, number),
			CreatedAt:    s.now().UTC(),
			Documents:    []models.Document{},
		}
		err = s.repo.Create(ctx, number, acc)
		if errors.Is(err, ErrExists) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("save account: %w", err)
		}

		slog.Info("account created", "account", Mask(number))
		return number, nil
	}
	return "", fmt.Errorf("generate account number: %d collisions", maxGenerateAttempts)
}

// Authenticate loads the account and checks the credential. Unknown accounts
// and hash mismatches both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, dob, accountNumber string) (*models.Account, error) {
	acc, err := s.repo.Get(ctx, accountNumber)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if CombinedHash(dob, accountNumber) != acc.CombinedHash {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}
