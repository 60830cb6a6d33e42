package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/medportal/internal/models"
)

const accountsTable = "accounts"

var accountColumns = []string{"account_number", "dob_hash", "combined_hash", "created_at", "documents", "revision"}

type accountRow struct {
	AccountNumber string            `db:"account_number"`
	DOBHash       string            `db:"dob_hash"`
	CombinedHash  string            `db:"combined_hash"`
	CreatedAt     time.Time         `db:"created_at"`
	Documents     []models.Document `db:"documents"`
	Revision      int64             `db:"revision"`
}

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// PostgresRepository stores one row per account with the documents as JSONB.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, accountNumber string) (*models.Account, error) {
	query, args, err := psql().Select(accountColumns...).From(accountsTable).
		Where(sq.Eq{"account_number": accountNumber}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build account query: %w", err)
	}

	var row accountRow
	if err := pgxscan.Get(ctx, r.pool, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	docs := row.Documents
	if docs == nil {
		docs = []models.Document{}
	}
	return &models.Account{
		DOBHash:      row.DOBHash,
		CombinedHash: row.CombinedHash,
		CreatedAt:    row.CreatedAt,
		Documents:    docs,
		Revision:     row.Revision,
	}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, accountNumber string, acc *models.Account) error {
	if acc.Documents == nil {
		acc.Documents = []models.Document{}
	}
	query, args, err := psql().Insert(accountsTable).
		Columns(accountColumns...).
		Values(accountNumber, acc.DOBHash, acc.CombinedHash, acc.CreatedAt, acc.Documents, 1).
		ToSql()
	if err != nil {
		return fmt.Errorf("build account insert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	acc.Revision = 1
	return nil
}

func (r *PostgresRepository) Put(ctx context.Context, accountNumber string, acc *models.Account) error {
	docs := acc.Documents
	if docs == nil {
		docs = []models.Document{}
	}
	query, args, err := psql().Update(accountsTable).
		Set("documents", docs).
		Set("revision", sq.Expr("revision + 1")).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"account_number": accountNumber, "revision": acc.Revision}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build account update: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, accountNumber); err != nil {
			return err
		}
		return ErrConflict
	}
	acc.Revision++
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, accountNumber string, fn func(*models.Account) error) (*models.Account, error) {
	return updateWithRetry(ctx, r, accountNumber, fn)
}

func (r *PostgresRepository) List(ctx context.Context) ([]string, error) {
	query, args, err := psql().Select("account_number").From(accountsTable).
		OrderBy("account_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build account list: %w", err)
	}

	var out []string
	if err := pgxscan.Select(ctx, r.pool, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}
