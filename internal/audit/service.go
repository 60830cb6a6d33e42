package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/medportal/internal/llm"
	"github.com/nikhilbhutani/medportal/internal/models"
)

const usageTable = "model_usage_logs"

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// Service records every model attempt in Postgres and answers usage queries.
type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// RecordAttempt implements llm.UsageRecorder. Write failures are logged; they
// never affect processing.
func (s *Service) RecordAttempt(ctx context.Context, a llm.Attempt) {
	if err := s.LogModelUsage(ctx, toUsageLog(a)); err != nil {
		slog.Warn("record model usage", "document_id", a.DocumentID, "model", a.ModelID, "error", err)
	}
}

func (s *Service) LogModelUsage(ctx context.Context, record models.ModelUsageLog) error {
	query, args, err := psql().Insert(usageTable).
		Columns("document_id", "provider", "model", "attempt_no", "success", "error", "total_tokens", "cost_usd", "latency_ms", "created_at").
		Values(record.DocumentID, record.Provider, record.Model, record.AttemptNo, record.Success, record.Error,
			record.TotalTokens, record.CostUSD, record.LatencyMs, record.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build usage insert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert model usage log: %w", err)
	}
	return nil
}

type UsageSummary struct {
	Provider     string  `json:"provider" db:"provider"`
	Model        string  `json:"model" db:"model"`
	TotalCalls   int     `json:"total_calls" db:"total_calls"`
	Successes    int     `json:"successes" db:"successes"`
	TotalTokens  int     `json:"total_tokens" db:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd" db:"total_cost_usd"`
}

// GetUsageSummary aggregates attempts per model, optionally since a time.
func (s *Service) GetUsageSummary(ctx context.Context, since *time.Time) ([]UsageSummary, error) {
	q := psql().Select(
		"provider",
		"model",
		"COUNT(*) AS total_calls",
		"COUNT(*) FILTER (WHERE success) AS successes",
		"COALESCE(SUM(total_tokens), 0) AS total_tokens",
		"COALESCE(SUM(cost_usd), 0) AS total_cost_usd",
	).From(usageTable)
	if since != nil {
		q = q.Where(sq.GtOrEq{"created_at": *since})
	}
	query, args, err := q.GroupBy("provider", "model").OrderBy("total_cost_usd DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build usage summary: %w", err)
	}

	var out []UsageSummary
	if err := pgxscan.Select(ctx, s.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	return out, nil
}

// LogRecorder writes attempts to the structured log when no database is
// configured.
type LogRecorder struct{}

func (LogRecorder) RecordAttempt(_ context.Context, a llm.Attempt) {
	slog.Info("model attempt",
		"document_id", a.DocumentID,
		"provider", a.Provider,
		"model", a.ModelID,
		"attempt", a.AttemptNo,
		"success", a.Success,
		"tokens", a.TokensUsed,
		"cost_usd", a.CostEstimate,
		"latency_ms", a.ElapsedMs,
	)
}

func toUsageLog(a llm.Attempt) models.ModelUsageLog {
	return models.ModelUsageLog{
		DocumentID:  a.DocumentID,
		Provider:    a.Provider,
		Model:       a.ModelID,
		AttemptNo:   a.AttemptNo,
		Success:     a.Success,
		Error:       a.Error,
		TotalTokens: a.TokensUsed,
		CostUSD:     a.CostEstimate,
		LatencyMs:   a.ElapsedMs,
		CreatedAt:   a.At,
	}
}
