package models

import "time"

// ModelUsageLog is one model attempt made while processing a document.
type ModelUsageLog struct {
	ID          int64     `json:"id" db:"id"`
	DocumentID  string    `json:"document_id" db:"document_id"`
	Provider    string    `json:"provider" db:"provider"`
	Model       string    `json:"model" db:"model"`
	AttemptNo   int       `json:"attempt_no" db:"attempt_no"`
	Success     bool      `json:"success" db:"success"`
	Error       string    `json:"error,omitempty" db:"error"`
	TotalTokens int       `json:"total_tokens" db:"total_tokens"`
	CostUSD     float64   `json:"cost_usd" db:"cost_usd"`
	LatencyMs   int64     `json:"latency_ms" db:"latency_ms"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
