package audit

import (
	"testing"
	"time"

	"github.com/nikhilbhutani/medportal/internal/llm"
)

func TestToUsageLog(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	rec := toUsageLog(llm.Attempt{
		DocumentID:   "d1",
		ModelID:      "qwen/qwen-2.5-vl-72b-instruct",
		Provider:     "openrouter",
		AttemptNo:    2,
		Error:        "timeout",
		TokensUsed:   0,
		CostEstimate: 0,
		ElapsedMs:    30000,
		At:           at,
	})

	if rec.Model != "qwen/qwen-2.5-vl-72b-instruct" || rec.AttemptNo != 2 || rec.Success || rec.Error != "timeout" {
		t.Errorf("record = %+v", rec)
	}
	if rec.LatencyMs != 30000 || !rec.CreatedAt.Equal(at) {
		t.Errorf("timing = %d %v", rec.LatencyMs, rec.CreatedAt)
	}
}
