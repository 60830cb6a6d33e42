package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/medportal/internal/document"
)

const TypeDocumentProcess = "document:process"

// DocumentProcessPayload is the wire form of a document.Job.
type DocumentProcessPayload struct {
	DocumentID    string `json:"document_id"`
	AccountNumber string `json:"account_number"`
}

func NewDocumentProcessTask(job document.Job, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(DocumentProcessPayload(job))
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeDocumentProcess, data, opts...), nil
}

// ParseDocumentProcessTask decodes a task payload. A malformed payload can
// never succeed, so the error skips retries.
func ParseDocumentProcessTask(t *asynq.Task) (document.Job, error) {
	var p DocumentProcessPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return document.Job{}, fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.DocumentID == "" || p.AccountNumber == "" {
		return document.Job{}, fmt.Errorf("incomplete payload: %w", asynq.SkipRetry)
	}
	return document.Job(p), nil
}
