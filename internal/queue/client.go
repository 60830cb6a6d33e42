package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/medportal/internal/config"
	"github.com/nikhilbhutani/medportal/internal/document"
)

// Client enqueues processing jobs on Redis for cmd/worker.
type Client struct {
	client  *asynq.Client
	timeout time.Duration
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig, jobTimeout time.Duration) *Client {
	return &Client{
		client:  asynq.NewClient(RedisOpt(cfg)),
		timeout: jobTimeout,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueProcess implements document.Queue.
func (c *Client) EnqueueProcess(ctx context.Context, job document.Job) error {
	task, err := NewDocumentProcessTask(job)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(3),
		asynq.Timeout(c.timeout),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeDocumentProcess, err)
	}
	return nil
}
