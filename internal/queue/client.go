package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/keyxmakerx/catalog/internal/config"
)

// Enqueuer is the producer contract the upload path depends on.
type Enqueuer interface {
	EnqueueDerivatives(ctx context.Context, p DerivativePayload) (taskID string, err error)
}

// RedisOpt parses a redis:// URL into asynq connection options.
func RedisOpt(url string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL for queue: %w", err)
	}
	return opt, nil
}

// Client enqueues derivative jobs with the configured retry policy.
type Client struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

// NewClient creates a queue producer. MaxAttempts counts the first delivery,
// so asynq's retry budget is one less.
func NewClient(opt asynq.RedisConnOpt, cfg config.QueueConfig) *Client {
	return &Client{
		client:   asynq.NewClient(opt),
		queue:    cfg.Name,
		maxRetry: max(cfg.MaxAttempts-1, 0),
	}
}

// EnqueueDerivatives places one job on the queue and returns its task ID.
func (c *Client) EnqueueDerivatives(ctx context.Context, p DerivativePayload) (string, error) {
	task, err := NewDerivativeTask(p)
	if err != nil {
		return "", err
	}

	taskID := uuid.NewString()
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(c.maxRetry),
	)
	if err != nil {
		return "", fmt.Errorf("enqueueing derivative job for media %s: %w", p.MediaID, err)
	}

	slog.Debug("derivative job enqueued",
		slog.String("task_id", info.ID),
		slog.String("media_id", p.MediaID),
		slog.String("product_id", p.ProductID),
		slog.String("queue", info.Queue),
	)
	return info.ID, nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
