package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/keyxmakerx/catalog/internal/apperror"
)

// DeadJob is an archived derivative job awaiting operator attention.
type DeadJob struct {
	TaskID       string            `json:"taskId"`
	Payload      DerivativePayload `json:"payload"`
	Retried      int               `json:"retried"`
	MaxRetry     int               `json:"maxRetry"`
	LastError    string            `json:"lastError"`
	LastFailedAt time.Time         `json:"lastFailedAt"`
}

// DeadJobs is the operator contract the HTTP layer depends on.
type DeadJobs interface {
	ListDead(page, size int) ([]DeadJob, error)
	RetryDead(taskID string) error
}

// Inspector lists and re-runs archived jobs on one queue.
type Inspector struct {
	insp  *asynq.Inspector
	queue string
}

// NewInspector creates an inspector for the named queue.
func NewInspector(opt asynq.RedisConnOpt, queue string) *Inspector {
	return &Inspector{insp: asynq.NewInspector(opt), queue: queue}
}

// ListDead returns one page of archived jobs, newest failure first as asynq
// orders them. A queue that has never seen a task is reported as empty.
func (i *Inspector) ListDead(page, size int) ([]DeadJob, error) {
	infos, err := i.insp.ListArchivedTasks(i.queue, asynq.Page(page), asynq.PageSize(size))
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return []DeadJob{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing archived tasks: %w", err)
	}

	jobs := make([]DeadJob, 0, len(infos))
	for _, info := range infos {
		jobs = append(jobs, toDeadJob(info))
	}
	return jobs, nil
}

// RetryDead moves an archived job back to pending so a worker picks it up.
func (i *Inspector) RetryDead(taskID string) error {
	err := i.insp.RunTask(i.queue, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return apperror.NewNotFound("job not found")
	}
	if err != nil {
		return fmt.Errorf("re-running task %s: %w", taskID, err)
	}
	return nil
}

// Close releases the Redis connection.
func (i *Inspector) Close() error {
	return i.insp.Close()
}

func toDeadJob(info *asynq.TaskInfo) DeadJob {
	job := DeadJob{
		TaskID:       info.ID,
		Retried:      info.Retried,
		MaxRetry:     info.MaxRetry,
		LastError:    info.LastErr,
		LastFailedAt: info.LastFailedAt,
	}
	// A malformed body is still listed; the payload fields stay empty.
	_ = json.Unmarshal(info.Payload, &job.Payload)
	return job
}
