// Package queue is the producer side of the derivative job queue and the
// operator view over dead jobs. Jobs are asynq tasks stored in Redis, which
// gives at-least-once delivery, exponential retry and an archived (dead)
// state once attempts run out.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeDerivatives is the task type for "generate small/medium/large for one
// media item".
const TypeDerivatives = "media:derivatives"

// ErrInvalidPayload is returned for task payloads that cannot be processed
// no matter how often they are redelivered.
var ErrInvalidPayload = errors.New("queue: invalid payload")

// DerivativePayload is the wire body of a derivative job.
type DerivativePayload struct {
	ProductID    string `json:"productId"`
	MediaID      string `json:"mediaId"`
	OriginalPath string `json:"originalPath"`
}

// Validate reports the first missing field.
func (p DerivativePayload) Validate() error {
	switch {
	case p.ProductID == "":
		return fmt.Errorf("%w: missing productId", ErrInvalidPayload)
	case p.MediaID == "":
		return fmt.Errorf("%w: missing mediaId", ErrInvalidPayload)
	case p.OriginalPath == "":
		return fmt.Errorf("%w: missing originalPath", ErrInvalidPayload)
	}
	return nil
}

// NewDerivativeTask builds the asynq task for a payload. Retry options are
// attached by Client at enqueue time.
func NewDerivativeTask(p DerivativePayload) (*asynq.Task, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling derivative payload: %w", err)
	}
	return asynq.NewTask(TypeDerivatives, b), nil
}

// ParseDerivativePayload decodes and validates a task body.
func ParseDerivativePayload(t *asynq.Task) (DerivativePayload, error) {
	var p DerivativePayload
	if t.Type() != TypeDerivatives {
		return p, fmt.Errorf("%w: unexpected task type %q", ErrInvalidPayload, t.Type())
	}
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, p.Validate()
}
