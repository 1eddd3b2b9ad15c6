package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGrantExpirySweep deactivates role grants whose expiry has passed.
	TaskGrantExpirySweep = "rbac:grants:expire"
)

// GrantExpiryPayload parameterises a sweep run.
type GrantExpiryPayload struct {
	// Grace delays deactivation past the stored expiry.
	Grace time.Duration `json:"grace,omitempty"`
}

// NewGrantExpiryTask constructs the sweep task.
func NewGrantExpiryTask(payload GrantExpiryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: marshal grant expiry payload: %w", err)
	}
	return asynq.NewTask(TaskGrantExpirySweep, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
