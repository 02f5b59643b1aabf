package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/go-marks/pkg/queue"
)

// Task type names
const (
	TypeFetchMetadata = "bookmark:fetch_metadata"
	TypeReminderTick  = "reminders:tick"
)

// FetchMetadataPayload names the bookmark whose page should be read.
// Force overwrites a title and description the user already set.
type FetchMetadataPayload struct {
	BookmarkID uuid.UUID `json:"bookmark_id"`
	Force      bool      `json:"force,omitempty"`
}

func NewFetchMetadataTask(payload FetchMetadataPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeFetchMetadata, data,
		asynq.Queue(queue.QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
	), nil
}

// ReminderTickPayload is empty - the tick checks every schedule
type ReminderTickPayload struct{}

func NewReminderTickTask() *asynq.Task {
	return asynq.NewTask(TypeReminderTick, nil, asynq.Queue(queue.QueueCritical))
}
