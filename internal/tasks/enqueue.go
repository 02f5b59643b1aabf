package tasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Enqueuer puts bookmark work on the queue.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) EnqueueFetch(ctx context.Context, bookmarkID uuid.UUID, force bool) error {
	task, err := NewFetchMetadataTask(FetchMetadataPayload{BookmarkID: bookmarkID, Force: force})
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueueing metadata fetch: %w", err)
	}
	return nil
}
