package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/hugh/go-marks/internal/metadata"
	"github.com/hugh/go-marks/internal/reminders"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PageFetcher reads metadata for a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*metadata.Page, error)
}

type Handler struct {
	db        *gorm.DB
	logger    *slog.Logger
	fetcher   PageFetcher
	reminders *reminders.Service
}

func NewHandler(db *gorm.DB, logger *slog.Logger, fetcher PageFetcher) *Handler {
	return &Handler{
		db:        db,
		logger:    logger,
		fetcher:   fetcher,
		reminders: reminders.NewService(db, logger),
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeFetchMetadata, h.HandleFetchMetadata)
	mux.HandleFunc(TypeReminderTick, h.HandleReminderTick)
}

func (h *Handler) HandleFetchMetadata(ctx context.Context, t *asynq.Task) error {
	var payload FetchMetadataPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	var bookmark models.Bookmark
	if err := h.db.WithContext(ctx).First(&bookmark, "id = ?", payload.BookmarkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Deleted before the worker got to it.
			h.logger.Info("bookmark gone, skipping metadata fetch", "bookmark_id", payload.BookmarkID)
			return nil
		}
		return fmt.Errorf("loading bookmark: %w", err)
	}

	h.logger.Info("fetching metadata",
		"bookmark_id", bookmark.ID,
		"url", bookmark.URL,
	)

	page, err := h.fetcher.Fetch(ctx, bookmark.URL)
	if err != nil {
		if errors.Is(err, metadata.ErrUnsupportedScheme) || errors.Is(err, metadata.ErrNotHTML) {
			h.logger.Info("metadata not available", "bookmark_id", bookmark.ID, "reason", err)
			return h.markFetched(ctx, &bookmark)
		}
		h.logger.Warn("metadata fetch failed", "bookmark_id", bookmark.ID, "error", err)
		return err
	}

	return h.applyPage(ctx, &bookmark, page, payload.Force)
}

func (h *Handler) applyPage(ctx context.Context, bookmark *models.Bookmark, page *metadata.Page, force bool) error {
	raw, err := json.Marshal(page.Raw)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"favicon":             page.Favicon,
		"image":               page.Image,
		"site_name":           page.SiteName,
		"metadata":            datatypes.JSON(raw),
		"metadata_fetched_at": now,
	}
	if force || bookmark.Title == "" {
		updates["title"] = page.Title
	}
	if force || bookmark.Description == "" {
		updates["description"] = page.Description
	}

	if err := h.db.WithContext(ctx).Model(bookmark).Updates(updates).Error; err != nil {
		return fmt.Errorf("saving metadata: %w", err)
	}

	h.logger.Info("metadata saved", "bookmark_id", bookmark.ID, "title", page.Title)
	return nil
}

func (h *Handler) markFetched(ctx context.Context, bookmark *models.Bookmark) error {
	return h.db.WithContext(ctx).Model(bookmark).Update("metadata_fetched_at", time.Now().UTC()).Error
}

func (h *Handler) HandleReminderTick(ctx context.Context, t *asynq.Task) error {
	_, err := h.reminders.FireDue(ctx, 500)
	return err
}
