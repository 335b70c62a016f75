package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/daribar/best-options-service/internal/storage"
)

// SnapshotWriter persists pipeline stage payloads as JSON. Persistence is a
// debugging aid: failures are logged and never affect the request. A nil
// writer is valid and does nothing.
type SnapshotWriter struct {
	backend storage.Storage
	logger  zerolog.Logger
	now     func() time.Time
}

// NewSnapshotWriter creates a snapshot writer over the given backend.
func NewSnapshotWriter(backend storage.Storage) *SnapshotWriter {
	return &SnapshotWriter{
		backend: backend,
		logger:  log.With().Str("component", "snapshots").Logger(),
		now:     time.Now,
	}
}

// Save stores one stage payload under the request's snapshot key.
func (w *SnapshotWriter) Save(ctx context.Context, requestID, stage string, payload any) {
	if w == nil || w.backend == nil {
		return
	}

	content, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		w.logger.Warn().Err(err).Str("stage", stage).Msg("Failed to encode stage snapshot")
		return
	}

	savedAt := w.now()
	key := storage.BuildSnapshotKey(requestID, stage, savedAt)
	metadata := &storage.Metadata{
		RequestID: requestID,
		Stage:     stage,
		SavedAt:   savedAt,
	}

	if err := w.backend.Put(ctx, key, content, metadata); err != nil {
		w.logger.Warn().Err(err).Str("stage", stage).Str("key", key).
			Msg("Failed to persist stage snapshot")
		return
	}

	w.logger.Debug().Str("stage", stage).Str("key", key).Msg("Persisted stage snapshot")
}
