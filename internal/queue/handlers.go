package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Deleter removes one stored audio file.
type Deleter interface {
	Delete(ctx context.Context, name string) error
}

// Sweeper removes stored audio older than a given age.
type Sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

// AudioWorker handles audio housekeeping tasks.
type AudioWorker struct {
	store   Deleter
	sweeper Sweeper // nil when the backend cannot list files
}

func NewAudioWorker(store Deleter, sweeper Sweeper) *AudioWorker {
	return &AudioWorker{store: store, sweeper: sweeper}
}

func (w *AudioWorker) Expire(ctx context.Context, t *asynq.Task) error {
	var payload AudioExpirePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	if err := w.store.Delete(ctx, payload.Name); err != nil {
		return fmt.Errorf("expire %s: %w", payload.Name, err)
	}

	slog.Info("audio expired", "file", payload.Name)
	return nil
}

func (w *AudioWorker) Sweep(ctx context.Context, t *asynq.Task) error {
	if w.sweeper == nil {
		return nil
	}

	var payload AudioSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.MaxAgeSeconds <= 0 {
		return fmt.Errorf("sweep max age must be positive: %w", asynq.SkipRetry)
	}

	removed, err := w.sweeper.Sweep(ctx, time.Duration(payload.MaxAgeSeconds)*time.Second)
	if err != nil {
		return fmt.Errorf("sweep audio: %w", err)
	}

	slog.Info("audio sweep finished", "removed", removed)
	return nil
}

// NewMux routes task types to the audio worker.
func NewMux(w *AudioWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeAudioExpire, w.Expire)
	mux.HandleFunc(TypeAudioSweep, w.Sweep)
	return mux
}
