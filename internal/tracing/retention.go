// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tombee/tracebridge/internal/tracing/storage"
)

// RetentionManager deletes stored traces older than a maximum age.
type RetentionManager struct {
	store           *storage.SQLiteStore
	maxAge          time.Duration
	cleanupInterval time.Duration
	logger          *slog.Logger
	stopCh          chan struct{}
	doneCh          chan struct{}
	stopOnce        sync.Once
}

// NewRetentionManager creates a new retention manager.
// maxAge is how long to keep traces before deletion.
// cleanupInterval is how often to run the cleanup job.
func NewRetentionManager(store *storage.SQLiteStore, maxAge, cleanupInterval time.Duration, logger *slog.Logger) *RetentionManager {
	if maxAge == 0 {
		maxAge = 7 * 24 * time.Hour
	}
	if cleanupInterval == 0 {
		cleanupInterval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RetentionManager{
		store:           store,
		maxAge:          maxAge,
		cleanupInterval: cleanupInterval,
		logger:          logger,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Start begins the retention cleanup loop in a background goroutine.
func (r *RetentionManager) Start() {
	go r.run()
}

// Stop stops the loop and waits for an in-progress cleanup to finish.
// It must only be called after Start.
func (r *RetentionManager) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

func (r *RetentionManager) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	r.cleanup()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

func (r *RetentionManager) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := r.CleanupNow(ctx); err != nil {
		r.logger.Error("failed to clean up old traces", "error", err)
	}
}

// CleanupNow deletes expired traces and returns how many were removed.
func (r *RetentionManager) CleanupNow(ctx context.Context) (int64, error) {
	before := time.Now().Add(-r.maxAge)

	deleted, err := r.store.DeleteTracesOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}

	if deleted > 0 {
		r.logger.Info("cleaned up old traces",
			"count", deleted,
			"before", before.Format(time.RFC3339))
	}
	return deleted, nil
}

// retainedExporter stops its retention loop before closing the store.
type retainedExporter struct {
	*storage.Exporter
	retention *RetentionManager
}

func (e *retainedExporter) Shutdown(ctx context.Context) error {
	e.retention.Stop()
	return e.Exporter.Shutdown(ctx)
}
