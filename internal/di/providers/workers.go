package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/biblioapp/biblio/internal/config"
	"github.com/biblioapp/biblio/internal/logger"
	"github.com/biblioapp/biblio/internal/watcher"
)

// LibraryWatcherHandle wraps the metadata.db watcher with shutdown capability.
// Watcher is nil when watching is disabled.
type LibraryWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *LibraryWatcherHandle) Shutdown() error {
	h.cancel()
	if h.Watcher == nil {
		return nil
	}
	return h.Watcher.Stop()
}

// ProvideLibraryWatcher provides the watcher that reloads sessions when a library changes.
func ProvideLibraryWatcher(i do.Injector) (*LibraryWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sessions := do.MustInvoke[*SessionManagerHandle](i)

	ctx, cancel := context.WithCancel(context.Background())

	if !cfg.Watch.Enabled {
		log.Info("Library watcher disabled by configuration")
		return &LibraryWatcherHandle{cancel: cancel}, nil
	}

	w, err := watcher.New(log.Component("watcher"), watcher.Options{SettleDelay: cfg.Watch.SettleDelay})
	if err != nil {
		cancel()
		return nil, err
	}

	if err := w.Watch(cfg.Library.Path); err != nil {
		// A missing root is not fatal: the API reports it and a manual refresh retries.
		log.Warn("Library watcher unavailable", "path", cfg.Library.Path, "error", err)
		_ = w.Stop()
		return &LibraryWatcherHandle{cancel: cancel}, nil
	}

	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("Library watcher error", "error", err)
		}
	}()

	go sessions.Follow(ctx, w.Events())

	go func() {
		for {
			select {
			case err := <-w.Errors():
				log.Warn("library watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Library watcher started", "path", cfg.Library.Path, "settle_delay", cfg.Watch.SettleDelay)

	return &LibraryWatcherHandle{Watcher: w, cancel: cancel}, nil
}

// StateGCJob periodically reclaims space in the state database.
type StateGCJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *StateGCJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideStateGCJob provides the periodic value log garbage collection job.
func ProvideStateGCJob(i do.Injector) (*StateGCJob, error) {
	store := do.MustInvoke[*StateStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				start := time.Now()
				store.CollectGarbage()
				log.Debug("State garbage collection completed", "duration", time.Since(start))
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("State garbage collection job started")

	return &StateGCJob{cancel: cancel}, nil
}
