package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/biblioapp/biblio/internal/config"
	"github.com/biblioapp/biblio/internal/logger"
	"github.com/biblioapp/biblio/internal/metrics"
	"github.com/biblioapp/biblio/internal/session"
)

// ProvideMetrics provides the Prometheus collectors.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}

// SessionManagerHandle wraps the session manager and its eviction loop.
type SessionManagerHandle struct {
	*session.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SessionManagerHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideSessionManager provides the browse session manager.
func ProvideSessionManager(i do.Injector) (*SessionManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	source := do.MustInvoke[*CatalogSourceHandle](i)
	store := do.MustInvoke[*StateStoreHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	manager := session.NewManager(source.Source, store.BadgerStore, log.Component("browse"), session.Options{
		Metrics:     m,
		Rescanner:   source.Source,
		IdleTimeout: cfg.Browse.IdleTimeout,
		PageSize:    cfg.Browse.PageSize,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Run(ctx)

	log.Info("Session manager started", "idle_timeout", cfg.Browse.IdleTimeout, "page_size", cfg.Browse.PageSize)

	return &SessionManagerHandle{Manager: manager, cancel: cancel}, nil
}
