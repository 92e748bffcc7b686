package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/biblioapp/biblio/internal/calibre"
	"github.com/biblioapp/biblio/internal/config"
	"github.com/biblioapp/biblio/internal/logger"
	"github.com/biblioapp/biblio/internal/state"
)

// StateStoreHandle wraps the view state database with shutdown capability.
type StateStoreHandle struct {
	*state.BadgerStore
}

// Shutdown implements do.Shutdownable.
func (h *StateStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStateStore provides the persisted view state database.
func ProvideStateStore(i do.Injector) (*StateStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.StatePath()
	store, err := state.OpenBadger(path, log.Logger, state.Options{SessionTTL: cfg.Browse.SessionTTL})
	if err != nil {
		return nil, err
	}

	log.Info("State database initialized", "path", path, "session_ttl", cfg.Browse.SessionTTL)

	return &StateStoreHandle{BadgerStore: store}, nil
}

// CatalogSourceHandle wraps the Calibre record source with shutdown capability.
type CatalogSourceHandle struct {
	*calibre.Source
}

// Shutdown implements do.Shutdownable.
func (h *CatalogSourceHandle) Shutdown() error {
	return h.Close()
}

// ProvideCatalogSource provides the read-only Calibre record source.
func ProvideCatalogSource(i do.Injector) (*CatalogSourceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	source := calibre.NewSource(calibre.NewScanner(cfg.Library.Path, log.Logger), log.Logger)

	// An unreadable root is reported through the engine status, not a failed start.
	libraries, err := source.Rescan(context.Background())
	if err != nil {
		log.Warn("Initial library scan failed", "path", cfg.Library.Path, "error", err)
	} else {
		log.Info("Libraries found", "path", cfg.Library.Path, "count", len(libraries))
	}

	return &CatalogSourceHandle{Source: source}, nil
}
