// Package di provides dependency injection configuration for the Biblio server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/biblioapp/biblio/internal/config"
	"github.com/biblioapp/biblio/internal/di/providers"
	"github.com/biblioapp/biblio/internal/logger"
	"github.com/biblioapp/biblio/internal/metrics"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Storage layer
	do.Provide(injector, providers.ProvideStateStore)
	do.Provide(injector, providers.ProvideCatalogSource)

	// Browse sessions
	do.Provide(injector, providers.ProvideSessionManager)

	// Workers
	do.Provide(injector, providers.ProvideLibraryWatcher)
	do.Provide(injector, providers.ProvideStateGCJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services. Errors from providers come back instead of panicking.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)

	if _, err := do.Invoke[*providers.StateStoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.CatalogSourceHandle](injector)
	_ = do.MustInvoke[*providers.SessionManagerHandle](injector)

	if _, err := do.Invoke[*providers.LibraryWatcherHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.StateGCJob](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
