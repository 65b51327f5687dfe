// Package di provides dependency injection configuration for the RecoRead client.
package di

import (
	"github.com/samber/do/v2"

	"github.com/recoread/recoread-client/internal/config"
	"github.com/recoread/recoread-client/internal/di/providers"
	"github.com/recoread/recoread-client/internal/logger"
)

// NewContainer creates and configures the DI container with all providers.
// Services are lazy: a command only opens the storage it invokes.
func NewContainer(cfg *config.Config) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, cfg)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideCredentials)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideReadingCache)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Backend
	do.Provide(injector, providers.ProvideClient)

	// Server
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes the services every command needs.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	_, err := do.Invoke[*providers.ClientHandle](injector)
	return err
}

// BootstrapServer initializes the companion server stack and starts listening.
func BootstrapServer(injector *do.RootScope) (*providers.HTTPServerHandle, error) {
	if err := Bootstrap(injector); err != nil {
		return nil, err
	}
	return do.Invoke[*providers.HTTPServerHandle](injector)
}

// Shutdown stops every invoked service, dependents first.
func Shutdown(injector *do.RootScope) error {
	report := injector.Shutdown()
	if report == nil || report.Succeed {
		return nil
	}
	return report
}
