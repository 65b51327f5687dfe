package providers

import (
	"github.com/samber/do/v2"

	"github.com/recoread/recoread-client/internal/catalog"
	"github.com/recoread/recoread-client/internal/client"
	"github.com/recoread/recoread-client/internal/config"
	"github.com/recoread/recoread-client/internal/credential"
	"github.com/recoread/recoread-client/internal/logger"
)

// ClientHandle wraps the backend client with shutdown capability.
type ClientHandle struct {
	*client.Client
}

// Shutdown implements do.Shutdowner.
func (h *ClientHandle) Shutdown() {
	h.Close()
}

// ProvideClient provides the backend HTTP client.
func ProvideClient(i do.Injector) (*ClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	creds := do.MustInvoke[credential.Store](i)

	c, err := client.New(client.Options{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.API.Timeout,
		Credentials:     creds,
		Logger:          log.Logger,
		SummaryCooldown: cfg.Summary.Cooldown,
		OnUnauthorized: func() {
			log.Warn("Session expired, credential cleared")
		},
	})
	if err != nil {
		return nil, err
	}

	return &ClientHandle{Client: c}, nil
}

// CatalogOptions maps the search settings onto controller options.
func CatalogOptions(cfg *config.Config, log *logger.Logger) catalog.Options {
	return catalog.Options{
		Debounce:    cfg.Search.Debounce,
		CacheTTL:    cfg.Search.CacheTTL,
		MaxAttempts: cfg.Search.RetryAttempts,
		RetryBase:   cfg.Search.RetryBase,
		MaxResults:  cfg.Search.MaxResults,
		Logger:      log.Logger,
	}
}
