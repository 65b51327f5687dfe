package providers

import (
	"github.com/samber/do/v2"

	"github.com/recoread/recoread-client/internal/config"
	"github.com/recoread/recoread-client/internal/logger"
)

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.Logger.Level == "debug",
		Environment: cfg.App.Environment,
	})

	log.Debug("Starting RecoRead client",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"api", cfg.API.BaseURL,
		"data_dir", cfg.Storage.DataDir,
		"cache_backend", cfg.Storage.CacheBackend,
	)

	return log, nil
}
