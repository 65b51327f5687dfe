package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/recoread/recoread-client/internal/api"
	"github.com/recoread/recoread-client/internal/config"
	"github.com/recoread/recoread-client/internal/logger"
	"github.com/recoread/recoread-client/internal/readingcache"
	"github.com/recoread/recoread-client/internal/sse"
)

// Version is reported by the companion server's OpenAPI document.
var Version = "dev"

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel    context.CancelFunc
	stopWatch func()
	watched   readingcache.Cache
}

// Shutdown implements do.ShutdownerWithError.
func (h *SSEManagerHandle) Shutdown() error {
	h.stopWatch()
	_ = h.watched.Close()
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager, fed by
// reading-state changes from every cache handle.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	cacheHandle := do.MustInvoke[*ReadingCacheHandle](i)

	// A separate handle, so writes made by the server itself are streamed too.
	watched, err := cacheHandle.Attach()
	if err != nil {
		return nil, err
	}

	manager := sse.NewManager(log.Logger, sse.DefaultHeartbeat)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)
	stop := manager.WatchCache(watched)

	log.Debug("SSE manager started")

	return &SSEManagerHandle{
		Manager:   manager,
		cancel:    cancel,
		stopWatch: stop,
		watched:   watched,
	}, nil
}

// APIServerHandle wraps the companion API handler with shutdown capability.
type APIServerHandle struct {
	*api.Server
}

// Shutdown implements do.Shutdowner.
func (h *APIServerHandle) Shutdown() {
	h.Close()
}

// ProvideAPIServer provides the companion API handler.
func ProvideAPIServer(i do.Injector) (*APIServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	clientHandle := do.MustInvoke[*ClientHandle](i)
	cacheHandle := do.MustInvoke[*ReadingCacheHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	handler := api.NewServer(api.Deps{
		Backend:        clientHandle.Client,
		Cache:          cacheHandle.Cache,
		Index:          indexHandle.Index,
		Events:         sseHandle.Manager,
		Catalog:        CatalogOptions(cfg, log),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Version:        Version,
		Logger:         log.Logger,
	})

	return &APIServerHandle{Server: handler}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server

	// Err receives the error that stopped the server, if it stopped on its own.
	Err <-chan error
}

// Shutdown implements do.ShutdownerWithError.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the companion HTTP server and starts it.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	apiHandle := do.MustInvoke[*APIServerHandle](i)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      apiHandle.Server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server error")
			errCh <- err
		}
	}()

	return &HTTPServerHandle{Server: srv, Err: errCh}, nil
}
