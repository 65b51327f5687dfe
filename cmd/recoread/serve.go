package main

import (
	"context"

	"github.com/recoread/recoread-client/internal/di"
)

// runServe runs the companion server until interrupted.
func runServe(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlags("serve"), args); err != nil {
		return err
	}

	srv, err := di.BootstrapServer(e.injector)
	if err != nil {
		return err
	}

	e.log.Info("Companion server running", "addr", srv.Addr, "backend", e.client.BaseURL())

	select {
	case <-ctx.Done():
		e.log.Info("Shutting down companion server gracefully...")
		return nil
	case err := <-srv.Err:
		return err
	}
}
