package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytpub/internal/server"
	"github.com/desertthunder/ytpub/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the status server until the context is canceled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	}

	logger := shared.WithLogger(r.logger, "component", "server")
	router := server.New(server.Opts{
		DB:      db,
		Records: r.records,
		Assets:  r.assets,
		Metrics: r.metrics.Handler(),
		Logger:  logger,
		Now:     r.now,
	})

	return server.Serve(ctx, addr, router, logger)
}
