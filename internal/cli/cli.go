// Package cli holds the start-up steps shared by the go-g1 commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-g1/internal/config"
	"github.com/teslashibe/go-g1/pkg/channel"
	"github.com/teslashibe/go-g1/pkg/loco"
	"github.com/teslashibe/go-g1/pkg/metrics"
)

// Connect opens the loco client for cfg on the given network interface.
// It does not call Init.
func Connect(ctx context.Context, cfg config.Config, iface string, rec *metrics.Recorder, logger *slog.Logger) (*loco.Client, error) {
	f, err := channel.Init(cfg.DomainID, iface)
	if err != nil {
		return nil, err
	}
	t, err := f.Dial(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Endpoint, err)
	}

	opts := []loco.Option{loco.WithLogger(logger)}
	if rec != nil {
		opts = append(opts, loco.WithObserver(rec.ObserveRPC))
	}
	c := loco.New(t, opts...)
	c.SetTimeout(cfg.Timeout)
	return c, nil
}

// ServeMetrics starts the metrics endpoint when cfg.MetricsAddr is set.
func ServeMetrics(ctx context.Context, cfg config.Config, rec *metrics.Recorder, logger *slog.Logger) {
	if cfg.MetricsAddr == "" {
		return
	}
	go func() {
		if err := rec.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
			logger.Error("metrics server", "error", err)
		}
	}()
}
