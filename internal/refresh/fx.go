package refresh

import (
	"context"

	"github.com/carteraops/cartera/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("refresh",
	fx.Provide(
		func(cfg config.Config) Config {
			return Config{Interval: cfg.RefreshInterval}
		},
		NewWorker,
	),
	fx.Invoke(func(lc fx.Lifecycle, w *Worker, cfg config.Config) {
		if !cfg.ServeHTTP {
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go w.RunForever(ctx)
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return nil
			},
		})
	}),
)
