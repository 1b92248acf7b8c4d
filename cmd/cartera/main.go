package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/carteraops/cartera/internal/clock"
	"github.com/carteraops/cartera/internal/config"
	"github.com/carteraops/cartera/internal/export"
	"github.com/carteraops/cartera/internal/extract"
	"github.com/carteraops/cartera/internal/observability/logger"
	"github.com/carteraops/cartera/internal/observability/tracing"
	"github.com/carteraops/cartera/internal/pipeline"
	"github.com/carteraops/cartera/internal/refresh"
	"github.com/carteraops/cartera/internal/seed"
	"github.com/carteraops/cartera/internal/server"
	"github.com/carteraops/cartera/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
			if !cfg.SeedDemo {
				return nil
			}
			return seed.EnsureDemoSnapshot(conn, cfg.SourceTable)
		}),
		extract.Module,
		pipeline.Module,
		export.Module,
		server.Module,
		refresh.Module,
		fx.Invoke(runOnce),
	)
	app.Run()
}

// runOnce executes one pipeline pass at startup and writes the
// exports. In batch mode (no HTTP server) the process then exits.
func runOnce(
	lc fx.Lifecycle,
	sh fx.Shutdowner,
	srv *server.Server,
	writer *export.Writer,
	cfg config.Config,
	log *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting pipeline", zap.String("version", version))
			go func() {
				res, err := srv.Refresh(context.Background())
				if err != nil {
					log.Error("pipeline run failed", zap.Error(err))
					_ = sh.Shutdown()
					return
				}
				if err := writer.WriteAll(res); err != nil {
					log.Error("export failed", zap.Error(err))
					_ = sh.Shutdown()
					return
				}
				if !cfg.ServeHTTP {
					_ = sh.Shutdown()
				}
			}()
			return nil
		},
	})
}
