// Package refresh re-runs the pipeline on an interval while the HTTP
// API is serving, so readers see a bounded-stale view of the
// snapshot.
package refresh

import (
	"context"
	"time"

	"github.com/carteraops/cartera/internal/server"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Server *server.Server
	Log    *zap.Logger
	Config Config `optional:"true"`
}

type Worker struct {
	srv *server.Server
	log *zap.Logger
	cfg Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		srv: p.Server,
		log: p.Log.Named("refresh.worker"),
		cfg: p.Config.withDefaults(),
	}
}

// RunForever refreshes on the configured interval until the context is
// cancelled. A failed refresh keeps the previous result and retries on
// the next tick.
func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("scheduled refresh failed", zap.Error(err))
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	_, err := w.srv.Refresh(ctx)
	return err
}
