// Package server exposes the latest pipeline result over a small
// read-only HTTP API, plus an endpoint to trigger a refresh.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/carteraops/cartera/internal/cache"
	"github.com/carteraops/cartera/internal/config"
	"github.com/carteraops/cartera/internal/extract"
	"github.com/carteraops/cartera/internal/pipeline"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// tableCacheTTL bounds staleness of rendered tables between refreshes;
// the cache is also purged on every refresh.
const tableCacheTTL = 5 * time.Minute

type Server struct {
	store  *Store
	tables *cache.TTLCache[string, pipeline.Table]
	runner *pipeline.Runner
	reader *extract.Reader
	runlog *extract.RunLog
	cfg    config.Config
	log    *zap.Logger
}

type Params struct {
	fx.In

	Store  *Store
	Runner *pipeline.Runner
	Reader *extract.Reader
	RunLog *extract.RunLog
	Config config.Config
	Log    *zap.Logger
}

func NewServer(p Params) *Server {
	return &Server{
		store:  p.Store,
		tables: cache.NewTTLCache[string, pipeline.Table](),
		runner: p.Runner,
		reader: p.Reader,
		runlog: p.RunLog,
		cfg:    p.Config,
		log:    p.Log.Named("server"),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.POST("/runs", s.TriggerRun)
		v1.GET("/runs", s.ListRuns)
		v1.GET("/kpis", s.GetKPIs)
		v1.GET("/balances", s.GetBalances)
		v1.GET("/ledger", s.GetLedger)
		v1.GET("/cycles", s.GetCycles)
		v1.GET("/concentration", s.GetConcentration)
		v1.GET("/credit", s.GetCredit)
		v1.GET("/delinquency", s.GetDelinquency)
		v1.GET("/audit", s.GetAudit)
		v1.GET("/tables", s.ListTables)
		v1.GET("/tables/:name", s.GetTable)
	}
	return r
}

// Refresh reads the snapshot, runs the pipeline, stores the result and
// records the run.
func (s *Server) Refresh(ctx context.Context) (*pipeline.Result, error) {
	raw, err := s.reader.Snapshot(ctx, s.cfg.SourceTable)
	if err != nil {
		return nil, err
	}
	res, err := s.runner.Run(ctx, raw)
	if err != nil {
		return nil, err
	}
	s.store.Set(res)
	s.tables.Purge()
	if err := s.runlog.Record(ctx, s.cfg.SourceTable, len(raw.Rows), res); err != nil {
		s.log.Warn("failed to record pipeline run", zap.Error(err))
	}
	return res, nil
}

var Module = fx.Module("server",
	fx.Provide(
		NewStore,
		NewServer,
	),
	fx.Invoke(Run),
)

// Run starts the HTTP listener when enabled; the pipeline still runs
// in batch mode without it.
func Run(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	if !cfg.ServeHTTP {
		return
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: s.Router(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
