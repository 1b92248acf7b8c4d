package pipeline

import (
	"github.com/carteraops/cartera/internal/aging"
	"github.com/carteraops/cartera/internal/analytics"
	"github.com/carteraops/cartera/internal/audit"
	"github.com/carteraops/cartera/internal/balance"
	"github.com/carteraops/cartera/internal/config"
	"github.com/carteraops/cartera/internal/kpi"
	"github.com/carteraops/cartera/internal/normalizer"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the computation stages and the runner.
var Module = fx.Module("pipeline",
	fx.Provide(
		func(log *zap.Logger) *normalizer.Normalizer {
			return normalizer.New(log)
		},
		func(log *zap.Logger) *balance.Engine {
			return balance.NewEngine(log)
		},
		func(cfg config.Config, log *zap.Logger) *aging.Classifier {
			return aging.NewClassifier(
				aging.RangesFromBounds(cfg.AgingBounds),
				aging.DefaultCollectionRanges(),
				log,
			)
		},
		func(cfg config.Config, log *zap.Logger) *kpi.Calculator {
			return kpi.NewCalculator(cfg.KPIWindowDays, log)
		},
		func(cfg config.Config, log *zap.Logger) *audit.Auditor {
			return audit.NewAuditor(cfg.OutlierThreshold, log)
		},
		func(log *zap.Logger) *analytics.Reporter {
			return analytics.NewReporter(log)
		},
		NewRunner,
	),
)
