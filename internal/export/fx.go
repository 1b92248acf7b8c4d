package export

import (
	"github.com/carteraops/cartera/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("export",
	fx.Provide(func(cfg config.Config, log *zap.Logger) *Writer {
		return NewWriter(cfg.OutputDir, log)
	}),
)
