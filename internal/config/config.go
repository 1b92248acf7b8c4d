// Package config loads the runtime configuration from the
// environment. Every variable carries the CARTERA_ prefix and every
// field has a working default, so an empty environment still runs.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/carteraops/cartera/internal/kpi"
	"github.com/carteraops/cartera/internal/outlier"
)

type Config struct {
	// Environment is "production" or anything else (treated as dev).
	Environment string

	// DSN is the sqlite data source holding the receivables snapshot.
	DSN string
	// SourceTable is the table read as the raw snapshot.
	SourceTable string

	// OutputDir receives the CSV and PDF exports.
	OutputDir string

	// SeedDemo creates a demo source table when the configured one is
	// missing.
	SeedDemo bool

	// HTTPAddr is the listen address of the read-only API; ServeHTTP
	// gates whether the server starts at all.
	HTTPAddr  string
	ServeHTTP bool

	// RefreshInterval is how often the serving process re-reads the
	// snapshot. Zero keeps the default.
	RefreshInterval time.Duration

	// KPIWindowDays is the trailing window for DSO and CEI.
	KPIWindowDays int
	// OutlierThreshold is the absolute z-score cutoff.
	OutlierThreshold float64
	// AgingBounds are the inclusive upper bounds of the overdue
	// buckets; empty means the default ladder.
	AgingBounds []int

	Tracing Tracing
}

// Tracing configures the OTLP exporter.
type Tracing struct {
	Enabled       bool
	Endpoint      string
	SamplingRatio float64
}

func Default() Config {
	return Config{
		Environment:      "development",
		DSN:              "cartera.db",
		SourceTable:      "movimientos_cxc",
		OutputDir:        "reportes",
		HTTPAddr:         ":8080",
		ServeHTTP:        false,
		KPIWindowDays:    kpi.DefaultWindowDays,
		OutlierThreshold: outlier.DefaultThreshold,
		Tracing: Tracing{
			SamplingRatio: 0.1,
		},
	}
}

// FromEnv reads the CARTERA_* variables over the defaults.
func FromEnv() Config {
	cfg := Default()

	setString(&cfg.Environment, "CARTERA_ENV")
	setString(&cfg.DSN, "CARTERA_DSN")
	setString(&cfg.SourceTable, "CARTERA_SOURCE_TABLE")
	setString(&cfg.OutputDir, "CARTERA_OUTPUT_DIR")
	setBool(&cfg.SeedDemo, "CARTERA_SEED_DEMO")
	setString(&cfg.HTTPAddr, "CARTERA_HTTP_ADDR")
	setBool(&cfg.ServeHTTP, "CARTERA_SERVE_HTTP")
	setDuration(&cfg.RefreshInterval, "CARTERA_REFRESH_INTERVAL")
	setInt(&cfg.KPIWindowDays, "CARTERA_KPI_WINDOW_DAYS")
	setFloat(&cfg.OutlierThreshold, "CARTERA_OUTLIER_THRESHOLD")
	cfg.AgingBounds = parseBounds(os.Getenv("CARTERA_AGING_BOUNDS"))

	setBool(&cfg.Tracing.Enabled, "CARTERA_TRACING_ENABLED")
	setString(&cfg.Tracing.Endpoint, "CARTERA_TRACING_ENDPOINT")
	setFloat(&cfg.Tracing.SamplingRatio, "CARTERA_TRACING_SAMPLING_RATIO")

	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := Default()
	if c.KPIWindowDays <= 0 {
		c.KPIWindowDays = defaults.KPIWindowDays
	}
	if c.OutlierThreshold <= 0 {
		c.OutlierThreshold = defaults.OutlierThreshold
	}
	if c.Tracing.SamplingRatio <= 0 {
		c.Tracing.SamplingRatio = defaults.Tracing.SamplingRatio
	}
	return c
}

// IsProduction selects the production logger encoding.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// parseBounds parses "30,60,90" into sorted-as-given bucket bounds.
// Malformed or non-positive entries invalidate the whole list: a half
// parsed ladder would silently reshuffle categories.
func parseBounds(raw string) []int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	bounds := make([]int, 0, len(parts))
	prev := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= prev {
			return nil
		}
		bounds = append(bounds, n)
		prev = n
	}
	return bounds
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
