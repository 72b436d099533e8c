// Package app wires the pricing components from configuration.
package app

import (
	"fmt"

	"tcg-pricer/internal/config"
	"tcg-pricer/internal/database"
	"tcg-pricer/internal/metrics"
	"tcg-pricer/internal/pricing"
	"tcg-pricer/internal/services/excel"
	"tcg-pricer/internal/services/naver"
	"tcg-pricer/internal/services/pricer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// App holds the wired services shared by the server and the command line tools.
type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      *database.Store
	Engine     *pricing.Engine
	Naver      *naver.Client
	Aggregator *pricer.Aggregator
	Sheets     *excel.Processor
	Registry   *prometheus.Registry
}

// New builds the services. A nil db skips the database, which is enough for
// the workbook pricer.
func New(cfg *config.Config, db *gorm.DB, log zerolog.Logger) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewRecorder(reg)

	a := &App{Config: cfg, DB: db, Registry: reg}
	a.Engine = pricing.NewEngine(cfg.EngineOptions())
	a.Naver = naver.NewClient(cfg.Naver, log, rec)

	var store pricer.Store
	if db != nil {
		a.Store = database.NewStore(db)
		store = a.Store
	}
	a.Aggregator = pricer.New(a.Engine, a.Naver, store, PricerOptions(cfg), log, rec)
	a.Sheets = excel.NewProcessor(a.Aggregator, log)
	return a
}

// Open connects to the configured database and builds the services on it.
func Open(cfg *config.Config, log zerolog.Logger) (*App, error) {
	db, err := database.Initialize(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return New(cfg, db, log), nil
}

// PricerOptions converts the pricing section into aggregator options.
func PricerOptions(cfg *config.Config) pricer.Options {
	return pricer.Options{
		Adjustment: cfg.Pricing.Adjustment,
		MinPrice:   cfg.Pricing.MinPrice,
		Delay:      cfg.Pricing.RequestDelay,
	}
}

// Close releases the database connection pool.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
