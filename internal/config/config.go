package config

import (
	"os"
	"strings"
	"time"

	"tcg-pricer/internal/logger"
	"tcg-pricer/internal/pricing"

	"github.com/creasty/defaults"
)

type Config struct {
	DatabaseURL string `koanf:"database_url" default:"root:@tcp(127.0.0.1:3306)/tcg_pricer?charset=utf8mb4&parseTime=True&loc=Local" validate:"required"`
	Port        string `koanf:"port" default:"8080" validate:"required,numeric"`
	Environment string `koanf:"environment" default:"development" validate:"oneof=development production test"`

	Log            LogConfig            `koanf:"log"`
	Naver          NaverConfig          `koanf:"naver"`
	Pricing        PricingConfig        `koanf:"pricing"`
	SellerOverride SellerOverrideConfig `koanf:"seller_override"`
	Scheduler      SchedulerConfig      `koanf:"scheduler"`
}

type LogConfig struct {
	Level  string `koanf:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" default:"console" validate:"oneof=json console"`
	Output string `koanf:"output" default:"stdout"`
}

// NaverConfig holds the shopping search API credentials. Empty credentials
// are accepted; searches then return nothing.
type NaverConfig struct {
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	BaseURL      string        `koanf:"base_url" default:"https://openapi.naver.com" validate:"required,url"`
	Display      int           `koanf:"display" default:"20" validate:"min=1,max=100"`
	Timeout      time.Duration `koanf:"timeout" default:"10s" validate:"gt=0"`
}

type PricingConfig struct {
	// Adjustment is added to every computed lowest price.
	Adjustment            int           `koanf:"adjustment" default:"0"`
	MinPrice              int           `koanf:"min_price" default:"200" validate:"gte=0"`
	RequestDelay          time.Duration `koanf:"request_delay" default:"300ms" validate:"gte=0"`
	SuperParallelMinPrice int           `koanf:"super_parallel_min_price" default:"200000" validate:"gt=0"`
	OnePieceSpecial       string        `koanf:"onepiece_special" default:"special" validate:"oneof=special exclude"`
}

// SellerOverrideConfig switches the listed games to pricing from a single
// seller. Mode "lowest" disables it.
type SellerOverrideConfig struct {
	Mode     string   `koanf:"mode" default:"lowest" validate:"oneof=lowest seller"`
	Seller   string   `koanf:"seller" default:"TCG999" validate:"required_if=Mode seller"`
	Discount int      `koanf:"discount" default:"0" validate:"gte=0"`
	Games    []string `koanf:"games"`
}

type SchedulerConfig struct {
	Enabled bool     `koanf:"enabled"`
	At      string   `koanf:"at" default:"03:00" validate:"datetime=15:04"`
	Games   []string `koanf:"games" default:"[\"pokemon\",\"onepiece\",\"digimon\"]" validate:"min=1"`
}

// New returns a Config populated with defaults only.
func New() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// EngineOptions converts the pricing sections into engine options.
func (c *Config) EngineOptions() pricing.Options {
	opts := pricing.Options{
		SuperParallelMinPrice: c.Pricing.SuperParallelMinPrice,
		OnePieceSpecial:       c.Pricing.OnePieceSpecial,
	}
	if pricing.SellerMode(c.SellerOverride.Mode) != pricing.SellerModeSeller {
		return opts
	}
	opts.SellerOverrides = make(map[pricing.Game]pricing.SellerOverride)
	for _, name := range splitList(c.SellerOverride.Games) {
		g, ok := pricing.ParseGame(name)
		if !ok {
			continue
		}
		opts.SellerOverrides[g] = pricing.SellerOverride{
			Mode:     pricing.SellerModeSeller,
			Seller:   c.SellerOverride.Seller,
			Discount: c.SellerOverride.Discount,
		}
	}
	return opts
}

// SchedulerGames returns the configured scheduler games, skipping unknown names.
func (c *Config) SchedulerGames() []pricing.Game {
	var out []pricing.Game
	for _, name := range splitList(c.Scheduler.Games) {
		if g, ok := pricing.ParseGame(name); ok {
			out = append(out, g)
		}
	}
	return out
}

// splitList flattens comma separated entries, as env vars arrive as one string.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Logger returns the logger settings.
func (c *Config) Logger() logger.Config {
	return logger.Config{Level: c.Log.Level, Format: c.Log.Format, Output: c.Log.Output}
}

// applyLegacyEnv honours the unprefixed variables older deployments set.
func applyLegacyEnv(cfg *Config) {
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.Naver.ClientID = getEnv("NAVER_CLIENT_ID", cfg.Naver.ClientID)
	cfg.Naver.ClientSecret = getEnv("NAVER_CLIENT_SECRET", cfg.Naver.ClientSecret)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
