package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Territory TerritoryConfig `yaml:"territory" mapstructure:"territory"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PlacesConfig holds Google Places API (New) settings.
type PlacesConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	MaxPages      int     `yaml:"max_pages" mapstructure:"max_pages"`
	PageDelaySecs int     `yaml:"page_delay_secs" mapstructure:"page_delay_secs"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// AnthropicConfig holds classifier API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// TerritoryConfig selects the territory definition.
type TerritoryConfig struct {
	// File is an optional YAML territory definition; empty means the
	// built-in Newfoundland & Labrador territory.
	File string `yaml:"file" mapstructure:"file"`
}

// EnrichConfig caps the cost-incurring work per run.
type EnrichConfig struct {
	// Budget is the maximum number of paid classifier calls per run.
	// Cache hits do not consume budget.
	Budget int `yaml:"budget" mapstructure:"budget"`
	// ExtractCap bounds homepage fetches per run.
	ExtractCap int `yaml:"extract_cap" mapstructure:"extract_cap"`

	ExtractWorkers  int `yaml:"extract_workers" mapstructure:"extract_workers"`
	ClassifyWorkers int `yaml:"classify_workers" mapstructure:"classify_workers"`

	FetchTimeoutSecs int `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	MaxContentChars  int `yaml:"max_content_chars" mapstructure:"max_content_chars"`
}

// ScoringConfig holds the priority-score weights. Product priority requires
// mobility > security > voip > fleet, which Validate enforces.
type ScoringConfig struct {
	WeightMobility float64 `yaml:"weight_mobility" mapstructure:"weight_mobility"`
	WeightSecurity float64 `yaml:"weight_security" mapstructure:"weight_security"`
	WeightVoIP     float64 `yaml:"weight_voip" mapstructure:"weight_voip"`
	WeightFleet    float64 `yaml:"weight_fleet" mapstructure:"weight_fleet"`
	WeightRating   float64 `yaml:"weight_rating" mapstructure:"weight_rating"`
	WeightReviews  float64 `yaml:"weight_reviews" mapstructure:"weight_reviews"`
	WeightWebsite  float64 `yaml:"weight_website" mapstructure:"weight_website"`
	WeightHours    float64 `yaml:"weight_hours" mapstructure:"weight_hours"`

	// ReviewCap is the review count at which the log-scaled reviews term
	// saturates at 1.0.
	ReviewCap int `yaml:"review_cap" mapstructure:"review_cap"`
}

// ExportConfig configures the ranked export artifact.
type ExportConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Format string `yaml:"format" mapstructure:"format"` // csv or xlsx
}

// ServerConfig configures the read-only leads API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TERRITORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "territory.db")
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.max_pages", 3)
	v.SetDefault("places.page_delay_secs", 2)
	v.SetDefault("places.rate_per_sec", 5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("enrich.budget", 200)
	v.SetDefault("enrich.extract_cap", 500)
	v.SetDefault("enrich.extract_workers", 8)
	v.SetDefault("enrich.classify_workers", 4)
	v.SetDefault("enrich.fetch_timeout_secs", 20)
	v.SetDefault("enrich.max_content_chars", 10000)
	v.SetDefault("scoring.weight_mobility", 11.0)
	v.SetDefault("scoring.weight_security", 4.0)
	v.SetDefault("scoring.weight_voip", 3.0)
	v.SetDefault("scoring.weight_fleet", 2.0)
	v.SetDefault("scoring.weight_rating", 5.0)
	v.SetDefault("scoring.weight_reviews", 5.0)
	v.SetDefault("scoring.weight_website", 5.0)
	v.SetDefault("scoring.weight_hours", 5.0)
	v.SetDefault("scoring.review_cap", 500)
	v.SetDefault("export.path", "data/exports/ranked.csv")
	v.SetDefault("export.format", "csv")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	s := c.Scoring
	if !(s.WeightMobility > s.WeightSecurity &&
		s.WeightSecurity > s.WeightVoIP &&
		s.WeightVoIP > s.WeightFleet) {
		return eris.New("config: scoring weights must satisfy mobility > security > voip > fleet")
	}
	for _, w := range []float64{s.WeightFleet, s.WeightRating, s.WeightReviews, s.WeightWebsite, s.WeightHours} {
		if w < 0 {
			return eris.New("config: scoring weights must be non-negative")
		}
	}
	if s.ReviewCap <= 0 {
		return eris.New("config: scoring review_cap must be positive")
	}
	if c.Enrich.Budget < 0 || c.Enrich.ExtractCap < 0 {
		return eris.New("config: enrich caps must be non-negative")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	switch c.Export.Format {
	case "csv", "xlsx":
	default:
		return eris.Errorf("config: unknown export format %q", c.Export.Format)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
