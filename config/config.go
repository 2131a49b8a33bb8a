package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Server configuration
	Server struct {
		// HTTP listen port
		Port int `env:"PORT" envDefault:"8080"`

		// Allowed CORS origins, comma separated
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	}

	// Storage paths
	Storage struct {
		// Archive database for offers and valuated lots
		ArchivePath string `env:"ARCHIVE_DB_PATH" envDefault:"data/archive.db"`

		// Deduplication ledger database
		DedupPath string `env:"DEDUP_DB_PATH" envDefault:"data/dedup.db"`

		// Directory for CSV snapshots
		ExportDir string `env:"EXPORT_DIR" envDefault:"data/exports"`

		// Geocoder cache directory
		GeocodeCacheDir string `env:"GEOCODE_CACHE_DIR" envDefault:"data/geocode_cache"`
	}

	// Pipeline run configuration
	Run struct {
		// Region passed to the collector script
		Region string `env:"COLLECTOR_REGION" envDefault:"moscow"`

		// Offer queue buffer size, in batches
		QueueSize int `env:"OFFER_QUEUE_SIZE" envDefault:"100"`

		// Daily valuation run time, HH:MM
		DailyRunTime string `env:"DAILY_RUN_TIME" envDefault:"06:30"`

		// Ledger cleanup time, HH:MM
		CleanupTime string `env:"CLEANUP_TIME" envDefault:"03:00"`

		// Dedup ledger retention in days
		DedupRetentionDays int `env:"DEDUP_RETENTION_DAYS" envDefault:"30"`

		// Run a valuation pass immediately on startup
		RunOnStart bool `env:"RUN_ON_START" envDefault:"false"`

		// Disable the Nominatim geocoder
		DisableGeocoder bool `env:"DISABLE_GEOCODER" envDefault:"false"`
	}

	// Telegram notification sink
	Telegram struct {
		BotToken string `env:"TELEGRAM_BOT_TOKEN"`
		ChatID   string `env:"TELEGRAM_CHAT_ID"`
		Enabled  bool   `env:"TELEGRAM_ENABLED" envDefault:"false"`
	}

	// Path to the valuation thresholds file; optional
	ThresholdsPath string `env:"THRESHOLDS_PATH" envDefault:"config/thresholds.yaml"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
