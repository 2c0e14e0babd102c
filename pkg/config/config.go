// Package config loads the settings shared by the ingestion and maintenance tools.
//
// Values resolve in order: defaults, optional config file, CARTOON_* environment
// variables (a .env file is honoured), then command-line flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CARTOON"

// MaxCrawlPages is the hard page budget of a crawl run.
const MaxCrawlPages = 50

// Config is the full configuration for one process run.
type Config struct {
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ArchiveConfig describes the public catalog and where derived URLs point.
type ArchiveConfig struct {
	// BaseURL serves the search and metadata endpoints.
	BaseURL string `mapstructure:"base_url"`
	// DownloadBaseURL and ImageBaseURL prefix the URLs stored on records.
	DownloadBaseURL string        `mapstructure:"download_base_url"`
	ImageBaseURL    string        `mapstructure:"image_base_url"`
	Collection      string        `mapstructure:"collection"`
	MediaType       string        `mapstructure:"media_type"`
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	VideoExtensions []string      `mapstructure:"video_extensions"`
}

// CrawlConfig bounds one ingestion run.
type CrawlConfig struct {
	// MaxPages may lower the page budget, never raise it above MaxCrawlPages.
	MaxPages  int           `mapstructure:"max_pages"`
	PageDelay time.Duration `mapstructure:"page_delay"`
	// MaxStalePages is how many consecutive pages without a new record end the run.
	MaxStalePages int `mapstructure:"max_stale_pages"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type PostgresConfig struct {
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnMaxIdle  time.Duration `mapstructure:"conn_max_idle"`
	ConnMaxLife  time.Duration `mapstructure:"conn_max_life"`
}

type SupabaseConfig struct {
	URL              string `mapstructure:"url"`
	Key              string `mapstructure:"key"`
	Password         string `mapstructure:"password"`
	ConnectionString string `mapstructure:"connection_string"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("archive.base_url", "https://archive.org")
	v.SetDefault("archive.download_base_url", "https://archive.org/download")
	v.SetDefault("archive.image_base_url", "https://archive.org/services/img")
	v.SetDefault("archive.collection", "animation_unsorted")
	v.SetDefault("archive.media_type", "movies")
	v.SetDefault("archive.user_agent", "cartoon-ingest/1.0")
	v.SetDefault("archive.timeout", "30s")
	v.SetDefault("archive.video_extensions", []string{".mp4"})

	v.SetDefault("crawl.max_pages", 50)
	v.SetDefault("crawl.page_delay", "1s")
	v.SetDefault("crawl.max_stale_pages", 1)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "cartoon")
	v.SetDefault("mongo.collection", "videos")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_idle", "5m")
	v.SetDefault("postgres.conn_max_life", "30m")

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.key", "")
	v.SetDefault("supabase.password", "")
	v.SetDefault("supabase.connection_string", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "archivecrawl")
}

// Load resolves configuration into a Config. cfgFile may be empty, in which case
// config.yaml is looked up in the working directory and ./config; a missing file
// is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BindFlags binds flags to config keys. keys maps flag name to config key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("bind flag %q: not defined", name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

// Validate rejects configurations no run could succeed with.
func (c *Config) Validate() error {
	var errs []error
	if c.Archive.BaseURL == "" {
		errs = append(errs, errors.New("archive.base_url is required"))
	}
	if c.Archive.Collection == "" {
		errs = append(errs, errors.New("archive.collection is required"))
	}
	if len(c.Archive.VideoExtensions) == 0 {
		errs = append(errs, errors.New("archive.video_extensions must not be empty"))
	}
	if c.Crawl.MaxPages <= 0 || c.Crawl.MaxPages > MaxCrawlPages {
		errs = append(errs, fmt.Errorf("crawl.max_pages must be between 1 and %d, got %d", MaxCrawlPages, c.Crawl.MaxPages))
	}
	if c.Crawl.PageDelay < 0 {
		errs = append(errs, fmt.Errorf("crawl.page_delay must not be negative, got %s", c.Crawl.PageDelay))
	}
	if c.Crawl.MaxStalePages <= 0 {
		errs = append(errs, fmt.Errorf("crawl.max_stale_pages must be positive, got %d", c.Crawl.MaxStalePages))
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" || c.Mongo.Collection == "" {
		errs = append(errs, errors.New("mongo.uri, mongo.database and mongo.collection are required"))
	}
	return errors.Join(errs...)
}
