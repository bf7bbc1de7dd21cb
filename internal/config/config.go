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
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Extract     ExtractConfig     `yaml:"extract" mapstructure:"extract"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" mapstructure:"diagnostics"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Watch       WatchConfig       `yaml:"watch" mapstructure:"watch"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the mapping store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// AnthropicConfig holds the AI service settings used for row labeling and
// lot lookup. An empty key disables the service.
type AnthropicConfig struct {
	Key              string  `yaml:"key" mapstructure:"key"`
	Model            string  `yaml:"model" mapstructure:"model"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	ChunkSize        int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst            int     `yaml:"burst" mapstructure:"burst"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// Enabled reports whether an API key is configured.
func (a AnthropicConfig) Enabled() bool { return a.Key != "" }

// ExtractConfig tunes the extraction pipeline.
type ExtractConfig struct {
	WorkbookEngine string `yaml:"workbook_engine" mapstructure:"workbook_engine"`
	HeaderScanRows int    `yaml:"header_scan_rows" mapstructure:"header_scan_rows"`
	SampleRows     int    `yaml:"sample_rows" mapstructure:"sample_rows"`
	FilenameTag    bool   `yaml:"filename_tag" mapstructure:"filename_tag"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// DiagnosticsConfig configures the per-run error report.
type DiagnosticsConfig struct {
	CSVPath string `yaml:"csv_path" mapstructure:"csv_path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// WatchConfig configures the directory watcher.
type WatchConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	DebounceMS int    `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// FetchConfig configures remote document retrieval.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

var storeDrivers = map[string]bool{
	"memory":   true,
	"file":     true,
	"sqlite":   true,
	"postgres": true,
}

// Validate checks that the fields required by the given command mode are
// present and in range. Valid modes are extract, batch, watch, serve and
// mappings. All problems are reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "extract", "batch", "watch", "serve", "mappings":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if !storeDrivers[c.Store.Driver] {
		errs = append(errs, "store.driver must be one of memory, file, sqlite, postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for the postgres driver")
	}
	if (c.Store.Driver == "file" || c.Store.Driver == "sqlite") && c.Store.Path == "" {
		errs = append(errs, "store.path is required for the "+c.Store.Driver+" driver")
	}

	if mode != "mappings" {
		if c.Anthropic.ChunkSize <= 0 {
			errs = append(errs, "anthropic.chunk_size must be > 0")
		}
		switch c.Extract.WorkbookEngine {
		case "excelize", "tealeg":
		default:
			errs = append(errs, "extract.workbook_engine must be excelize or tealeg")
		}
		if c.Extract.HeaderScanRows <= 0 {
			errs = append(errs, "extract.header_scan_rows must be > 0")
		}
	}

	switch mode {
	case "batch", "watch":
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 64 {
			errs = append(errs, "batch.concurrency must be between 1 and 64")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DPGF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", "dpgf_mappings.yaml")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.timeout_secs", 30)
	v.SetDefault("anthropic.chunk_size", 20)
	v.SetDefault("anthropic.rate_per_sec", 2.0)
	v.SetDefault("anthropic.burst", 2)
	v.SetDefault("anthropic.failure_threshold", 3)
	v.SetDefault("anthropic.max_attempts", 3)
	v.SetDefault("extract.workbook_engine", "excelize")
	v.SetDefault("extract.header_scan_rows", 30)
	v.SetDefault("extract.sample_rows", 40)
	v.SetDefault("extract.filename_tag", false)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("diagnostics.csv_path", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("watch.dir", "")
	v.SetDefault("watch.debounce_ms", 500)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.user_agent", "dpgf-extract/1.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
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
