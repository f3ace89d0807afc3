// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every setting when read from the environment,
// e.g. EXTRACTOR_HTTP_PORT for http.port.
const EnvPrefix = "EXTRACTOR"

// Config holds all application configuration.
type Config struct {
	Log        LogConfig
	Gemini     GeminiConfig
	Extraction ExtractionConfig
	Storage    StorageConfig
	BigQuery   BigQueryConfig
	Queue      QueueConfig
	HTTP       HTTPConfig
	Defaults   DefaultsConfig
}

type LogConfig struct {
	Level  string
	Format string // console | json
}

type GeminiConfig struct {
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	RatePerSecond float64
}

// Enabled reports whether the AI strategy can be attempted.
func (g GeminiConfig) Enabled() bool {
	return strings.TrimSpace(g.APIKey) != ""
}

type ExtractionConfig struct {
	MaxPages        int
	PageConcurrency int
	ExplicitColumns []float64
}

type StorageConfig struct {
	Bucket    string
	UploadDir string
}

type BigQueryConfig struct {
	Enabled   bool
	ProjectID string
	DatasetID string
}

type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

type HTTPConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

type DefaultsConfig struct {
	Currency string
	Category string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash-lite")
	v.SetDefault("gemini.timeout", 2*time.Minute)
	v.SetDefault("gemini.max_retries", 3)
	v.SetDefault("gemini.rate_per_second", 1.0)

	v.SetDefault("extraction.max_pages", 0)
	v.SetDefault("extraction.page_concurrency", 1)
	v.SetDefault("extraction.explicit_columns", "")

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.upload_dir", "uploads")

	v.SetDefault("bigquery.enabled", false)
	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset_id", "statements")

	v.SetDefault("queue.workers", 5)
	v.SetDefault("queue.buffer_size", 100)
	v.SetDefault("queue.max_retries", 3)

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.max_upload_bytes", int64(32<<20))

	v.SetDefault("defaults.currency", "INR")
	v.SetDefault("defaults.category", "Uncategorized")
}

// Load reads .env (if present) and the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return LoadFrom(viper.New())
}

// LoadFrom builds a Config from v after binding defaults and the
// environment. Tests pass a fresh viper with values preset.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("config: binding gemini key: %w", err)
	}

	columns, err := parseColumns(v.GetString("extraction.explicit_columns"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Gemini: GeminiConfig{
			APIKey:        v.GetString("gemini.api_key"),
			Model:         v.GetString("gemini.model"),
			Timeout:       v.GetDuration("gemini.timeout"),
			MaxRetries:    v.GetInt("gemini.max_retries"),
			RatePerSecond: v.GetFloat64("gemini.rate_per_second"),
		},
		Extraction: ExtractionConfig{
			MaxPages:        v.GetInt("extraction.max_pages"),
			PageConcurrency: v.GetInt("extraction.page_concurrency"),
			ExplicitColumns: columns,
		},
		Storage: StorageConfig{
			Bucket:    v.GetString("storage.bucket"),
			UploadDir: v.GetString("storage.upload_dir"),
		},
		BigQuery: BigQueryConfig{
			Enabled:   v.GetBool("bigquery.enabled"),
			ProjectID: v.GetString("bigquery.project_id"),
			DatasetID: v.GetString("bigquery.dataset_id"),
		},
		Queue: QueueConfig{
			Workers:    v.GetInt("queue.workers"),
			BufferSize: v.GetInt("queue.buffer_size"),
			MaxRetries: v.GetInt("queue.max_retries"),
		},
		HTTP: HTTPConfig{
			Port:            v.GetInt("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxUploadBytes:  v.GetInt64("http.max_upload_bytes"),
		},
		Defaults: DefaultsConfig{
			Currency: v.GetString("defaults.currency"),
			Category: v.GetString("defaults.category"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseColumns reads a comma-separated list of x positions.
func parseColumns(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("config: explicit column %q: %w", p, err)
		}
		out = append(out, x)
	}
	return out, nil
}

// Validate checks value ranges and required combinations.
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	if c.Gemini.Model == "" {
		errs = append(errs, errors.New("gemini.model is required"))
	}
	if c.Gemini.Timeout <= 0 {
		errs = append(errs, errors.New("gemini.timeout must be positive"))
	}
	if c.Gemini.MaxRetries < 0 {
		errs = append(errs, errors.New("gemini.max_retries must not be negative"))
	}
	if c.Gemini.RatePerSecond < 0 {
		errs = append(errs, errors.New("gemini.rate_per_second must not be negative"))
	}
	if c.Extraction.MaxPages < 0 {
		errs = append(errs, errors.New("extraction.max_pages must not be negative"))
	}
	if c.Extraction.PageConcurrency < 1 {
		errs = append(errs, errors.New("extraction.page_concurrency must be at least 1"))
	}
	if c.BigQuery.Enabled && c.BigQuery.ProjectID == "" {
		errs = append(errs, errors.New("bigquery.project_id is required when bigquery is enabled"))
	}
	if c.Queue.Workers < 1 {
		errs = append(errs, errors.New("queue.workers must be at least 1"))
	}
	if c.Queue.BufferSize < 1 {
		errs = append(errs, errors.New("queue.buffer_size must be at least 1"))
	}
	if c.Queue.MaxRetries < 0 {
		errs = append(errs, errors.New("queue.max_retries must not be negative"))
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port out of range: %d", c.HTTP.Port))
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("http.max_upload_bytes must be positive"))
	}
	if c.Defaults.Currency == "" {
		errs = append(errs, errors.New("defaults.currency is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
