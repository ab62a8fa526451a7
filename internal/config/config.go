package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string   `env:"PORT"         envDefault:"8080"`
	GinMode     string   `env:"GIN_MODE"     envDefault:"debug"`
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000,http://localhost:8080" envSeparator:","`
	MaxFileSize int64    `env:"MAX_FILE_SIZE" envDefault:"52428800"` // 50MB

	// Upload working directory
	UploadDir       string        `env:"UPLOAD_DIR"       envDefault:"./uploads"`
	UploadRetention time.Duration `env:"UPLOAD_RETENTION" envDefault:"1h"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" envDefault:"15m"`

	// Inference server hosting the pretrained checkpoints
	InferenceURL         string        `env:"INFERENCE_URL"         envDefault:"http://localhost:8000"`
	InferenceAPIToken    string        `env:"INFERENCE_API_TOKEN"`
	InferenceTimeout     time.Duration `env:"INFERENCE_TIMEOUT"     envDefault:"120s"`
	InferenceRPS         float64       `env:"INFERENCE_RPS"         envDefault:"5"`
	InferenceBurst       int           `env:"INFERENCE_BURST"       envDefault:"10"`
	InferenceBatchSize   int           `env:"INFERENCE_BATCH_SIZE"  envDefault:"8"`
	InferenceConcurrency int           `env:"INFERENCE_CONCURRENCY" envDefault:"2"`
	Device               string        `env:"DEVICE"                envDefault:"auto"` // auto, cuda, cpu
	PreloadModels        bool          `env:"PRELOAD_MODELS"        envDefault:"false"`

	ModelT5ID      string `env:"MODEL_T5_ID"      envDefault:"t5-base"`
	ModelBARTID    string `env:"MODEL_BART_ID"    envDefault:"facebook/bart-large-cnn"`
	ModelPegasusID string `env:"MODEL_PEGASUS_ID" envDefault:"google/pegasus-xsum"`

	// Redis Configuration (optional, empty disables)
	RedisURL      string `env:"REDIS_URL"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SummaryCacheTTL  time.Duration `env:"SUMMARY_CACHE_TTL"  envDefault:"24h"`
	SummaryCacheSize int           `env:"SUMMARY_CACHE_SIZE" envDefault:"256"`

	RateLimitReqs   int `env:"RATE_LIMIT_REQUESTS" envDefault:"30"`
	RateLimitWindow int `env:"RATE_LIMIT_WINDOW"   envDefault:"60"` // seconds

	// Telemetry (empty endpoint disables tracing export)
	OTLPEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Device = strings.ToLower(strings.TrimSpace(cfg.Device))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.InferenceURL == "" {
		errs = append(errs, errors.New("INFERENCE_URL is required"))
	}
	switch c.Device {
	case "auto", "cuda", "cpu":
	default:
		errs = append(errs, fmt.Errorf("DEVICE must be auto, cuda or cpu, got %q", c.Device))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, errors.New("MAX_FILE_SIZE must be positive"))
	}
	if c.InferenceBatchSize <= 0 {
		errs = append(errs, errors.New("INFERENCE_BATCH_SIZE must be positive"))
	}
	if c.InferenceConcurrency <= 0 {
		errs = append(errs, errors.New("INFERENCE_CONCURRENCY must be positive"))
	}
	if c.InferenceRPS <= 0 || c.InferenceBurst <= 0 {
		errs = append(errs, errors.New("INFERENCE_RPS and INFERENCE_BURST must be positive"))
	}
	if c.UploadRetention <= 0 {
		errs = append(errs, errors.New("UPLOAD_RETENTION must be positive"))
	}
	if c.JanitorInterval <= 0 {
		errs = append(errs, errors.New("JANITOR_INTERVAL must be positive"))
	}
	if c.SummaryCacheSize < 0 {
		errs = append(errs, errors.New("SUMMARY_CACHE_SIZE must not be negative"))
	}
	return errors.Join(errs...)
}

// RedisEnabled reports whether a redis endpoint was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}
