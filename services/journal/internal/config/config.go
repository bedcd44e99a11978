package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location; JOURNAL_CONFIG overrides it.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port              string   `yaml:"port"`
	LogLevel          string   `yaml:"logLevel"`
	DatabaseURL       string   `yaml:"databaseURL"`
	RedisAddr         string   `yaml:"redisAddr"`
	RedisPassword     string   `yaml:"redisPassword"`
	AllowedOrigins    []string `yaml:"allowedOrigins"`
	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`
	Timezone          string   `yaml:"timezone"`

	JWTSecret          string   `yaml:"jwtSecret"`
	JWTPreviousSecrets []string `yaml:"jwtPreviousSecrets"`
	JWTIssuer          string   `yaml:"jwtIssuer"`
	JWTAudience        string   `yaml:"jwtAudience"`
	JWTLeeway          string   `yaml:"jwtLeeway"`
	SessionTTL         string   `yaml:"sessionTTL"`

	GuidanceProvider    string  `yaml:"guidanceProvider"`
	GuidanceModel       string  `yaml:"guidanceModel"`
	GuidanceBaseURL     string  `yaml:"guidanceBaseURL"`
	GuidanceMaxTokens   int     `yaml:"guidanceMaxTokens"`
	GuidanceTemperature float64 `yaml:"guidanceTemperature"`
	GuidanceTimeout     string  `yaml:"guidanceTimeout"`
	AnthropicAPIKey     string  `yaml:"anthropicAPIKey"`
	OpenAIAPIKey        string  `yaml:"openaiAPIKey"`
	TranscribeModel     string  `yaml:"transcribeModel"`
	MaxAudioBytes       int64   `yaml:"maxAudioBytes"`

	EmbeddingBaseURL string `yaml:"embeddingBaseURL"`
	EmbeddingModel   string `yaml:"embeddingModel"`
	EmbeddingDim     int    `yaml:"embeddingDim"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	MinioRegion    string `yaml:"minioRegion"`

	AudioURLExpiry string `yaml:"audioURLExpiry"`
	// AudioRetentionDays expires archived recordings; zero keeps them.
	AudioRetentionDays int `yaml:"audioRetentionDays"`

	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`

	QueueConcurrency int `yaml:"queueConcurrency"`

	SignupRateLimitPerMinute     int `yaml:"signupRateLimitPerMinute"`
	LoginRateLimitPerMinute      int `yaml:"loginRateLimitPerMinute"`
	GuidanceRateLimitPerMinute   int `yaml:"guidanceRateLimitPerMinute"`
	TranscribeRateLimitPerMinute int `yaml:"transcribeRateLimitPerMinute"`
}

// Path returns the config path from JOURNAL_CONFIG or ConfigPath.
func Path() string {
	if v := strings.TrimSpace(os.Getenv("JOURNAL_CONFIG")); v != "" {
		return v
	}
	return ConfigPath
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("JWT_PREVIOUS_SECRETS"); v != "" {
		cfg.JWTPreviousSecrets = splitCSV(v)
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("GUIDANCE_PROVIDER"); v != "" {
		cfg.GuidanceProvider = strings.TrimSpace(v)
	}
	if v := os.Getenv("GUIDANCE_MODEL"); v != "" {
		cfg.GuidanceModel = strings.TrimSpace(v)
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("JOURNAL_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("JOURNAL_TIMEZONE"); v != "" {
		cfg.Timezone = strings.TrimSpace(v)
	}
	if v := os.Getenv("JOURNAL_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("JOURNAL_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("JOURNAL_MAX_AUDIO_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxAudioBytes = n
		}
	}
	if v := os.Getenv("JOURNAL_AUDIO_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.AudioRetentionDays = n
		}
	}
	if v := os.Getenv("JOURNAL_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.EmbeddingDim = n
		}
	}
	if v := os.Getenv("JOURNAL_QUEUE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.QueueConcurrency = n
		}
	}
	if v := os.Getenv("JOURNAL_SIGNUP_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SignupRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("JOURNAL_LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("JOURNAL_GUIDANCE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GuidanceRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("JOURNAL_TRANSCRIBE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TranscribeRateLimitPerMinute = n
		}
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("config: jwtSecret of at least 32 bytes is required (set in config.yaml or JWT_SECRET)")
	}
	if _, err := ParseDuration(cfg.SessionTTL, 0); err != nil {
		return fmt.Errorf("config: sessionTTL: %w", err)
	}
	if _, err := ParseDuration(cfg.JWTLeeway, 0); err != nil {
		return fmt.Errorf("config: jwtLeeway: %w", err)
	}
	if _, err := ParseDuration(cfg.GuidanceTimeout, 0); err != nil {
		return fmt.Errorf("config: guidanceTimeout: %w", err)
	}
	if _, err := ParseDuration(cfg.AudioURLExpiry, 0); err != nil {
		return fmt.Errorf("config: audioURLExpiry: %w", err)
	}
	if _, err := LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	if cfg.MinioEndpoint != "" && cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	if cfg.AudioRetentionDays < 0 {
		return errors.New("config: audioRetentionDays must not be negative")
	}
	if cfg.EmbeddingDim < 0 {
		return errors.New("config: embeddingDim must not be negative")
	}
	return nil
}

// ParseDuration parses a Go duration string, returning def when raw is blank.
func ParseDuration(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", raw)
	}
	return d, nil
}

// LoadLocation resolves the calendar timezone; blank means UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
