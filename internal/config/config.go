package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Logger      LoggerConfig
	Storage     StorageConfig
	Redis       RedisConfig
	Review      ReviewConfig
	Upload      UploadConfig
	Consistency ConsistencyConfig
	AutoTrigger AutoTriggerConfig
	Events      EventsConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	// MaxMultipartMemory is the in-memory share of a multipart body; the
	// rest spills to temp files.
	MaxMultipartMemory int64
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	// ReadURL points reads at a replica. Empty means reads use the primary.
	ReadURL        string
	MaxConns       int32
	MinConns       int32
	AutoMigrate    bool
	AssignmentRole string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type LoggerConfig struct {
	Level  string
	Format string
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

type RedisConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	LockPrefix string
}

type ReviewConfig struct {
	Enabled bool
	URL     string
	Token   string
	Timeout time.Duration
}

type UploadConfig struct {
	ModelMaxBytes    int64
	SourceMaxBytes   int64
	ModelExtensions  []string
	SourceExtensions []string
}

type ConsistencyConfig struct {
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
	MaxAttempts int
	MarkerTTL   time.Duration
}

type AutoTriggerConfig struct {
	SettleDelay   time.Duration
	ProbeOnArm    bool
	LockTTL       time.Duration
	MaxLagRetries int
}

type EventsConfig struct {
	Enabled bool
	ListKey string
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "*")
	v.SetDefault("SERVER_MAX_MULTIPART_MEMORY", 32<<20)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "asset_lifecycle")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_READ_URL", "")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("DB_ASSIGNMENT_ROLE", "modeler")

	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	v.SetDefault("STORAGE_ENDPOINT", "localhost:9000")
	v.SetDefault("STORAGE_ACCESS_KEY", "minioadmin")
	v.SetDefault("STORAGE_SECRET_KEY", "minioadmin")
	v.SetDefault("STORAGE_BUCKET", "assets")
	v.SetDefault("STORAGE_USE_SSL", false)
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_LOCK_PREFIX", "asset-lifecycle:")

	v.SetDefault("REVIEW_ENABLED", false)
	v.SetDefault("REVIEW_URL", "http://localhost:8090")
	v.SetDefault("REVIEW_TOKEN", "")
	v.SetDefault("REVIEW_TIMEOUT", "2m")

	v.SetDefault("UPLOAD_MODEL_MAX_BYTES", 100<<20)
	v.SetDefault("UPLOAD_SOURCE_MAX_BYTES", 500<<20)
	v.SetDefault("UPLOAD_MODEL_EXTENSIONS", ".glb,.gltf")
	v.SetDefault("UPLOAD_SOURCE_EXTENSIONS", ".blend")

	v.SetDefault("CONSISTENCY_BASE_DELAY", "500ms")
	v.SetDefault("CONSISTENCY_FACTOR", 1.5)
	v.SetDefault("CONSISTENCY_MAX_DELAY", "5s")
	v.SetDefault("CONSISTENCY_MAX_ATTEMPTS", 5)
	v.SetDefault("CONSISTENCY_MARKER_TTL", "10s")

	v.SetDefault("AUTO_TRIGGER_SETTLE_DELAY", "2s")
	v.SetDefault("AUTO_TRIGGER_PROBE_ON_ARM", true)
	v.SetDefault("AUTO_TRIGGER_LOCK_TTL", "10m")
	v.SetDefault("AUTO_TRIGGER_MAX_LAG_RETRIES", 3)

	v.SetDefault("EVENTS_ENABLED", false)
	v.SetDefault("EVENTS_LIST_KEY", "asset-lifecycle:events")

	// Env
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:               v.GetString("SERVER_HOST"),
			Port:               v.GetInt("SERVER_PORT"),
			AllowedOrigins:     splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
			MaxMultipartMemory: v.GetInt64("SERVER_MAX_MULTIPART_MEMORY"),
		},
		Database: DatabaseConfig{
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetInt("DB_PORT"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			Name:           v.GetString("DB_NAME"),
			SSLMode:        v.GetString("DB_SSLMODE"),
			ReadURL:        v.GetString("DB_READ_URL"),
			MaxConns:       v.GetInt32("DB_MAX_CONNS"),
			MinConns:       v.GetInt32("DB_MIN_CONNS"),
			AutoMigrate:    v.GetBool("DB_AUTO_MIGRATE"),
			AssignmentRole: v.GetString("DB_ASSIGNMENT_ROLE"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		Storage: StorageConfig{
			Endpoint:      v.GetString("STORAGE_ENDPOINT"),
			AccessKey:     v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:     v.GetString("STORAGE_SECRET_KEY"),
			Bucket:        v.GetString("STORAGE_BUCKET"),
			UseSSL:        v.GetBool("STORAGE_USE_SSL"),
			PublicBaseURL: v.GetString("STORAGE_PUBLIC_BASE_URL"),
		},
		Redis: RedisConfig{
			Enabled:    v.GetBool("REDIS_ENABLED"),
			Addr:       v.GetString("REDIS_ADDR"),
			Password:   v.GetString("REDIS_PASSWORD"),
			DB:         v.GetInt("REDIS_DB"),
			LockPrefix: v.GetString("REDIS_LOCK_PREFIX"),
		},
		Review: ReviewConfig{
			Enabled: v.GetBool("REVIEW_ENABLED"),
			URL:     v.GetString("REVIEW_URL"),
			Token:   v.GetString("REVIEW_TOKEN"),
			Timeout: v.GetDuration("REVIEW_TIMEOUT"),
		},
		Upload: UploadConfig{
			ModelMaxBytes:    v.GetInt64("UPLOAD_MODEL_MAX_BYTES"),
			SourceMaxBytes:   v.GetInt64("UPLOAD_SOURCE_MAX_BYTES"),
			ModelExtensions:  splitList(v.GetString("UPLOAD_MODEL_EXTENSIONS")),
			SourceExtensions: splitList(v.GetString("UPLOAD_SOURCE_EXTENSIONS")),
		},
		Consistency: ConsistencyConfig{
			BaseDelay:   v.GetDuration("CONSISTENCY_BASE_DELAY"),
			Factor:      v.GetFloat64("CONSISTENCY_FACTOR"),
			MaxDelay:    v.GetDuration("CONSISTENCY_MAX_DELAY"),
			MaxAttempts: v.GetInt("CONSISTENCY_MAX_ATTEMPTS"),
			MarkerTTL:   v.GetDuration("CONSISTENCY_MARKER_TTL"),
		},
		AutoTrigger: AutoTriggerConfig{
			SettleDelay:   v.GetDuration("AUTO_TRIGGER_SETTLE_DELAY"),
			ProbeOnArm:    v.GetBool("AUTO_TRIGGER_PROBE_ON_ARM"),
			LockTTL:       v.GetDuration("AUTO_TRIGGER_LOCK_TTL"),
			MaxLagRetries: v.GetInt("AUTO_TRIGGER_MAX_LAG_RETRIES"),
		},
		Events: EventsConfig{
			Enabled: v.GetBool("EVENTS_ENABLED"),
			ListKey: v.GetString("EVENTS_LIST_KEY"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Consistency.MaxAttempts < 1 {
		return fmt.Errorf("CONSISTENCY_MAX_ATTEMPTS must be at least 1, got %d", c.Consistency.MaxAttempts)
	}
	if c.Consistency.Factor < 1 {
		return fmt.Errorf("CONSISTENCY_FACTOR must be at least 1, got %v", c.Consistency.Factor)
	}
	if c.Upload.ModelMaxBytes <= 0 || c.Upload.SourceMaxBytes <= 0 {
		return fmt.Errorf("upload size caps must be positive")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
