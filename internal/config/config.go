package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Catalog and transport backend names.
const (
	BackendMySQL   = "mysql"
	BackendRedis   = "redis"
	BackendMemory  = "memory"
	BackendDiscord = "discord"
	BackendMinIO   = "minio"
)

// Config holds all application configuration
type Config struct {
	// Service configuration
	ServicePort string
	ChunkSizeMB int
	ServiceName string
	LogLevel    string
	LogFormat   string
	// IndexMaxAge bounds how long GET / serves the cached root view.
	IndexMaxAge time.Duration

	// Backend selection
	CatalogBackend   string
	TransportBackend string

	// Discord configuration
	DiscordToken     string
	DiscordChannelID string

	// MinIO configuration
	MinIOEndpoint    string
	MinIOAccessKey   string
	MinIOSecretKey   string
	MinIOBucketName  string
	MinIOUseSSL      bool
	AttachmentURLTTL time.Duration

	// TiDB configuration
	TiDBHost     string
	TiDBPort     string
	TiDBUser     string
	TiDBPassword string
	TiDBDatabase string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Observability
	TracingEnabled bool
	JaegerEndpoint string
	MetricsEnabled bool
}

var defaults = map[string]interface{}{
	"SERVICE_PORT":       "3000",
	"CHUNK_SIZE_MB":      25,
	"SERVICE_NAME":       "discloud",
	"LOG_LEVEL":          "info",
	"LOG_FORMAT":         "json",
	"INDEX_MAX_AGE":      "1m",
	"CATALOG_BACKEND":    BackendMySQL,
	"TRANSPORT_BACKEND":  BackendDiscord,
	"DISCORD_TOKEN":      "",
	"DISCORD_CHANNEL_ID": "",
	"MINIO_ENDPOINT":     "localhost:9000",
	"MINIO_ACCESS_KEY":   "minioadmin",
	"MINIO_SECRET_KEY":   "minioadmin",
	"MINIO_BUCKET_NAME":  "discloud",
	"MINIO_USE_SSL":      false,
	"ATTACHMENT_URL_TTL": "1h",
	"TIDB_HOST":          "localhost",
	"TIDB_PORT":          "4000",
	"TIDB_USER":          "root",
	"TIDB_PASSWORD":      "",
	"TIDB_DATABASE":      "discloud",
	"REDIS_HOST":         "localhost",
	"REDIS_PORT":         "6379",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"TRACING_ENABLED":    false,
	"JAEGER_ENDPOINT":    "localhost:4318",
	"METRICS_ENABLED":    true,
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. If CONFIG_FILE is set, that YAML file is read first and the
// environment still overrides it.
func LoadConfig() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	config := &Config{
		ServicePort: v.GetString("SERVICE_PORT"),
		ChunkSizeMB: v.GetInt("CHUNK_SIZE_MB"),
		ServiceName: v.GetString("SERVICE_NAME"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   v.GetString("LOG_FORMAT"),
		IndexMaxAge: v.GetDuration("INDEX_MAX_AGE"),

		CatalogBackend:   strings.ToLower(v.GetString("CATALOG_BACKEND")),
		TransportBackend: strings.ToLower(v.GetString("TRANSPORT_BACKEND")),

		DiscordToken:     v.GetString("DISCORD_TOKEN"),
		DiscordChannelID: v.GetString("DISCORD_CHANNEL_ID"),

		MinIOEndpoint:    v.GetString("MINIO_ENDPOINT"),
		MinIOAccessKey:   v.GetString("MINIO_ACCESS_KEY"),
		MinIOSecretKey:   v.GetString("MINIO_SECRET_KEY"),
		MinIOBucketName:  v.GetString("MINIO_BUCKET_NAME"),
		MinIOUseSSL:      v.GetBool("MINIO_USE_SSL"),
		AttachmentURLTTL: v.GetDuration("ATTACHMENT_URL_TTL"),

		TiDBHost:     v.GetString("TIDB_HOST"),
		TiDBPort:     v.GetString("TIDB_PORT"),
		TiDBUser:     v.GetString("TIDB_USER"),
		TiDBPassword: v.GetString("TIDB_PASSWORD"),
		TiDBDatabase: v.GetString("TIDB_DATABASE"),

		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetString("REDIS_PORT"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		TracingEnabled: v.GetBool("TRACING_ENABLED"),
		JaegerEndpoint: v.GetString("JAEGER_ENDPOINT"),
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks backend names and the settings each backend requires.
func (c *Config) Validate() error {
	if c.ChunkSizeMB < 1 {
		return fmt.Errorf("CHUNK_SIZE_MB must be positive, got %d", c.ChunkSizeMB)
	}

	switch c.CatalogBackend {
	case BackendMySQL, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown CATALOG_BACKEND %q", c.CatalogBackend)
	}

	switch c.TransportBackend {
	case BackendDiscord:
		if c.DiscordToken == "" || c.DiscordChannelID == "" {
			return fmt.Errorf("discord transport requires DISCORD_TOKEN and DISCORD_CHANNEL_ID")
		}
	case BackendMinIO, BackendMemory:
	default:
		return fmt.Errorf("unknown TRANSPORT_BACKEND %q", c.TransportBackend)
	}
	return nil
}

// ChannelID is the channel new attachments are posted to. Non-Discord
// transports use the bucket name as their single channel.
func (c *Config) ChannelID() string {
	if c.TransportBackend == BackendDiscord {
		return c.DiscordChannelID
	}
	return c.MinIOBucketName
}

// GetDSN returns the TiDB connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.TiDBUser,
		c.TiDBPassword,
		c.TiDBHost,
		c.TiDBPort,
		c.TiDBDatabase,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// GetChunkSizeBytes returns chunk size in bytes
func (c *Config) GetChunkSizeBytes() int64 {
	return int64(c.ChunkSizeMB) * 1024 * 1024
}
