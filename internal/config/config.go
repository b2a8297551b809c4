// backend-go/internal/config/config.go
package config

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Cache     CacheConfig
	Engine    EngineConfig
	LLM       LLMConfig
	Storage   StorageConfig
	Blueprint BlueprintConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// MaxConcurrent bounds concurrent transactions
	MaxConcurrent int64
}

type AppConfig struct {
	ExportDir string
	LogLevel  string
	LogFormat string
}

type CacheConfig struct {
	Enabled             bool
	RedisURL            string
	RedisHost           string
	RedisPort           string
	RedisPassword       string
	RedisDB             int
	BlueprintTTLSeconds int
}

// EngineConfig tunes the planning engine worker pool
type EngineConfig struct {
	Workers            int
	HorizonCeiling     int
	ItemTimeoutSeconds int
}

// LLMConfig points the llm and custom forecast methods at a chat completion API.
// An empty BaseURL disables them; they then fall back to zero series.
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
	MaxRetries     int
}

// StorageConfig is the S3-compatible bucket for blueprint files and decision exports
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	Prefix    string
}

type BlueprintConfig struct {
	Dir            string
	Watch          bool
	DebounceMillis int
	ObjectPrefix   string
}

type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 120)
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "autoplan")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("DB_MAX_CONCURRENT", 10)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("APP_EXPORT_DIR", "./data/exports")
		viper.SetDefault("LOG_LEVEL", "info")
		viper.SetDefault("LOG_FORMAT", "console")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_BLUEPRINT_TTL_SECONDS", 300)
		viper.SetDefault("ENGINE_WORKERS", 8)
		viper.SetDefault("ENGINE_HORIZON_CEILING", 60)
		viper.SetDefault("ENGINE_ITEM_TIMEOUT_SECONDS", 60)
		viper.SetDefault("LLM_BASE_URL", "")
		viper.SetDefault("LLM_API_KEY", "")
		viper.SetDefault("LLM_MODEL", "gpt-4o-mini")
		viper.SetDefault("LLM_TIMEOUT_SECONDS", 30)
		viper.SetDefault("LLM_MAX_RETRIES", 2)
		viper.SetDefault("STORAGE_ENABLED", false)
		viper.SetDefault("STORAGE_ENDPOINT", "")
		viper.SetDefault("STORAGE_ACCESS_KEY", "")
		viper.SetDefault("STORAGE_SECRET_KEY", "")
		viper.SetDefault("STORAGE_BUCKET", "autoplan")
		viper.SetDefault("STORAGE_USE_SSL", true)
		viper.SetDefault("STORAGE_REGION", "")
		viper.SetDefault("STORAGE_PREFIX", "")
		viper.SetDefault("BLUEPRINT_DIR", "./blueprints")
		viper.SetDefault("BLUEPRINT_WATCH", true)
		viper.SetDefault("BLUEPRINT_DEBOUNCE_MS", 250)
		viper.SetDefault("BLUEPRINT_OBJECT_PREFIX", "blueprints/")
		viper.SetDefault("METRICS_ENABLED", true)
		viper.SetDefault("METRICS_NAMESPACE", "autoplan")

		// Read from environment variables
		viper.AutomaticEnv()

		ensureDir(viper.GetString("APP_EXPORT_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:          viper.GetString("DB_HOST"),
				Port:          viper.GetString("DB_PORT"),
				User:          viper.GetString("DB_USER"),
				Password:      viper.GetString("DB_PASSWORD"),
				DBName:        viper.GetString("DB_NAME"),
				SSLMode:       viper.GetString("DB_SSLMODE"),
				MaxConcurrent: viper.GetInt64("DB_MAX_CONCURRENT"),
			},
			App: AppConfig{
				ExportDir: viper.GetString("APP_EXPORT_DIR"),
				LogLevel:  viper.GetString("LOG_LEVEL"),
				LogFormat: viper.GetString("LOG_FORMAT"),
			},
			Cache: CacheConfig{
				Enabled:             viper.GetBool("CACHE_ENABLED"),
				RedisURL:            viper.GetString("REDIS_URL"),
				RedisHost:           viper.GetString("REDIS_HOST"),
				RedisPort:           viper.GetString("REDIS_PORT"),
				RedisPassword:       viper.GetString("REDIS_PASSWORD"),
				RedisDB:             viper.GetInt("REDIS_DB"),
				BlueprintTTLSeconds: viper.GetInt("CACHE_BLUEPRINT_TTL_SECONDS"),
			},
			Engine: EngineConfig{
				Workers:            viper.GetInt("ENGINE_WORKERS"),
				HorizonCeiling:     viper.GetInt("ENGINE_HORIZON_CEILING"),
				ItemTimeoutSeconds: viper.GetInt("ENGINE_ITEM_TIMEOUT_SECONDS"),
			},
			LLM: LLMConfig{
				BaseURL:        viper.GetString("LLM_BASE_URL"),
				APIKey:         viper.GetString("LLM_API_KEY"),
				Model:          viper.GetString("LLM_MODEL"),
				TimeoutSeconds: viper.GetInt("LLM_TIMEOUT_SECONDS"),
				MaxRetries:     viper.GetInt("LLM_MAX_RETRIES"),
			},
			Storage: StorageConfig{
				Enabled:   viper.GetBool("STORAGE_ENABLED"),
				Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
				AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
				SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
				Bucket:    viper.GetString("STORAGE_BUCKET"),
				UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
				Region:    viper.GetString("STORAGE_REGION"),
				Prefix:    viper.GetString("STORAGE_PREFIX"),
			},
			Blueprint: BlueprintConfig{
				Dir:            viper.GetString("BLUEPRINT_DIR"),
				Watch:          viper.GetBool("BLUEPRINT_WATCH"),
				DebounceMillis: viper.GetInt("BLUEPRINT_DEBOUNCE_MS"),
				ObjectPrefix:   viper.GetString("BLUEPRINT_OBJECT_PREFIX"),
			},
			Metrics: MetricsConfig{
				Enabled:   viper.GetBool("METRICS_ENABLED"),
				Namespace: viper.GetString("METRICS_NAMESPACE"),
			},
		}
	})

	return instance
}

// ItemTimeout is the engine per-item bound as a duration
func (c EngineConfig) ItemTimeout() time.Duration {
	return time.Duration(c.ItemTimeoutSeconds) * time.Second
}

// Timeout is the llm request timeout as a duration
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Debounce is the blueprint watcher quiet period
func (c BlueprintConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
