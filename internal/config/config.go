package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Logger   LoggerConfig
	LLM      LLMConfig
	Tracing  TracingConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	CorsAllowedOrigins string
	// ConfigFile is the optional TOML file holding generation defaults
	ConfigFile string
}

type DatabaseConfig struct {
	Driver     string // "sqlite" or "postgres"
	Connection string
	LogLevel   string // gorm logger level: silent, error, warn, info
}

type CacheConfig struct {
	SessionCapacity int
}

type LoggerConfig struct {
	FilePath      string
	TraceFilePath string
	Level         string
}

type LLMConfig struct {
	ModelsDir  string
	Generation GenerationConfig
}

// GenerationConfig mirrors the [generation] table of the TOML config file.
type GenerationConfig struct {
	ModelPath     string    `toml:"model_path"`
	ContextSize   int       `toml:"context_size"`
	Threads       int       `toml:"threads"`
	MaxTokens     int       `toml:"max_tokens"`
	Temperature   float64   `toml:"temperature"`
	TopP          float64   `toml:"top_p"`
	TopK          int       `toml:"top_k"`
	RepeatPenalty float64   `toml:"repeat_penalty"`
	GPU           GPUConfig `toml:"gpu"`
}

type GPUConfig struct {
	Enabled bool `toml:"enabled"`
	Layers  int  `toml:"layers"`
	Device  int  `toml:"device"`
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type AuthConfig struct {
	// APISecret enables bearer token checks on the local API when non-empty
	APISecret string
}

func DefaultGeneration() GenerationConfig {
	return GenerationConfig{
		ModelPath:     "models/Qwen3-1.7B-IQ4_XS.gguf",
		ContextSize:   2048,
		Threads:       4,
		MaxTokens:     512,
		Temperature:   0.8,
		TopP:          0.9,
		TopK:          40,
		RepeatPenalty: 1.1,
	}
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	configFile := getEnv("ASSISTANT_CONFIG", "assistant.toml")

	generation := DefaultGeneration()
	if fileCfg, err := LoadFile(configFile); err == nil {
		generation = fileCfg.Generation
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to read %s: %v (using defaults)", configFile, err)
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3917"),
			Environment:        getEnv("GO_ENV", "development"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:1420"),
			ConfigFile:         configFile,
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Connection: getEnv("DB_CONNECTION_STRING", "data/assistant.db"),
			LogLevel:   getEnv("DB_LOG_LEVEL", "warn"),
		},
		Cache: CacheConfig{
			SessionCapacity: getEnvAsInt("SESSION_CACHE_SIZE", 64),
		},
		Logger: LoggerConfig{
			FilePath:      getEnv("LOG_FILE_PATH", "logs/assistant.log"),
			TraceFilePath: getEnv("TRACE_LOG_FILE_PATH", "logs/generation.log"),
			Level:         getEnv("LOG_LEVEL", "info"),
		},
		LLM: LLMConfig{
			ModelsDir:  getEnv("MODELS_DIR", "models"),
			Generation: applyGenerationEnv(generation),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "local-assistant"),
		},
		Auth: AuthConfig{
			APISecret: getEnv("API_SECRET", ""),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func applyGenerationEnv(g GenerationConfig) GenerationConfig {
	g.ModelPath = getEnv("LLM_MODEL_PATH", g.ModelPath)
	g.ContextSize = getEnvAsInt("LLM_CONTEXT_SIZE", g.ContextSize)
	g.Threads = getEnvAsInt("LLM_THREADS", g.Threads)
	g.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", g.MaxTokens)
	g.Temperature = getEnvAsFloat("LLM_TEMPERATURE", g.Temperature)
	g.TopP = getEnvAsFloat("LLM_TOP_P", g.TopP)
	g.TopK = getEnvAsInt("LLM_TOP_K", g.TopK)
	g.RepeatPenalty = getEnvAsFloat("LLM_REPEAT_PENALTY", g.RepeatPenalty)
	g.GPU.Enabled = getEnvAsBool("LLM_USE_GPU", g.GPU.Enabled)
	g.GPU.Layers = getEnvAsInt("LLM_GPU_LAYERS", g.GPU.Layers)
	g.GPU.Device = getEnvAsInt("LLM_MAIN_GPU", g.GPU.Device)
	return g
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
