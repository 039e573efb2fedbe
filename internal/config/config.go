// Package config loads mealchat configuration from an optional YAML file
// plus environment variables (environment wins).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Vision provider names.
const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Vision inference
	VisionProvider string
	VisionModel    string
	GeminiAPIKey   string
	OllamaHost     string
	VisionTimeout  time.Duration

	// Image fetch
	ImageFetchTimeout time.Duration

	// HTTP server
	ServerPort string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors the optional mealchat.yaml layout.
type fileConfig struct {
	SurrealDB struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"user"`
		Pass      string `yaml:"pass"`
		AuthLevel string `yaml:"auth_level"`
	} `yaml:"surrealdb"`
	Vision struct {
		Provider     string `yaml:"provider"`
		Model        string `yaml:"model"`
		GeminiAPIKey string `yaml:"gemini_api_key"`
		OllamaHost   string `yaml:"ollama_host"`
	} `yaml:"vision"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads configuration from MEALCHAT_CONFIG (YAML, optional) and
// environment variables. A missing config file path is fine; a present but
// unparseable file is an error.
func Load() (Config, error) {
	var fc fileConfig
	if path := os.Getenv("MEALCHAT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg := Config{
		SurrealDBURL:       pick("SURREALDB_URL", fc.SurrealDB.URL, "ws://localhost:8000/rpc"),
		SurrealDBNamespace: pick("SURREALDB_NAMESPACE", fc.SurrealDB.Namespace, "mealchat"),
		SurrealDBDatabase:  pick("SURREALDB_DATABASE", fc.SurrealDB.Database, "chat"),
		SurrealDBUser:      pick("SURREALDB_USER", fc.SurrealDB.User, "root"),
		SurrealDBPass:      pick("SURREALDB_PASS", fc.SurrealDB.Pass, "root"),
		SurrealDBAuthLevel: pick("SURREALDB_AUTH_LEVEL", fc.SurrealDB.AuthLevel, "root"),

		VisionProvider: pick("MEALCHAT_VISION_PROVIDER", fc.Vision.Provider, ProviderGoogleAI),
		VisionModel:    pick("MEALCHAT_VISION_MODEL", fc.Vision.Model, "gemini-2.5-flash"),
		// An empty key is a valid state: the vision client answers
		// "no result" instead of calling out.
		GeminiAPIKey: pick("GEMINI_API_KEY", fc.Vision.GeminiAPIKey, ""),
		OllamaHost:   pick("OLLAMA_HOST", fc.Vision.OllamaHost, "http://localhost:11434"),

		VisionTimeout:     parseDuration(getEnv("MEALCHAT_VISION_TIMEOUT", "60s"), 60*time.Second),
		ImageFetchTimeout: parseDuration(getEnv("MEALCHAT_IMAGE_FETCH_TIMEOUT", "15s"), 15*time.Second),

		ServerPort: pick("MEALCHAT_SERVER_PORT", fc.Server.Port, "8490"),

		LogFile:  pick("MEALCHAT_LOG_FILE", fc.Log.File, "/tmp/mealchat.log"),
		LogLevel: parseLogLevel(pick("MEALCHAT_LOG_LEVEL", fc.Log.Level, "INFO")),
	}

	return cfg, nil
}

// pick returns the env value if set, then the file value, then the default.
func pick(envKey, fileVal, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if fileVal != "" {
		return fileVal
	}
	return defaultVal
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
