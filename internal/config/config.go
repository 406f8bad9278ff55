package config

import (
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                int
	APIURL              string // Explicit inference service base URL; empty means derive from the page host
	PublicScheme        string
	PublicHost          string
	APIHostSubstitution bool // Use the localhost-substitution fallback instead of scheme://host:8000
	LogDirectory        string
	DatabasePath        string
	ImageDirectory      string
	HistoryEnabled      bool
	ArchiveBufferLimit  int
	ArchiveFlushSeconds int
	SessionIdleMinutes  int
	ModelPath           string // On-device model; empty disables the local runner
	LabelsPath          string
	ONNXRuntimeLibrary  string
	AdminPassword       string // Guards history and logs; empty locks them
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                getEnvAsInt("PORT", 8080),
		APIURL:              getEnv("API_URL", ""),
		PublicScheme:        getEnv("PUBLIC_SCHEME", "http"),
		PublicHost:          getEnv("PUBLIC_HOST", "localhost"),
		APIHostSubstitution: getEnvAsBool("API_HOST_SUBSTITUTION", false),
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DatabasePath:        getEnv("DB_PATH", filepath.Join(".", "data", "history.db")),
		ImageDirectory:      getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		HistoryEnabled:      getEnvAsBool("HISTORY_ENABLED", true),
		ArchiveBufferLimit:  getEnvAsInt("BUFFER_LIMIT", 10),
		ArchiveFlushSeconds: getEnvAsInt("FLUSH_INTERVAL", 30),
		SessionIdleMinutes:  getEnvAsInt("SESSION_IDLE_MINUTES", 120),
		ModelPath:           getEnv("MODEL_PATH", ""),
		LabelsPath:          getEnv("LABELS_PATH", ""),
		ONNXRuntimeLibrary:  getEnv("ONNXRUNTIME_LIB", ""),
		AdminPassword:       getEnv("ADMIN_PASSWORD", ""),
	}
}

// PageURL is the address the front-end is served from. It stands in for the
// browser's window.location when the API base URL has to be derived.
func (c *Config) PageURL() *url.URL {
	host := c.PublicHost
	if c.Port != 80 && c.Port != 443 {
		host = net.JoinHostPort(c.PublicHost, strconv.Itoa(c.Port))
	}
	return &url.URL{Scheme: c.PublicScheme, Host: host}
}

func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.ArchiveFlushSeconds) * time.Second
}

func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
