package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverFile   = "file"
	StorageDriverMongo  = "mongo"
	StorageDriverMemory = "memory"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	StorageDriver string // "file", "mongo" or "memory"
	StoragePath   string // Directory holding the file-backed dashboard document
	StorageKey    string // Fixed key the dashboard collection is stored under

	RowHeight              int           // Pixel height of one grid row
	APITimeout             time.Duration // Timeout for remote data source calls
	DefaultRefreshInterval time.Duration // Poll interval for live sources without one
	MinRefreshInterval     time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "chainwatch"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "chainwatch"),

		StorageDriver: getEnv("STORAGE_DRIVER", StorageDriverFile),
		StoragePath:   getEnv("STORAGE_PATH", "./data"),
		StorageKey:    getEnv("STORAGE_KEY", "web3-dashboards"),

		RowHeight:              getEnvInt("RENDER_ROW_HEIGHT", 60),
		APITimeout:             getEnvDuration("API_TIMEOUT", 15*time.Second),
		DefaultRefreshInterval: getEnvDuration("DEFAULT_REFRESH_INTERVAL", 5*time.Second),
		MinRefreshInterval:     getEnvDuration("MIN_REFRESH_INTERVAL", time.Second),
	}, nil
}

func (c *Config) MongoEnabled() bool {
	return c.StorageDriver == StorageDriverMongo
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("Invalid %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Invalid %s=%q, using %s", key, value, fallback)
		return fallback
	}
	return d
}
