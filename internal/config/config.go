package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL       string
	QueueDSN          string
	SchedulerInterval int // seconds
	SyncInterval      int // seconds
	ShutdownTimeout   int // seconds
	GitHubBaseURL     string
	GitLabBaseURL     string
	LicenseKey        string
	LicensePublicKey  string // path to an ed25519 public key file, optional
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	licenseKey := os.Getenv("LICENSE_KEY")
	if licenseKey == "" {
		fmt.Println("Warning: LICENSE_KEY not set, permission syncing will not run")
	}

	return &Config{
		DatabaseURL:       dbURL,
		QueueDSN:          getEnv("QUEUE_DSN", "memory://"),
		SchedulerInterval: getEnvInt("SCHEDULER_INTERVAL", 5),
		SyncInterval:      getEnvInt("SYNC_INTERVAL", 86400), // resync once a day
		ShutdownTimeout:   getEnvInt("SHUTDOWN_TIMEOUT", 30),
		GitHubBaseURL:     getEnv("GITHUB_BASE_URL", "https://api.github.com"),
		GitLabBaseURL:     getEnv("GITLAB_BASE_URL", "https://gitlab.com/api/v4"),
		LicenseKey:        licenseKey,
		LicensePublicKey:  os.Getenv("LICENSE_PUBLIC_KEY_PATH"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Printf("Warning: %s is not a number, using default %d\n", key, fallback)
		return fallback
	}
	return n
}
