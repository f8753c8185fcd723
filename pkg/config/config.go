package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DB struct {
		Host     string
		Port     int
		User     string
		Password string
		Database string
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	Services struct {
		RideService  int
		AdminService int
	}
	JWT struct {
		Secret string
		TTL    time.Duration
	}
	Simulation struct {
		TickInterval    time.Duration
		SpeedKmh        float64
		BoardingDelay   time.Duration
		AcceptanceDelay time.Duration
		SpawnOffsetKm   float64
	}
	Routing struct {
		Provider    string // "mapbox" or "straight"
		BaseURL     string
		Profile     string
		AccessToken string
		Timeout     time.Duration
	}
	// RateLimit throttles ride requests per passenger.
	RateLimit struct {
		Interval time.Duration
		Burst    int
	}
	// SurgeMultiplier overrides the catalog surge when positive.
	SurgeMultiplier float64
	// Storage selects the ride repository: "postgres" or "memory".
	Storage         string
	CatalogPath     string
}

// LoadConfig reads filename into the environment (when it exists) and
// builds the configuration from environment variables and defaults.
func LoadConfig(filename string) (*Config, error) {
	err := loadEnvFile(filename)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg := &Config{}
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.DB.User = getEnv("DB_USER", "ridehail_user")
	cfg.DB.Password = getEnv("DB_PASS", "ridehail_pass")
	cfg.DB.Database = getEnv("DB_NAME", "ridehail_db")
	cfg.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	cfg.RabbitMQ.Port = getEnvAsInt("RABBITMQ_PORT", 5672)
	cfg.RabbitMQ.User = getEnv("RABBITMQ_USER", "guest")
	cfg.RabbitMQ.Password = getEnv("RABBITMQ_PASS", "guest")
	cfg.Services.RideService = getEnvAsInt("SERVICES_RIDE_SERVICE", 3000)
	cfg.Services.AdminService = getEnvAsInt("ADMIN_SERVICE", 3004)
	cfg.JWT.Secret = getEnv("JWT_SECRET_KEY", "someone")
	cfg.JWT.TTL = getEnvAsDuration("JWT_TTL", time.Hour)
	cfg.Simulation.TickInterval = getEnvAsDuration("SIM_TICK_INTERVAL", 2*time.Second)
	cfg.Simulation.SpeedKmh = getEnvAsFloat("SIM_SPEED_KMH", 30)
	cfg.Simulation.BoardingDelay = getEnvAsDuration("SIM_BOARDING_DELAY", 3*time.Second)
	cfg.Simulation.AcceptanceDelay = getEnvAsDuration("SIM_ACCEPTANCE_DELAY", 2*time.Second)
	cfg.Simulation.SpawnOffsetKm = getEnvAsFloat("SIM_SPAWN_OFFSET_KM", 1.5)
	cfg.Routing.Provider = getEnv("ROUTING_PROVIDER", "mapbox")
	cfg.Routing.BaseURL = getEnv("ROUTING_BASE_URL", "https://api.mapbox.com/directions/v5/mapbox")
	cfg.Routing.Profile = getEnv("ROUTING_PROFILE", "driving")
	cfg.Routing.AccessToken = getEnv("ROUTING_ACCESS_TOKEN", "")
	cfg.Routing.Timeout = getEnvAsDuration("ROUTING_TIMEOUT", 10*time.Second)
	cfg.RateLimit.Interval = getEnvAsDuration("RATE_LIMIT_INTERVAL", 10*time.Second)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 5)
	cfg.SurgeMultiplier = getEnvAsFloat("SURGE_MULTIPLIER", 0)
	cfg.Storage = getEnv("STORAGE", "postgres")
	cfg.CatalogPath = getEnv("CATALOG_PATH", "configs/catalog.yaml")

	return cfg, nil
}

func loadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("could not open env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		// Trim spaces and ignore comments or empty lines
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Split into key=value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue // or return error if strict
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove optional surrounding quotes
		value = strings.Trim(value, `"'`)

		err := os.Setenv(key, value)
		if err != nil {
			return fmt.Errorf("could not set env var %s: %w", key, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading env file: %w", err)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("2s", "500ms").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
