package environments

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Valkey    ValkeyConfig
	Directory DirectoryConfig
	Backend   BackendConfig
	Transport TransportConfig
	Protocol  ProtocolConfig
	Sweeper   SweeperConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type ValkeyConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Enabled reports whether a Valkey host was configured at all; without one
// the in-memory dedup cache is used.
func (c ValkeyConfig) Enabled() bool {
	return c.Host != ""
}

type DirectoryConfig struct {
	BaseURL       string
	Timeout       time.Duration
	MaxConcurrent int64
}

type BackendConfig struct {
	BaseURL        string
	MaxAttempts    int
	RetryWait      time.Duration
	AttemptTimeout time.Duration
}

type TransportConfig struct {
	GatewayURL string
	AuthKey    string
	Timeout    time.Duration
}

type ProtocolConfig struct {
	CountryPrefix string
	DedupWindow   time.Duration
	EventBudget   time.Duration
	// EntityNumbers seeds the sender-role registry with the validating
	// entity's known numbers; the ledger supplies the rest over time.
	EntityNumbers []string
}

type SweeperConfig struct {
	Interval    time.Duration
	RecentLimit int
}

type AuthConfig struct {
	InboundAPIKey      string
	TransactionsAPIKey string
	SweeperAPIKey      string
}

func Load() *Config {
	// Pick up a local .env when present; absent is fine in production.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: GetEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "3306"),
			User:     GetEnv("DB_USER", "fise"),
			Password: GetEnv("DB_PASSWORD", "fise123"),
			DBName:   GetEnv("DB_NAME", "fise_coupons"),
		},
		Valkey: ValkeyConfig{
			Host:     GetEnv("VALKEY_HOST", ""),
			Port:     GetEnv("VALKEY_PORT", "6379"),
			Password: GetEnv("VALKEY_PASSWORD", ""),
			DB:       GetEnvAsInt("VALKEY_DB", 0),
		},
		Directory: DirectoryConfig{
			BaseURL:       GetEnv("DIRECTORY_BASE_URL", "https://apiconsultas.example.net/api"),
			Timeout:       GetEnvAsDuration("DIRECTORY_TIMEOUT", 5*time.Second),
			MaxConcurrent: int64(GetEnvAsInt("DIRECTORY_MAX_CONCURRENT", 5)),
		},
		Backend: BackendConfig{
			BaseURL:        GetEnv("BACKEND_BASE_URL", "https://apiconsultas.example.net/api"),
			MaxAttempts:    GetEnvAsInt("BACKEND_MAX_ATTEMPTS", 3),
			RetryWait:      GetEnvAsDuration("BACKEND_RETRY_WAIT", 2*time.Second),
			AttemptTimeout: GetEnvAsDuration("BACKEND_ATTEMPT_TIMEOUT", 8*time.Second),
		},
		Transport: TransportConfig{
			GatewayURL: GetEnv("SMS_GATEWAY_URL", ""),
			AuthKey:    GetEnv("SMS_GATEWAY_AUTH_KEY", ""),
			Timeout:    GetEnvAsDuration("SMS_GATEWAY_TIMEOUT", 10*time.Second),
		},
		Protocol: ProtocolConfig{
			CountryPrefix: GetEnv("COUNTRY_PREFIX", "+51"),
			DedupWindow:   GetEnvAsDuration("DEDUP_WINDOW", 5*time.Minute),
			EventBudget:   GetEnvAsDuration("EVENT_BUDGET", 30*time.Second),
			EntityNumbers: GetEnvAsList("ENTITY_NUMBERS", nil),
		},
		Sweeper: SweeperConfig{
			Interval:    GetEnvAsDuration("SWEEPER_INTERVAL", 15*time.Minute),
			RecentLimit: GetEnvAsInt("SWEEPER_RECENT_LIMIT", 20),
		},
		Auth: AuthConfig{
			InboundAPIKey:      GetEnv("INBOUND_API_KEY", ""),
			TransactionsAPIKey: GetEnv("TRANSACTIONS_API_KEY", ""),
			SweeperAPIKey:      GetEnv("SWEEPER_API_KEY", ""),
		},
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func GetEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
