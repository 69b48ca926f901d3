// Package config loads process configuration from environment variables.
// Settings are read once at startup and passed explicitly to the components
// that need them.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds all settings for the service.
type Config struct {
	// Postgres
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// QuestDB (telemetry sink)
	QuestDBHost     string
	QuestDBPort     string
	QuestDBUser     string
	QuestDBPassword string
	QuestDBTable    string

	// Server
	ServerPort string

	// SecretKey and Debug are part of the deployment environment
	// contract; no component consumes them in-process yet.
	SecretKey string
	Debug     bool
}

// Load reads configuration from the environment, filling in defaults for
// anything unset. When SECRET_KEY is missing a random one is generated.
func Load() *Config {
	return &Config{
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "api_test"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		QuestDBHost:     getEnv("QUESTDB_HOST", "localhost"),
		QuestDBPort:     getEnv("QUESTDB_PORT", "9000"),
		QuestDBUser:     os.Getenv("QUESTDB_USER"),
		QuestDBPassword: os.Getenv("QUESTDB_PASSWORD"),
		QuestDBTable:    getEnv("QUESTDB_DB", "logs"),

		ServerPort: getEnv("SERVER_PORT", "8080"),
		SecretKey:  getEnvFunc("SECRET_KEY", generateSecretKey),
		Debug:      getEnvBool("DEBUG", false),
	}
}

// PostgresURI builds the connection URI for the store. Credentials are
// omitted when not configured.
func (c *Config) PostgresURI() string {
	var credentials string
	switch {
	case c.PostgresUser != "" && c.PostgresPassword != "":
		credentials = fmt.Sprintf("%s:%s@", url.QueryEscape(c.PostgresUser), url.QueryEscape(c.PostgresPassword))
	case c.PostgresUser != "":
		credentials = fmt.Sprintf("%s@", url.QueryEscape(c.PostgresUser))
	case c.PostgresPassword != "":
		credentials = fmt.Sprintf(":%s@", url.QueryEscape(c.PostgresPassword))
	}

	return fmt.Sprintf("postgres://%s%s:%s/%s", credentials, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

// RedisAddr returns the host:port address of the cache.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// QuestDBAddr returns the host:port address of the telemetry sink.
func (c *Config) QuestDBAddr() string {
	return fmt.Sprintf("%s:%s", c.QuestDBHost, c.QuestDBPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFunc(key string, defaultFunc func() string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultFunc()
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func generateSecretKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("failed to generate secret key: %v", err))
	}
	return hex.EncodeToString(buf)
}
