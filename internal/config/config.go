package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Provider exposes the configuration values the rest of the application
// depends on. Components accept this interface rather than the concrete
// Config so tests can substitute their own values.
type Provider interface {
	GetPort() string
	GetAllowedOrigin() string
	GetSessionSecret() string
	GetHistoryLimit() int
	GetDBURL() string
	GetDBNs() string
	GetDBDb() string
	GetDBUser() string
	GetDBPass() string
}

// Config holds all configuration for the application.
type Config struct {
	Port          string
	AllowedOrigin string
	SessionSecret string
	HistoryLimit  int
	DBUrl         string
	DBNs          string
	DBDb          string
	DBUser        string
	DBPass        string
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "4000"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		SessionSecret: getEnv("SESSION_SECRET", "huddle-dev-secret"),
		HistoryLimit:  getEnvInt("HISTORY_LIMIT", 50),
		DBUrl:         os.Getenv("SURREAL_URL"),
		DBNs:          os.Getenv("SURREAL_NS"),
		DBDb:          os.Getenv("SURREAL_DB"),
		DBUser:        os.Getenv("SURREAL_USER"),
		DBPass:        os.Getenv("SURREAL_PASS"),
	}

	if cfg.DBUrl == "" || cfg.DBNs == "" || cfg.DBDb == "" {
		log.Fatal("Required environment variables SURREAL_URL, SURREAL_NS, or SURREAL_DB are not set.")
	}

	return cfg
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
	if err != nil || n <= 0 {
		log.Printf("Invalid value %q for %s, using default %d", v, key, fallback)
		return fallback
	}
	return n
}

func (c *Config) GetPort() string          { return c.Port }
func (c *Config) GetAllowedOrigin() string { return c.AllowedOrigin }
func (c *Config) GetSessionSecret() string { return c.SessionSecret }
func (c *Config) GetHistoryLimit() int     { return c.HistoryLimit }
func (c *Config) GetDBURL() string         { return c.DBUrl }
func (c *Config) GetDBNs() string          { return c.DBNs }
func (c *Config) GetDBDb() string          { return c.DBDb }
func (c *Config) GetDBUser() string        { return c.DBUser }
func (c *Config) GetDBPass() string        { return c.DBPass }
