package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CacheTTL is how long an aggregated snapshot is served before a refresh.
const CacheTTL = 10 * time.Minute

// MinPolitenessDelay is the floor for the pause between detail-page requests
// to one agency.
const MinPolitenessDelay = 200 * time.Millisecond

// Config holds all application configuration loaded from environment variables.
type Config struct {
	UserAgent       string
	IndexTimeout    time.Duration
	DetailTimeout   time.Duration
	PolitenessDelay time.Duration
	MaxListings     int
	MaxRetries      int
	PriceMin        int
	PriceMax        int
	FallbackAge     time.Duration
	Timezone        string

	RefreshInterval time.Duration
	HTTPAddr        string
	AgenciesFile    string
	LogLevel        string

	CSVOutputPath string

	ArchiveEnabled   bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	TelegramToken  string
	TelegramChatID int64

	ChromeBin string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		UserAgent: getEnv("USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		IndexTimeout:    getEnvDuration("INDEX_TIMEOUT", 30*time.Second),
		DetailTimeout:   getEnvDuration("DETAIL_TIMEOUT", 15*time.Second),
		PolitenessDelay: getEnvDuration("POLITENESS_DELAY", 500*time.Millisecond),
		MaxListings:     getEnvInt("MAX_LISTINGS", 15),
		MaxRetries:      getEnvInt("MAX_RETRIES", 2),
		PriceMin:        getEnvInt("PRICE_MIN", 400),
		PriceMax:        getEnvInt("PRICE_MAX", 3500),
		FallbackAge:     getEnvDuration("FALLBACK_DATE_AGE", 7*24*time.Hour),
		Timezone:        getEnv("TIMEZONE", "Europe/Amsterdam"),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", CacheTTL),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		AgenciesFile:    getEnv("AGENCIES_FILE", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/listings.csv"),

		ArchiveEnabled:   getEnvBool("ARCHIVE_POSTGRES", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID: int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),

		ChromeBin: getEnv("CHROME_BIN", ""),
	}

	if cfg.PolitenessDelay < MinPolitenessDelay {
		log.Printf("[config] POLITENESS_DELAY %v below minimum, using %v", cfg.PolitenessDelay, MinPolitenessDelay)
		cfg.PolitenessDelay = MinPolitenessDelay
	}
	if cfg.MaxListings < 1 {
		cfg.MaxListings = 15
	}
	if cfg.PriceMin > cfg.PriceMax {
		cfg.PriceMin, cfg.PriceMax = cfg.PriceMax, cfg.PriceMin
	}

	return cfg
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TelegramEnabled reports whether new-listing notifications go to Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("30s", "10m") or a bare number of
// milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
