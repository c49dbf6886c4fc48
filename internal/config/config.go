package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port               string
	DatabaseURL        string
	StoreDriver        string
	AdminPassword      string
	AdminPasswordHash  string
	JWTSecret          string
	JWTTTL             time.Duration
	CORSAllowedOrigins []string
	EventTimezone      string
	RateLimitPerMinute int
	RateLimitBurst     int
	TrustProxyHeaders  bool
	RedisURL           string
	LogLevel           string
	ShutdownTimeout    time.Duration
}

// LoadDotEnv reads .env files into the environment without overriding
// variables that are already set. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER")))
	if driver == "" {
		driver = DriverPostgres
	}
	timezone := os.Getenv("EVENT_TIMEZONE")
	if timezone == "" {
		timezone = "Asia/Tokyo"
	}

	return Config{
		Port:               port,
		DatabaseURL:        os.Getenv("DB_DSN"),
		StoreDriver:        driver,
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		AdminPasswordHash:  os.Getenv("ADMIN_PASSWORD_HASH"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTTTL:             time.Duration(readInt("JWT_TTL_HOURS", 12)) * time.Hour,
		CORSAllowedOrigins: readList("CORS_ALLOWED_ORIGINS"),
		EventTimezone:      timezone,
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 30),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 10),
		TrustProxyHeaders:  readBool("TRUST_PROXY_HEADERS", false),
		RedisURL:           os.Getenv("REDIS_URL"),
		LogLevel:           readString("LOG_LEVEL", "info"),
		ShutdownTimeout:    readDurationSeconds("SHUTDOWN_TIMEOUT_SECONDS", 10),
	}
}

// Location resolves EventTimezone, falling back to a fixed JST offset when
// the zone database is unavailable.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.EventTimezone)
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

func readString(key, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	return raw
}

func readList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
