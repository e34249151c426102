package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type Config struct {
	AccessToken string

	RegistryURL string
	RegionURL   string
	DeviceName  string

	Store  string
	DBPath string

	ListenAddr string
	LogLevel   string

	ICEServers  []string
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	HTTPTimeout time.Duration
}

// Load reads .env when present, then the environment. Every problem is
// reported at once.
func Load() (Config, error) {
	_ = godotenv.Load()

	var errs []error
	c := Config{
		AccessToken: os.Getenv("PHONE_ACCESS_TOKEN"),
		RegistryURL: getEnv("PHONE_DEVICE_REGISTRY_URL", "https://wdm-a.wbx2.com/wdm/api/v1/devices"),
		RegionURL:   getEnv("PHONE_REGION_URL", "https://ds.ciscospark.com/v1/region"),
		DeviceName:  getEnv("PHONE_DEVICE_NAME", hostname()),
		Store:       getEnv("PHONE_STORE", StoreSQLite),
		DBPath:      getEnv("PHONE_DB_PATH", "./data/phone.db"),
		ListenAddr:  getEnv("PHONE_LISTEN_ADDR", "127.0.0.1:8080"),
		LogLevel:    getEnv("PHONE_LOG_LEVEL", "info"),
		ICEServers:  splitList(getEnv("PHONE_ICE_SERVERS", "stun:stun.l.google.com:19302")),
	}
	c.BackoffMin, errs = duration(errs, "PHONE_BACKOFF_MIN", 500*time.Millisecond)
	c.BackoffMax, errs = duration(errs, "PHONE_BACKOFF_MAX", 32*time.Second)
	c.HTTPTimeout, errs = duration(errs, "PHONE_HTTP_TIMEOUT", 30*time.Second)

	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.AccessToken == "" {
		errs = append(errs, errors.New("PHONE_ACCESS_TOKEN is required"))
	}
	if c.RegistryURL == "" {
		errs = append(errs, errors.New("PHONE_DEVICE_REGISTRY_URL is required"))
	}
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("PHONE_DB_PATH is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("PHONE_STORE must be one of memory, sqlite, got %q", c.Store))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("PHONE_LOG_LEVEL: %w", err))
	}
	if c.BackoffMin <= 0 {
		errs = append(errs, errors.New("PHONE_BACKOFF_MIN must be positive"))
	}
	if c.BackoffMax < c.BackoffMin {
		errs = append(errs, errors.New("PHONE_BACKOFF_MAX must not be smaller than PHONE_BACKOFF_MIN"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("PHONE_HTTP_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Level is the parsed LogLevel. Validate guarantees it parses.
func (c Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func duration(errs []error, key string, fallback time.Duration) (time.Duration, []error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, errs
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, append(errs, fmt.Errorf("%s: %w", key, err))
	}
	return d, errs
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "yaphone"
}
