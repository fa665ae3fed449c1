package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config contains all runtime settings for the laundry bot.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool
	Timezone         string
	Location         *time.Location

	SessionLength   time.Duration
	WarningLead     time.Duration
	OpenHour        int
	CloseHour       int
	LaundryKeyword  string
	PackagesKeyword string
	ContentPath     string

	WeatherProvider string
	WeatherAPIURL   string
	WeatherAPIKey   string
	WeatherCity     string
	WeatherTimeout  time.Duration

	DatabaseURL string
	BridgeToken string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         bindAddr(),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "laundrybot"),
		Timezone:         envOrDefault("APP_TIMEZONE", "America/Sao_Paulo"),
		LaundryKeyword:   envOrDefault("LAUNDRY_GROUP_KEYWORD", "lavanderia"),
		PackagesKeyword:  envOrDefault("PACKAGES_GROUP_KEYWORD", "jk"),
		ContentPath:      stringsTrimSpace("LAUNDRY_CONTENT_PATH"),
		WeatherProvider:  envOrDefault("WEATHER_PROVIDER", "auto"),
		WeatherAPIURL:    envOrDefault("WEATHER_API_URL", "https://api.hgbrasil.com/weather"),
		WeatherAPIKey:    stringsTrimSpace("WEATHER_API_KEY"),
		WeatherCity:      envOrDefault("WEATHER_CITY", "Viamão,RS"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		BridgeToken:      stringsTrimSpace("BRIDGE_TOKEN"),
		ShutdownTimeout:  15 * time.Second,
		SessionLength:    2 * time.Hour,
		WarningLead:      10 * time.Minute,
		OpenHour:         7,
		CloseHour:        20,
		WeatherTimeout:   10 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionLength, err = durationFromEnv("LAUNDRY_SESSION_LENGTH", cfg.SessionLength)
	if err != nil {
		return Config{}, err
	}
	cfg.WarningLead, err = durationFromEnv("LAUNDRY_WARNING_LEAD", cfg.WarningLead)
	if err != nil {
		return Config{}, err
	}
	cfg.OpenHour, err = intFromEnv("LAUNDRY_OPEN_HOUR", cfg.OpenHour)
	if err != nil {
		return Config{}, err
	}
	cfg.CloseHour, err = intFromEnv("LAUNDRY_CLOSE_HOUR", cfg.CloseHour)
	if err != nil {
		return Config{}, err
	}
	cfg.WeatherTimeout, err = durationFromEnv("WEATHER_TIMEOUT", cfg.WeatherTimeout)
	if err != nil {
		return Config{}, err
	}

	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("APP_TIMEZONE parse error: %w", err)
	}

	if cfg.SessionLength <= 0 {
		return Config{}, fmt.Errorf("LAUNDRY_SESSION_LENGTH must be positive")
	}
	if cfg.WarningLead < 0 || cfg.WarningLead >= cfg.SessionLength {
		return Config{}, fmt.Errorf("LAUNDRY_WARNING_LEAD must be >= 0 and shorter than LAUNDRY_SESSION_LENGTH")
	}
	if cfg.OpenHour < 0 || cfg.CloseHour > 24 || cfg.OpenHour >= cfg.CloseHour {
		return Config{}, fmt.Errorf("LAUNDRY_OPEN_HOUR and LAUNDRY_CLOSE_HOUR must satisfy 0 <= open < close <= 24")
	}
	if strings.TrimSpace(cfg.LaundryKeyword) == "" {
		return Config{}, fmt.Errorf("LAUNDRY_GROUP_KEYWORD must not be empty")
	}
	if cfg.WeatherTimeout <= 0 {
		return Config{}, fmt.Errorf("WEATHER_TIMEOUT must be positive")
	}

	return cfg, nil
}

// bindAddr prefers APP_BIND_ADDR, then a bare PORT as set by hosting
// platforms.
func bindAddr() string {
	if v := stringsTrimSpace("APP_BIND_ADDR"); v != "" {
		return v
	}
	if port := stringsTrimSpace("PORT"); port != "" {
		return ":" + port
	}
	return ":3000"
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
