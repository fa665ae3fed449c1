package weather

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Report is the current forecast for one location.
type Report struct {
	City        string `json:"city"`
	Date        string `json:"date"`
	TempC       int    `json:"temp_c"`
	Description string `json:"description"`
	WindSpeed   string `json:"wind_speed"`
	Sunrise     string `json:"sunrise"`
	Sunset      string `json:"sunset"`
}

// Provider looks up the weather for a location such as "Viamão,RS".
type Provider interface {
	FetchWeather(ctx context.Context, location string) (Report, error)
}

// Config controls provider construction.
type Config struct {
	Mode    string
	URL     string
	APIKey  string
	Timeout time.Duration
}

// NewProvider returns the provider selected by cfg.Mode. In auto mode the
// HTTP provider is used when an API key is configured, otherwise the mock.
func NewProvider(cfg Config) (Provider, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" && strings.TrimSpace(cfg.URL) != "" {
			return NewHTTPProvider(cfg.URL, cfg.APIKey, cfg.Timeout), "http", nil
		}
		return NewMockProvider(), "mock", nil
	case "http":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, "", fmt.Errorf("weather url is required for http mode")
		}
		return NewHTTPProvider(cfg.URL, cfg.APIKey, cfg.Timeout), "http", nil
	case "mock":
		return NewMockProvider(), "mock", nil
	default:
		return nil, "", fmt.Errorf("unsupported weather provider mode %q", cfg.Mode)
	}
}
