package weather

import (
	"context"
	"strings"
)

// MockProvider returns a fixed report for local runs without an API key.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) FetchWeather(ctx context.Context, location string) (Report, error) {
	select {
	case <-ctx.Done():
		return Report{}, ctx.Err()
	default:
	}

	city := strings.TrimSpace(location)
	if i := strings.Index(city, ","); i > 0 {
		city = city[:i]
	}
	if city == "" {
		city = "Local"
	}
	return Report{
		City:        city,
		Date:        "01/01/2026",
		TempC:       24,
		Description: "Tempo limpo",
		WindSpeed:   "3.1 km/h",
		Sunrise:     "06:12 am",
		Sunset:      "07:48 pm",
	}, nil
}
