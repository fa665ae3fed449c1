package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lavanderia-bot/laundrybot/internal/reliability"
)

var ErrEmptyReport = errors.New("weather response has no results")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("weather http status %d: %s", e.Code, e.Body)
}

func (e *StatusError) HTTPStatus() int { return e.Code }

// Retryable reports whether the upstream would likely succeed on a later call.
func (e *StatusError) Retryable() bool {
	return reliability.IsRetryableHTTPStatus(e.Code)
}

// HTTPProvider queries an HG Brasil compatible weather endpoint.
type HTTPProvider struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPProvider(endpoint, apiKey string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		url:    strings.TrimSpace(endpoint),
		apiKey: strings.TrimSpace(apiKey),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type hgResponse struct {
	ValidKey bool      `json:"valid_key"`
	Results  *hgResult `json:"results"`
}

type hgResult struct {
	City        string `json:"city"`
	Date        string `json:"date"`
	Temp        int    `json:"temp"`
	Description string `json:"description"`
	WindSpeedy  string `json:"wind_speedy"`
	Sunrise     string `json:"sunrise"`
	Sunset      string `json:"sunset"`
}

func (p *HTTPProvider) FetchWeather(ctx context.Context, location string) (Report, error) {
	u, err := url.Parse(p.url)
	if err != nil {
		return Report{}, fmt.Errorf("parse weather url: %w", err)
	}
	q := u.Query()
	if p.apiKey != "" {
		q.Set("key", p.apiKey)
	}
	q.Set("city_name", location)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Report{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Report{}, &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload hgResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return Report{}, fmt.Errorf("decode response: %w", err)
	}
	if payload.Results == nil || strings.TrimSpace(payload.Results.City) == "" {
		return Report{}, ErrEmptyReport
	}

	r := payload.Results
	return Report{
		City:        r.City,
		Date:        r.Date,
		TempC:       r.Temp,
		Description: r.Description,
		WindSpeed:   r.WindSpeedy,
		Sunrise:     r.Sunrise,
		Sunset:      r.Sunset,
	}, nil
}
