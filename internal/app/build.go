package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lavanderia-bot/laundrybot/internal/bridge"
	"github.com/lavanderia-bot/laundrybot/internal/clock"
	"github.com/lavanderia-bot/laundrybot/internal/config"
	"github.com/lavanderia-bot/laundrybot/internal/content"
	"github.com/lavanderia-bot/laundrybot/internal/httpapi"
	"github.com/lavanderia-bot/laundrybot/internal/laundry"
	"github.com/lavanderia-bot/laundrybot/internal/observability"
	"github.com/lavanderia-bot/laundrybot/internal/reliability"
	"github.com/lavanderia-bot/laundrybot/internal/store"
	"github.com/lavanderia-bot/laundrybot/internal/weather"
)

const storeConnectAttempts = 5

type BuildResult struct {
	Config      config.Config
	API         *httpapi.Server
	Laundry     *laundry.Service
	Router      *bridge.Router
	Hub         *bridge.Hub
	Store       store.Store
	Metrics     *observability.Metrics
	WeatherMode string

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// Policy derives the machine rules from configuration.
func Policy(cfg config.Config) laundry.Policy {
	p := laundry.DefaultPolicy()
	p.SessionLength = cfg.SessionLength
	p.WarningLead = cfg.WarningLead
	p.OpenHour = cfg.OpenHour
	p.CloseHour = cfg.CloseHour
	if cfg.Location != nil {
		p.Location = cfg.Location
	}
	return p
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	pack, err := content.Load(cfg.ContentPath)
	if err != nil {
		return nil, err
	}

	weatherProvider, weatherMode, err := weather.NewProvider(weather.Config{
		Mode:    cfg.WeatherProvider,
		URL:     cfg.WeatherAPIURL,
		APIKey:  cfg.WeatherAPIKey,
		Timeout: cfg.WeatherTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("weather provider init failed: %w", err)
	}

	st, err := connectStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	var hub *bridge.Hub
	service := laundry.NewService(laundry.ServiceConfig{
		Clock:           clock.Real(),
		Policy:          Policy(cfg),
		Content:         pack,
		Sink:            lazySink{hub: &hub},
		Weather:         weatherProvider,
		WeatherLocation: cfg.WeatherCity,
		Metrics:         metrics,
		Usage:           st,
	})

	router := bridge.NewRouter(bridge.RouterConfig{
		LaundryKeyword:  cfg.LaundryKeyword,
		PackagesKeyword: cfg.PackagesKeyword,
		Store:           st,
		Laundry:         service,
	})
	if err := router.Load(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	hub = bridge.NewHub(router, metrics)

	api := httpapi.New(cfg, service, router, hub, st, metrics)

	return &BuildResult{
		Config:      cfg,
		API:         api,
		Laundry:     service,
		Router:      router,
		Hub:         hub,
		Store:       st,
		Metrics:     metrics,
		WeatherMode: weatherMode,
		Cleanup:     st.Close,
	}, nil
}

// connectStore retries transient database failures at startup.
func connectStore(ctx context.Context, databaseURL string) (store.Store, error) {
	var lastErr error
	for attempt := 0; attempt < storeConnectAttempts; attempt++ {
		st, err := store.NewStore(ctx, databaseURL)
		if err == nil {
			return st, nil
		}
		lastErr = err
		wait := reliability.ExponentialBackoff(attempt, 500*time.Millisecond, 8*time.Second)
		log.Printf("store connect attempt %d/%d failed: %v (retry in %s)", attempt+1, storeConnectAttempts, err, wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

// lazySink breaks the construction cycle between the laundry service and
// the bridge hub, which routes inbound messages back into the service.
type lazySink struct {
	hub **bridge.Hub
}

func (s lazySink) Send(ctx context.Context, conversation string, msg laundry.Outbound) error {
	h := *s.hub
	if h == nil {
		return bridge.ErrNoBridge
	}
	return h.Send(ctx, conversation, msg)
}
