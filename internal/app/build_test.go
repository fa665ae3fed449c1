package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lavanderia-bot/laundrybot/internal/config"
	"github.com/lavanderia-bot/laundrybot/internal/laundry"
)

func testConfig(name string) config.Config {
	return config.Config{
		MetricsNamespace: "test_app_" + name + "_" + time.Now().Format("150405") + "_" + time.Now().Format("000000000"),
		SessionLength:    90 * time.Minute,
		WarningLead:      5 * time.Minute,
		OpenHour:         8,
		CloseHour:        22,
		LaundryKeyword:   "lavanderia",
		PackagesKeyword:  "jk",
		WeatherProvider:  "mock",
		WeatherCity:      "Viamão,RS",
		WeatherTimeout:   time.Second,
	}
}

func TestBuildInMemory(t *testing.T) {
	res, err := Build(context.Background(), testConfig("build"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer res.Cleanup()

	if res.Store.Mode() != "in-memory" {
		t.Fatalf("store mode = %q, want %q", res.Store.Mode(), "in-memory")
	}
	if res.WeatherMode != "mock" {
		t.Fatalf("weather mode = %q, want %q", res.WeatherMode, "mock")
	}
	if res.Hub.Connected() {
		t.Fatalf("hub connected before any bridge dialed in")
	}

	// With no bridge the reply is still produced and state still changes.
	out := res.Laundry.Handle(context.Background(), laundry.Inbound{Conversation: "1@g.us", Sender: "a@s", Text: "5"})
	if len(out) != 1 {
		t.Fatalf("replies = %d, want 1", len(out))
	}
}

func TestPolicyFromConfig(t *testing.T) {
	p := Policy(testConfig("policy"))
	if p.SessionLength != 90*time.Minute || p.WarningLead != 5*time.Minute {
		t.Fatalf("policy durations = %v/%v, want 90m/5m", p.SessionLength, p.WarningLead)
	}
	if p.OpenHour != 8 || p.CloseHour != 22 {
		t.Fatalf("policy window = %d-%d, want 8-22", p.OpenHour, p.CloseHour)
	}
	if p.Location == nil {
		t.Fatalf("policy location is nil")
	}
}

func TestBuildAppliesContentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.toml")
	if err := os.WriteFile(path, []byte("hours = \"Aberto 24h\"\n"), 0o600); err != nil {
		t.Fatalf("write content: %v", err)
	}
	cfg := testConfig("content")
	cfg.ContentPath = path

	res, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer res.Cleanup()

	out := res.Laundry.Handle(context.Background(), laundry.Inbound{Conversation: "1@g.us", Sender: "a@s", Text: "8"})
	if len(out) != 1 || out[0].Text != "Aberto 24h" {
		t.Fatalf("hours reply = %+v, want override", out)
	}

	cfg = testConfig("content_missing")
	cfg.ContentPath = filepath.Join(t.TempDir(), "missing.toml")
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("Build() with missing content error = nil, want error")
	}
}
