package config

import (
	"os"
	"path/filepath"
	"testing"

	"namelis/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: "namelis"
  environment: "test"
database:
  path: "test.db"
webhook:
  enabled: true
  url: "https://hooks.example.com/booking"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "test.db" {
		t.Errorf("expected database path test.db, got %s", cfg.Database.Path)
	}
	if cfg.Webhook.URL != "https://hooks.example.com/booking" {
		t.Errorf("expected webhook url to survive load, got %s", cfg.Webhook.URL)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default http port 8080, got %d", cfg.HTTP.Port)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("NAMELIS_TEST_DB", "/tmp/namelis.db")

	yamlContent := `
database:
  path: "${NAMELIS_TEST_DB}"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "/tmp/namelis.db" {
		t.Errorf("expected env-expanded database path, got %s", cfg.Database.Path)
	}
}

func TestValidateConfig(t *testing.T) {
	base := func() Config {
		cfg := Config{
			Database: DatabaseConfig{Path: "path"},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "webhook enabled without url",
			mutate:  func(c *Config) { c.Webhook.Enabled = true; c.Webhook.URL = "" },
			wantErr: true,
		},
		{
			name:    "telegram enabled without token",
			mutate:  func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ManagerChatID = 1 },
			wantErr: true,
		},
		{
			name:    "telegram enabled without chat id",
			mutate:  func(c *Config) { c.Telegram.Enabled = true; c.Telegram.BotToken = "token" },
			wantErr: true,
		},
		{
			name:    "malformed utc offset",
			mutate:  func(c *Config) { c.Widget.UTCOffset = "02:00" },
			wantErr: true,
		},
		{
			name:    "malformed open time",
			mutate:  func(c *Config) { c.Availability.Open = "9am" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Widget.MaxBookingDays != models.DefaultBookingWindowDays {
		t.Errorf("expected default booking window %d, got %d", models.DefaultBookingWindowDays, cfg.Widget.MaxBookingDays)
	}
	if cfg.Widget.Timezone != "Europe/Vilnius" {
		t.Errorf("expected default timezone Europe/Vilnius, got %s", cfg.Widget.Timezone)
	}
	if cfg.Widget.UTCOffset != "+02:00" {
		t.Errorf("expected default utc offset +02:00, got %s", cfg.Widget.UTCOffset)
	}
	if cfg.Widget.AnonymousUserID != "anonymous" {
		t.Errorf("expected default anonymous user id, got %s", cfg.Widget.AnonymousUserID)
	}
	if cfg.Availability.Open != models.DefaultOpen || cfg.Availability.Close != models.DefaultClose {
		t.Errorf("expected default opening hours %s-%s, got %s-%s",
			models.DefaultOpen, models.DefaultClose, cfg.Availability.Open, cfg.Availability.Close)
	}
	if cfg.Availability.SlotMinutes != models.DefaultSlotMinutes {
		t.Errorf("expected default slot minutes %d, got %d", models.DefaultSlotMinutes, cfg.Availability.SlotMinutes)
	}
	if cfg.Redis.SessionTTL != models.DefaultSessionTTL {
		t.Errorf("expected default session ttl %d, got %d", models.DefaultSessionTTL, cfg.Redis.SessionTTL)
	}
	if cfg.API.Auth.HeaderAPIKey != "x-api-key" {
		t.Errorf("expected default api key header, got %s", cfg.API.Auth.HeaderAPIKey)
	}
	if cfg.Webhook.Timeout != 10 {
		t.Errorf("expected default webhook timeout 10, got %d", cfg.Webhook.Timeout)
	}
}

func TestValidateCabins(t *testing.T) {
	tests := []struct {
		name    string
		cabins  []models.Cabin
		wantErr bool
	}{
		{
			name: "valid cabins",
			cabins: []models.Cabin{
				{ID: "sauna-a", Name: "Sauna A"},
				{ID: "sauna-b", Name: "Sauna B", Open: "10:00", Close: "20:00", SlotMinutes: 30},
			},
			wantErr: false,
		},
		{
			name:    "empty catalog",
			cabins:  nil,
			wantErr: true,
		},
		{
			name: "duplicate id",
			cabins: []models.Cabin{
				{ID: "sauna-a", Name: "Sauna A"},
				{ID: "sauna-a", Name: "Sauna A again"},
			},
			wantErr: true,
		},
		{
			name: "empty id",
			cabins: []models.Cabin{
				{ID: "  ", Name: "Nameless"},
			},
			wantErr: true,
		},
		{
			name: "bad open time",
			cabins: []models.Cabin{
				{ID: "sauna-a", Name: "Sauna A", Open: "morning"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCabins(tt.cabins)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCabins() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
