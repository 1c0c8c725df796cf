package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"namelis/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Backup       BackupConfig       `yaml:"backup"`
	Redis        RedisConfig        `yaml:"redis"`
	Widget       WidgetConfig       `yaml:"widget"`
	Availability AvailabilityConfig `yaml:"availability"`
	Webhook      WebhookConfig      `yaml:"webhook"`
	API          APIConfig          `yaml:"api"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type RedisConfig struct {
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	SessionTTL int    `yaml:"session_ttl"` // seconds
}

// WidgetConfig governs the booking widget itself: the selectable date
// window, the timezone stamped into webhook payloads and the sentinel
// recorded for unauthenticated visitors.
type WidgetConfig struct {
	MaxBookingDays  int    `yaml:"max_booking_days"`
	Timezone        string `yaml:"timezone"`
	UTCOffset       string `yaml:"utc_offset"`
	AnonymousUserID string `yaml:"anonymous_user_id"`
}

// AvailabilityConfig supplies the slot grid defaults for cabins that do
// not declare their own opening hours.
type AvailabilityConfig struct {
	Open        string `yaml:"open"`
	Close       string `yaml:"close"`
	SlotMinutes int    `yaml:"slot_minutes"`
}

type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout"` // seconds
}

type APIConfig struct {
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type TelegramConfig struct {
	Enabled       bool   `yaml:"enabled"`
	BotToken      string `yaml:"bot_token"`
	ManagerChatID int64  `yaml:"manager_chat_id"`
	Debug         bool   `yaml:"debug"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Environment variables are substituted before the YAML is parsed.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return errors.New("webhook url is required when webhook is enabled")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
			return errors.New("telegram bot token is required when telegram is enabled")
		}
		if c.Telegram.ManagerChatID == 0 {
			return errors.New("telegram manager chat id is required when telegram is enabled")
		}
	}

	if err := validateUTCOffset(c.Widget.UTCOffset); err != nil {
		return err
	}

	if _, err := time.Parse("15:04", c.Availability.Open); err != nil {
		return fmt.Errorf("invalid availability open time %q", c.Availability.Open)
	}
	if _, err := time.Parse("15:04", c.Availability.Close); err != nil {
		return fmt.Errorf("invalid availability close time %q", c.Availability.Close)
	}

	return nil
}

func validateUTCOffset(offset string) error {
	if len(offset) != 6 || (offset[0] != '+' && offset[0] != '-') {
		return fmt.Errorf("invalid utc offset %q; expected ±HH:MM", offset)
	}
	if _, err := time.Parse("15:04", offset[1:]); err != nil {
		return fmt.Errorf("invalid utc offset %q; expected ±HH:MM", offset)
	}
	return nil
}

// ValidateCabins rejects catalogs with missing or duplicate cabin ids
// and malformed schedules.
func ValidateCabins(cabins []models.Cabin) error {
	if len(cabins) == 0 {
		return errors.New("cabin catalog is empty")
	}

	seen := make(map[string]bool, len(cabins))
	for _, cabin := range cabins {
		id := strings.TrimSpace(cabin.ID)
		if id == "" {
			return fmt.Errorf("cabin %q has empty id", cabin.Name)
		}
		if seen[id] {
			return fmt.Errorf("duplicate cabin id found: %s", id)
		}
		seen[id] = true

		if cabin.Open != "" {
			if _, err := time.Parse("15:04", cabin.Open); err != nil {
				return fmt.Errorf("cabin %s: invalid open time %q", id, cabin.Open)
			}
		}
		if cabin.Close != "" {
			if _, err := time.Parse("15:04", cabin.Close); err != nil {
				return fmt.Errorf("cabin %s: invalid close time %q", id, cabin.Close)
			}
		}
		if cabin.SlotMinutes < 0 {
			return fmt.Errorf("cabin %s: negative slot_minutes", id)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}

	if c.Redis.SessionTTL == 0 {
		c.Redis.SessionTTL = models.DefaultSessionTTL
	}

	if c.Widget.MaxBookingDays == 0 {
		c.Widget.MaxBookingDays = models.DefaultBookingWindowDays
	}
	if c.Widget.Timezone == "" {
		c.Widget.Timezone = "Europe/Vilnius"
	}
	if c.Widget.UTCOffset == "" {
		c.Widget.UTCOffset = "+02:00"
	}
	if c.Widget.AnonymousUserID == "" {
		c.Widget.AnonymousUserID = "anonymous"
	}

	if c.Availability.Open == "" {
		c.Availability.Open = models.DefaultOpen
	}
	if c.Availability.Close == "" {
		c.Availability.Close = models.DefaultClose
	}
	if c.Availability.SlotMinutes == 0 {
		c.Availability.SlotMinutes = models.DefaultSlotMinutes
	}

	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = 10
	}
}
