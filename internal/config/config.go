package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig             `yaml:"app"`
	Database   DatabaseConfig        `yaml:"database"`
	Redis      RedisConfig           `yaml:"redis"`
	Backup     BackupConfig          `yaml:"backup"`
	Monitoring MonitoringConfig      `yaml:"monitoring"`
	Tracing    TracingConfig         `yaml:"tracing"`
	Logging    LoggingConfig         `yaml:"logging"`
	API        APIConfig             `yaml:"api"`
	Scheduling SchedulingConfig      `yaml:"scheduling"`
	Chat       ChatConfig            `yaml:"chat"`
	Intent     IntentConfig          `yaml:"intent"`
	Telegram   TelegramConfig        `yaml:"telegram"`
	Google     GoogleConfig          `yaml:"google"`
	Hours      []models.WorkingHours `yaml:"hours"`
	Blackouts  []models.Blackout     `yaml:"blackouts"`
}

// SchedulingConfig is the booking policy. It is read once at startup and
// turned into an immutable schedule.Rules value.
type SchedulingConfig struct {
	CapacityPerSlot        int    `yaml:"capacity_per_slot"`
	SlotStepMinutes        int    `yaml:"slot_step_minutes"`
	ServiceDurationMinutes int    `yaml:"service_duration_minutes"`
	SuggestionLimit        *int   `yaml:"suggestion_limit"` // unset means DefaultSuggestionLimit; 0 turns suggestions off
	DefaultHours           string `yaml:"default_hours"`
	Timezone               string `yaml:"timezone"`
	MissingHoursPolicy     string `yaml:"missing_hours_policy"`
}

// DefaultSuggestionLimit applies when suggestion_limit is not configured.
const DefaultSuggestionLimit = 3

// Suggestions returns the configured suggestion limit.
func (s SchedulingConfig) Suggestions() int {
	if s.SuggestionLimit == nil {
		return DefaultSuggestionLimit
	}
	return *s.SuggestionLimit
}

type ChatConfig struct {
	SessionTTL        int `yaml:"session_ttl"`
	RateLimitMessages int `yaml:"rate_limit_messages"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
}

type IntentConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

type APIConfig struct {
	HTTP           APIHTTPConfig      `yaml:"http"`
	GRPC           APIGRPCConfig      `yaml:"grpc"`
	Auth           APIAuthConfig      `yaml:"auth"`
	RateLimit      APIRateLimitConfig `yaml:"rate_limit"`
	RequestTimeout int                `yaml:"request_timeout"`
}

type APIHTTPConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile     string `yaml:"credentials_file"`
	AppointmentsSpreadSheetID string `yaml:"appointments_spreadsheet_id"`
}

// SheetsEnabled reports whether spreadsheet sync is configured.
func (g GoogleConfig) SheetsEnabled() bool {
	return g.GoogleCredentialsFile != "" && g.AppointmentsSpreadSheetID != ""
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	if err := config.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides maps the plain environment variables operators already
// use onto the YAML structure.
func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &c.API.HTTP.Port},
		{"CAPACITY_PER_SLOT", &c.Scheduling.CapacityPerSlot},
		{"SLOT_STEP_MINUTES", &c.Scheduling.SlotStepMinutes},
		{"SERVICE_DURATION_MIN", &c.Scheduling.ServiceDurationMinutes},
	}
	for _, o := range ints {
		v, ok := lookup(o.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", o.key, v, err)
		}
		*o.dst = n
	}

	if v, ok := lookup("SUGGEST_SLOTS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid SUGGEST_SLOTS %q: %w", v, err)
		}
		c.Scheduling.SuggestionLimit = &n
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"HOURS", &c.Scheduling.DefaultHours},
		{"LOCAL_TZ", &c.Scheduling.Timezone},
		{"MISSING_HOURS_POLICY", &c.Scheduling.MissingHoursPolicy},
		{"DATABASE_PATH", &c.Database.Path},
		{"GEMINI_API_KEY", &c.Intent.APIKey},
		{"TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken},
	}
	for _, o := range strs {
		if v, ok := lookup(o.key); ok && strings.TrimSpace(v) != "" {
			*o.dst = strings.TrimSpace(v)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	s := c.Scheduling
	if s.CapacityPerSlot < 1 {
		return fmt.Errorf("scheduling.capacity_per_slot must be >= 1, got %d", s.CapacityPerSlot)
	}
	if s.SlotStepMinutes < 1 {
		return fmt.Errorf("scheduling.slot_step_minutes must be >= 1, got %d", s.SlotStepMinutes)
	}
	if s.ServiceDurationMinutes < 1 {
		return fmt.Errorf("scheduling.service_duration_minutes must be >= 1, got %d", s.ServiceDurationMinutes)
	}
	if s.Suggestions() < 0 {
		return fmt.Errorf("scheduling.suggestion_limit must be >= 0, got %d", s.Suggestions())
	}
	if err := validateWindow(s.DefaultHours); err != nil {
		return fmt.Errorf("scheduling.default_hours: %w", err)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("scheduling.timezone: %w", err)
	}
	switch s.MissingHoursPolicy {
	case models.MissingHoursClosed, models.MissingHoursDefaultHours:
	default:
		return fmt.Errorf("scheduling.missing_hours_policy: unknown value %q", s.MissingHoursPolicy)
	}

	if c.Intent.Provider == "gemini" && c.Intent.APIKey == "" {
		return errors.New("intent.api_key is required for the gemini provider")
	}

	if err := ValidateHours(c.Hours); err != nil {
		return err
	}
	return ValidateBlackouts(c.Blackouts)
}

// ValidateHours checks seeded weekday rows.
func ValidateHours(hours []models.WorkingHours) error {
	seen := make(map[int]bool)
	for _, h := range hours {
		if h.DayOfWeek < 0 || h.DayOfWeek > 6 {
			return fmt.Errorf("hours: invalid day of week %d", h.DayOfWeek)
		}
		if seen[h.DayOfWeek] {
			return fmt.Errorf("hours: duplicate day of week %d", h.DayOfWeek)
		}
		seen[h.DayOfWeek] = true
		if err := validateWindow(h.Open + "-" + h.Close); err != nil {
			return fmt.Errorf("hours for day %d: %w", h.DayOfWeek, err)
		}
	}
	return nil
}

// ValidateBlackouts checks seeded blackout rows.
func ValidateBlackouts(blackouts []models.Blackout) error {
	for _, b := range blackouts {
		if _, err := time.Parse(models.DateLayout, b.Date); err != nil {
			return fmt.Errorf("blackouts: invalid date %q", b.Date)
		}
	}
	return nil
}

func validateWindow(window string) error {
	open, closeAt, ok := strings.Cut(window, "-")
	if !ok {
		return fmt.Errorf("window %q must look like HH:MM-HH:MM", window)
	}
	o, err := time.Parse(models.TimeLayout, strings.TrimSpace(open))
	if err != nil {
		return fmt.Errorf("invalid open time %q", open)
	}
	cl, err := time.Parse(models.TimeLayout, strings.TrimSpace(closeAt))
	if err != nil {
		return fmt.Errorf("invalid close time %q", closeAt)
	}
	if !o.Before(cl) {
		return fmt.Errorf("open %s is not before close %s", open, closeAt)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "salonbook"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 3001
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.RequestTimeout == 0 {
		c.API.RequestTimeout = 15
	}
	if c.API.HTTP.AllowedOrigins == nil {
		c.API.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}

	// Scheduling defaults
	if c.Scheduling.CapacityPerSlot == 0 {
		c.Scheduling.CapacityPerSlot = 1
	}
	if c.Scheduling.SlotStepMinutes == 0 {
		c.Scheduling.SlotStepMinutes = 30
	}
	if c.Scheduling.ServiceDurationMinutes == 0 {
		c.Scheduling.ServiceDurationMinutes = 30
	}
	if c.Scheduling.SuggestionLimit == nil {
		limit := DefaultSuggestionLimit
		c.Scheduling.SuggestionLimit = &limit
	}
	if c.Scheduling.DefaultHours == "" {
		c.Scheduling.DefaultHours = "09:00-18:00"
	}
	if c.Scheduling.Timezone == "" {
		c.Scheduling.Timezone = "Local"
	}
	if c.Scheduling.MissingHoursPolicy == "" {
		c.Scheduling.MissingHoursPolicy = models.MissingHoursClosed
	}

	// Chat defaults
	if c.Chat.SessionTTL == 0 {
		c.Chat.SessionTTL = models.DefaultSessionTTL
	}
	if c.Chat.RateLimitMessages == 0 {
		c.Chat.RateLimitMessages = models.RateLimitMessages
	}
	if c.Chat.RateLimitWindow == 0 {
		c.Chat.RateLimitWindow = models.RateLimitWindow
	}

	if c.Intent.Provider == "" {
		c.Intent.Provider = "gemini"
	}
	if c.Intent.Model == "" {
		c.Intent.Model = "gemini-2.5-flash"
	}
	if c.Intent.Temperature == 0 {
		c.Intent.Temperature = 0.2
	}
	if c.Intent.TimeoutSec == 0 {
		c.Intent.TimeoutSec = 20
	}
}
