package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"salonbook/internal/models"
)

func validConfig() Config {
	cfg := Config{Database: DatabaseConfig{Path: "path"}}
	cfg.applyDefaults()
	return cfg
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
database:
  path: "${SALONBOOK_TEST_DB}"
intent:
  provider: none
scheduling:
  capacity_per_slot: 2
  timezone: UTC
hours:
  - dow: 1
    open: "09:00"
    close: "17:00"
blackouts:
  - date: "2025-11-17"
    note: "Shop closed for renovation"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	t.Setenv("SALONBOOK_TEST_DB", "test.db")
	t.Setenv("SUGGEST_SLOTS", "5")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "test.db" {
		t.Errorf("expected expanded database path test.db, got %s", cfg.Database.Path)
	}
	if cfg.Scheduling.CapacityPerSlot != 2 {
		t.Errorf("expected capacity 2, got %d", cfg.Scheduling.CapacityPerSlot)
	}
	if cfg.Scheduling.Suggestions() != 5 {
		t.Errorf("expected suggestion limit from env 5, got %d", cfg.Scheduling.Suggestions())
	}
	if len(cfg.Hours) != 1 || cfg.Hours[0].Close != "17:00" {
		t.Errorf("expected one seeded hours row, got %+v", cfg.Hours)
	}
	if len(cfg.Blackouts) != 1 || cfg.Blackouts[0].Note != "Shop closed for renovation" {
		t.Errorf("expected one seeded blackout, got %+v", cfg.Blackouts)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"PORT":                 "4000",
		"CAPACITY_PER_SLOT":    "3",
		"SLOT_STEP_MINUTES":    "15",
		"SERVICE_DURATION_MIN": "45",
		"HOURS":                "10:00-19:00",
		"LOCAL_TZ":             "Europe/Berlin",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := &Config{}
	if err := cfg.applyEnvOverrides(lookup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.HTTP.Port != 4000 {
		t.Errorf("expected port 4000, got %d", cfg.API.HTTP.Port)
	}
	if cfg.Scheduling.CapacityPerSlot != 3 || cfg.Scheduling.SlotStepMinutes != 15 || cfg.Scheduling.ServiceDurationMinutes != 45 {
		t.Errorf("unexpected scheduling overrides: %+v", cfg.Scheduling)
	}
	if cfg.Scheduling.DefaultHours != "10:00-19:00" || cfg.Scheduling.Timezone != "Europe/Berlin" {
		t.Errorf("unexpected string overrides: %+v", cfg.Scheduling)
	}

	env["CAPACITY_PER_SLOT"] = "many"
	if err := (&Config{}).applyEnvOverrides(lookup); err == nil {
		t.Error("expected error for non-numeric capacity")
	}
}

func TestSuggestionLimitZeroDisablesSuggestions(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
database:
  path: test.db
intent:
  provider: none
scheduling:
  suggestion_limit: 0
  timezone: UTC
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Scheduling.Suggestions() != 0 {
		t.Errorf("expected suggestion_limit 0 to survive defaults, got %d", cfg.Scheduling.Suggestions())
	}

	fromEnv := &Config{}
	lookup := func(k string) (string, bool) {
		if k == "SUGGEST_SLOTS" {
			return "0", true
		}
		return "", false
	}
	if err := fromEnv.applyEnvOverrides(lookup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fromEnv.applyDefaults()
	if fromEnv.Scheduling.Suggestions() != 0 {
		t.Errorf("expected SUGGEST_SLOTS=0 to survive defaults, got %d", fromEnv.Scheduling.Suggestions())
	}

	negative := validConfig()
	negative.Intent.Provider = "none"
	if err := negative.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	limit := -1
	negative.Scheduling.SuggestionLimit = &limit
	if err := negative.Validate(); err == nil || !strings.Contains(err.Error(), "suggestion_limit") {
		t.Errorf("expected suggestion_limit error, got %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Scheduling.CapacityPerSlot != 1 {
		t.Errorf("expected default capacity 1, got %d", cfg.Scheduling.CapacityPerSlot)
	}
	if cfg.Scheduling.SlotStepMinutes != 30 || cfg.Scheduling.ServiceDurationMinutes != 30 {
		t.Errorf("expected 30 minute step and duration, got %+v", cfg.Scheduling)
	}
	if cfg.Scheduling.Suggestions() != DefaultSuggestionLimit {
		t.Errorf("expected default suggestion limit %d, got %d", DefaultSuggestionLimit, cfg.Scheduling.Suggestions())
	}
	if cfg.Scheduling.DefaultHours != "09:00-18:00" {
		t.Errorf("expected default hours 09:00-18:00, got %s", cfg.Scheduling.DefaultHours)
	}
	if cfg.Scheduling.MissingHoursPolicy != models.MissingHoursClosed {
		t.Errorf("expected closed policy by default, got %s", cfg.Scheduling.MissingHoursPolicy)
	}
	if cfg.API.GRPC.Port != 8081 {
		t.Errorf("expected default gRPC port 8081, got %d", cfg.API.GRPC.Port)
	}
	if cfg.Chat.RateLimitMessages != models.RateLimitMessages {
		t.Errorf("expected default rate limit messages %d, got %d", models.RateLimitMessages, cfg.Chat.RateLimitMessages)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "zero capacity", mutate: func(c *Config) { c.Scheduling.CapacityPerSlot = 0 }, wantErr: true},
		{name: "inverted default hours", mutate: func(c *Config) { c.Scheduling.DefaultHours = "18:00-09:00" }, wantErr: true},
		{name: "garbage default hours", mutate: func(c *Config) { c.Scheduling.DefaultHours = "nine to six" }, wantErr: true},
		{name: "unknown timezone", mutate: func(c *Config) { c.Scheduling.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "unknown policy", mutate: func(c *Config) { c.Scheduling.MissingHoursPolicy = "guess" }, wantErr: true},
		{name: "gemini without key", mutate: func(c *Config) { c.Intent.Provider = "gemini"; c.Intent.APIKey = "" }, wantErr: true},
		{name: "gemini with key", mutate: func(c *Config) { c.Intent.Provider = "gemini"; c.Intent.APIKey = "k" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Intent.Provider = "none"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateHours(t *testing.T) {
	tests := []struct {
		name    string
		hours   []models.WorkingHours
		wantErr bool
	}{
		{
			name:  "Valid hours",
			hours: []models.WorkingHours{{DayOfWeek: 1, Open: "09:00", Close: "17:00"}, {DayOfWeek: 2, Open: "09:00", Close: "17:00"}},
		},
		{
			name:    "Duplicate day",
			hours:   []models.WorkingHours{{DayOfWeek: 1, Open: "09:00", Close: "17:00"}, {DayOfWeek: 1, Open: "10:00", Close: "12:00"}},
			wantErr: true,
		},
		{
			name:    "Day out of range",
			hours:   []models.WorkingHours{{DayOfWeek: 7, Open: "09:00", Close: "17:00"}},
			wantErr: true,
		},
		{
			name:    "Close before open",
			hours:   []models.WorkingHours{{DayOfWeek: 3, Open: "17:00", Close: "09:00"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHours(tt.hours)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHours() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBlackouts(t *testing.T) {
	if err := ValidateBlackouts([]models.Blackout{{Date: "2025-11-17"}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateBlackouts([]models.Blackout{{Date: "17/11/2025"}}); err == nil {
		t.Error("expected error for non-ISO date")
	}
}
