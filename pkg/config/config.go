package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	xdgAppName = "taskplan"
	configFile = "config.json"
	envPrefix  = "TASKPLAN"

	DefaultCalendar = "Tasks"
)

type Config struct {
	// Calendar is the summary (or ID) of the calendar bookings are written to.
	Calendar string `mapstructure:"calendar" validate:"required"`
	// PrimaryEmail identifies events the user authored; every other event is
	// treated as an immovable commitment.
	PrimaryEmail string `mapstructure:"primary_email" validate:"omitempty,email"`
	Timezone     string `mapstructure:"timezone" validate:"required"`
	HorizonDays  int    `mapstructure:"horizon_days" validate:"min=1,max=60"`
	SlotMinutes  int    `mapstructure:"slot_minutes" validate:"min=1,max=240"`
	DBPath       string `mapstructure:"db_path" validate:"required"`

	Blackout BlackoutConfig `mapstructure:"blackout"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Log      LogConfig      `mapstructure:"log"`
}

// BlackoutConfig is the nightly window [StartHour, next day EndHour) that is
// never offered for scheduling.
type BlackoutConfig struct {
	StartHour int `mapstructure:"start_hour" validate:"min=0,max=23"`
	EndHour   int `mapstructure:"end_hour" validate:"min=0,max=23"`
}

type LLMConfig struct {
	Model           string `mapstructure:"model" validate:"required"`
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url" validate:"omitempty,url"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens" validate:"min=64,max=32768"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// Location loads the configured IANA timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Horizon returns the scheduling window length.
func (c *Config) Horizon() time.Duration {
	return time.Duration(c.HorizonDays) * 24 * time.Hour
}

// GetConfigDir returns ~/.config/taskplan.
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

// GetConfigPath returns the default config file location.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("calendar", DefaultCalendar)
	v.SetDefault("primary_email", "")
	v.SetDefault("timezone", "America/New_York")
	v.SetDefault("horizon_days", 7)
	v.SetDefault("slot_minutes", 30)
	v.SetDefault("db_path", filepath.Join(dir, "taskplan.db"))
	v.SetDefault("blackout.start_hour", 22)
	v.SetDefault("blackout.end_hour", 8)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_output_tokens", 1500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

var validate = validator.New()

// Load reads the JSON config at path (a missing file is fine), then applies
// .env and TASKPLAN_* environment overrides. An empty path means the default
// location.
func Load(path string) (*Config, error) {
	// A missing .env is not an error.
	_ = godotenv.Load()

	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	setDefaults(v, filepath.Dir(path))
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", envPrefix+"_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if strings.TrimSpace(cfg.Calendar) == "" {
		cfg.Calendar = DefaultCalendar
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetCalendar persists the target calendar to the config file at path,
// keeping every other key the file already has.
func SetCalendar(path, calendarName string) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	raw := map[string]any{}
	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("failed to decode config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	raw["calendar"] = calendarName

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(raw)
}
