package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ChromeConfig holds Chrome attachment settings
type ChromeConfig struct {
	// CDPURL attaches to an already-running Chrome via DevTools protocol.
	// When empty, resched launches its own instance.
	CDPURL string `json:"cdp_url"`

	// ProfileDir is the user-data dir for a launched instance
	ProfileDir string `json:"profile_dir"`

	// Headless runs the launched instance without a window. Default off:
	// the whole point is augmenting a window the user is looking at.
	Headless bool `json:"headless"`

	// StartTimeout bounds the wait for Chrome to come up (e.g. "15s")
	StartTimeout string `json:"start_timeout"`
}

// ScheduleConfig tunes the injection and scheduling engine
type ScheduleConfig struct {
	// BaseDelayMs is the base of the linear backoff while waiting for the
	// picker's input fields: attempt n waits BaseDelayMs × n
	BaseDelayMs int `json:"base_delay_ms"`

	// MaxAttempts caps the field-polling retries
	MaxAttempts int `json:"max_attempts"`

	// DebounceMs coalesces bursts of mutation notifications into a single
	// injection attempt
	DebounceMs int `json:"debounce_ms"`

	// WriteStaggerMs is the fixed pause between date write, time write and
	// confirm, respecting the host's own re-render cycle
	WriteStaggerMs int `json:"write_stagger_ms"`
}

// StoreConfig holds local persistence settings
type StoreConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Selectors are the structural/textual signatures used to locate host
// elements. There is no versioned contract with Gmail's markup; when these
// stop matching, the affected feature silently degrades. Overridable per
// host version via YAML profiles (see LoadHostProfile).
type Selectors struct {
	// CancelText is the visible text of the cancel-send control
	CancelText string `json:"cancel_text" yaml:"cancel_text"`

	// ScheduledTime matches the element displaying the scheduled time
	ScheduledTime string `json:"scheduled_time" yaml:"scheduled_time"`

	// Menu matches the schedule-send picker menu container
	Menu string `json:"menu" yaml:"menu"`

	// MenuItem matches items inside the picker menu
	MenuItem string `json:"menu_item" yaml:"menu_item"`

	// TemplateText is the visible text of the menu item cloned as the
	// template for injected options (also the item that opens the manual
	// date/time dialog)
	TemplateText string `json:"template_text" yaml:"template_text"`

	// DateInput and TimeInput match the manual picker's entry fields
	DateInput string `json:"date_input" yaml:"date_input"`
	TimeInput string `json:"time_input" yaml:"time_input"`

	// ConfirmText is the visible text of the confirm-scheduling button
	ConfirmText string `json:"confirm_text" yaml:"confirm_text"`
}

// Config holds all configuration for resched
type Config struct {
	Chrome   ChromeConfig   `json:"chrome"`
	Schedule ScheduleConfig `json:"schedule"`
	Store    StoreConfig    `json:"store"`

	Selectors Selectors `json:"selectors"`

	// HostProfile optionally names a YAML selector profile overriding
	// Selectors (path, or a file under the profiles dir)
	HostProfile string `json:"host_profile"`

	// Logging
	LogFile string `json:"log_file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Chrome: ChromeConfig{
			ProfileDir:   filepath.Join(defaultDataDir(), "chrome-profile"),
			StartTimeout: "15s",
		},
		Schedule: ScheduleConfig{
			BaseDelayMs:    200,
			MaxAttempts:    15,
			DebounceMs:     150,
			WriteStaggerMs: 300,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    filepath.Join(defaultDataDir(), "resched.sqlite3"),
		},
		Selectors: Selectors{
			CancelText:    "Cancel send",
			ScheduledTime: "span[title*='Send scheduled']",
			Menu:          "div[role='menu']",
			MenuItem:      "div[role='menuitem']",
			TemplateText:  "Pick date & time",
			DateInput:     "input[aria-label='Date']",
			TimeInput:     "input[aria-label='Time']",
			ConfirmText:   "Schedule send",
		},
	}
}

// GetStartTimeout parses the Chrome start timeout, falling back to 15s
func (c *Config) GetStartTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Chrome.StartTimeout); err == nil && d > 0 {
		return d
	}
	return 15 * time.Second
}

// BaseDelay returns the retry base delay as a duration
func (c *Config) BaseDelay() time.Duration {
	if c.Schedule.BaseDelayMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.Schedule.BaseDelayMs) * time.Millisecond
}

// Debounce returns the mutation debounce window as a duration
func (c *Config) Debounce() time.Duration {
	if c.Schedule.DebounceMs <= 0 {
		return 150 * time.Millisecond
	}
	return time.Duration(c.Schedule.DebounceMs) * time.Millisecond
}

// WriteStagger returns the pause between picker writes as a duration
func (c *Config) WriteStagger() time.Duration {
	if c.Schedule.WriteStaggerMs <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(c.Schedule.WriteStaggerMs) * time.Millisecond
}

// LoadConfig loads configuration from the given path, filling gaps with
// defaults. A missing file is not an error: defaults are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config: %w", err)
	}

	if cfg.HostProfile != "" {
		sel, err := LoadHostProfile(DefaultProfilesDir(), cfg.HostProfile)
		if err != nil {
			return cfg, fmt.Errorf("host profile: %w", err)
		}
		cfg.Selectors.apply(sel)
	}

	return cfg, nil
}

// SaveConfig writes the configuration as indented JSON
func (c *Config) SaveConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultConfigPath returns ~/.config/resched/config.json
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

// DefaultProfilesDir returns the directory searched for host selector profiles
func DefaultProfilesDir() string {
	return filepath.Join(defaultConfigDir(), "profiles")
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".resched"
	}
	return filepath.Join(home, ".config", "resched")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".resched"
	}
	return filepath.Join(home, ".local", "share", "resched")
}
