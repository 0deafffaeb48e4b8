package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rendis/flowrun/internal/app"
	"github.com/rendis/flowrun/internal/llm"
)

// Config holds all flowrun server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	LogLevel         string   `json:"log_level"`
	PoolSize         int      `json:"pool_size"`
	TaskTTL          Duration `json:"task_ttl"`
	SweepSchedule    string   `json:"sweep_schedule"`
	LLMTimeout       Duration `json:"llm_timeout"`
	BreakerThreshold int      `json:"breaker_threshold"`
	BreakerCooldown  Duration `json:"breaker_cooldown"`
}

// Duration is a time.Duration written as "90s" in settings.json.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func defaultConfig() Config {
	breaker := llm.DefaultBreakerConfig()
	return Config{
		LogLevel:         "info",
		PoolSize:         10,
		TaskTTL:          Duration(app.DefaultTaskTTL),
		SweepSchedule:    app.DefaultSweepSchedule,
		LLMTimeout:       Duration(llm.DefaultTimeout),
		BreakerThreshold: breaker.FailureThreshold,
		BreakerCooldown:  Duration(breaker.Cooldown),
	}
}

func flowrunDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowrun"
	}
	return filepath.Join(home, ".flowrun")
}

func settingsPath() string {
	return filepath.Join(flowrunDir(), "settings.json")
}

func loadConfig() (Config, error) {
	return loadConfigFrom(settingsPath(), os.Getenv)
}

func loadConfigFrom(path string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// Layer 3: env vars override.
	if v := getenv("FLOWRUN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("FLOWRUN_SWEEP_SCHEDULE"); v != "" {
		cfg.SweepSchedule = v
	}
	for key, dst := range map[string]*int{
		"FLOWRUN_POOL_SIZE":         &cfg.PoolSize,
		"FLOWRUN_BREAKER_THRESHOLD": &cfg.BreakerThreshold,
	} {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return cfg, fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	for key, dst := range map[string]*Duration{
		"FLOWRUN_TASK_TTL":         &cfg.TaskTTL,
		"FLOWRUN_LLM_TIMEOUT":      &cfg.LLMTimeout,
		"FLOWRUN_BREAKER_COOLDOWN": &cfg.BreakerCooldown,
	} {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return cfg, fmt.Errorf("%s: %w", key, err)
			}
			*dst = Duration(d)
		}
	}

	if cfg.PoolSize < 1 {
		return cfg, fmt.Errorf("pool_size must be at least 1, got %d", cfg.PoolSize)
	}
	if cfg.BreakerThreshold < 1 {
		return cfg, fmt.Errorf("breaker_threshold must be at least 1, got %d", cfg.BreakerThreshold)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}

func (c Config) breaker() llm.BreakerConfig {
	return llm.BreakerConfig{
		FailureThreshold: c.BreakerThreshold,
		Cooldown:         time.Duration(c.BreakerCooldown),
	}
}
