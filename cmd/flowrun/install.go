package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

// runInstall writes settings.json from flags so later runs pick them up.
func runInstall(args []string) {
	def := defaultConfig()

	fs := flag.NewFlagSet("install", flag.ExitOnError)
	logLevel := fs.String("log-level", def.LogLevel, "log level: debug, info, warn, error")
	poolSize := fs.Int("pool-size", def.PoolSize, "maximum concurrently running workflows")
	taskTTL := fs.Duration("task-ttl", time.Duration(def.TaskTTL), "how long finished tasks stay queryable")
	sweep := fs.String("sweep-schedule", def.SweepSchedule, "cron schedule of the finished-task sweep")
	llmTimeout := fs.Duration("llm-timeout", time.Duration(def.LLMTimeout), "per-request LLM timeout")
	threshold := fs.Int("breaker-threshold", def.BreakerThreshold, "consecutive LLM failures that open a host's circuit")
	cooldown := fs.Duration("breaker-cooldown", time.Duration(def.BreakerCooldown), "how long an open circuit rejects calls")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dir := flowrunDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create %s: %v\n", dir, err)
		os.Exit(1)
	}

	cfg := Config{
		LogLevel:         *logLevel,
		PoolSize:         *poolSize,
		TaskTTL:          Duration(*taskTTL),
		SweepSchedule:    *sweep,
		LLMTimeout:       Duration(*llmTimeout),
		BreakerThreshold: *threshold,
		BreakerCooldown:  Duration(*cooldown),
	}
	if err := writeConfig(settingsPath(), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config written to %s\n", settingsPath())
}

func writeConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
