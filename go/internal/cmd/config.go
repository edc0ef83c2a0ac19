package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the optional yaml configuration for the service. Anything not
// set falls back to component defaults; database settings come from the
// DB_* environment (see dbconfig).
type Config struct {
	NATS struct {
		URL    string `yaml:"url"`
		Stream string `yaml:"stream"`
	} `yaml:"nats"`
	Session struct {
		DefaultBuyIn int64 `yaml:"default_buy_in"`
	} `yaml:"session"`
	Sync struct {
		ReconcileIntervalSec  int `yaml:"reconcile_interval_sec"`
		StalenessThresholdSec int `yaml:"staleness_threshold_sec"`
	} `yaml:"sync"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}
