// Package config loads the controller's host configuration from a
// YAML file: fan layout, GPIO backend, settings storage, logging and
// the API server. Persisted runtime settings (port assignments, link
// mask, off delay) live in the NVS store, not here.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Fans FansConfig `yaml:"fans"`
	GPIO GPIOConfig `yaml:"gpio"`
	NVS  NVSConfig  `yaml:"nvs"`
	Log  LogConfig  `yaml:"log"`
	Web  WebConfig  `yaml:"web"`
}

type FansConfig struct {
	Count       int  `yaml:"count"`
	Fan0Spindle bool `yaml:"fan0_spindle"`
}

type GPIOConfig struct {
	// Enable selects the character-device GPIO backend; disabled, an
	// in-memory port pool of SimPorts outputs is used instead.
	Enable   bool   `yaml:"enable"`
	Chip     string `yaml:"chip"`
	Consumer string `yaml:"consumer"`
	Lines    []int  `yaml:"lines"`
	SimPorts int    `yaml:"sim_ports"`
}

type NVSConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type WebConfig struct {
	Enable   bool          `yaml:"enable"`
	Addr     string        `yaml:"addr"`
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when no file is given: one
// fan on a four-port simulated pool, settings beside the binary.
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	applyDefaults(&cfg)

	if cfg.Fans.Count < 1 || cfg.Fans.Count > 4 {
		return Config{}, fmt.Errorf("fans.count must be 1..4, got %d", cfg.Fans.Count)
	}
	if cfg.GPIO.Enable {
		if cfg.GPIO.Chip == "" {
			return Config{}, fmt.Errorf("gpio.chip is required when gpio.enable is true")
		}
		if len(cfg.GPIO.Lines) == 0 {
			return Config{}, fmt.Errorf("gpio.lines is required when gpio.enable is true")
		}
	}
	if cfg.Web.Enable && cfg.Web.Addr == "" {
		return Config{}, fmt.Errorf("web.addr is required when web.enable is true")
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Fans.Count == 0 {
		cfg.Fans.Count = 1
	}
	if cfg.GPIO.Consumer == "" {
		cfg.GPIO.Consumer = "fansd"
	}
	if cfg.GPIO.SimPorts == 0 {
		cfg.GPIO.SimPorts = 4
	}
	if cfg.NVS.Path == "" {
		cfg.NVS.Path = "fansd-settings.yaml"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Web.Interval <= 0 {
		cfg.Web.Interval = 250 * time.Millisecond
	}
}
