// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads stepseqd's runtime configuration from built-in
// defaults, an optional YAML file, and environment variables
// (STEPSEQ_* prefix), in that ascending order of precedence: an
// environment variable overrides the file, which overrides a default.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is stepseqd's full runtime configuration.
type Config struct {
	HTTPAddr   string        `mapstructure:"http_addr"`
	LogLevel   string        `mapstructure:"log_level"`
	LogJSON    bool          `mapstructure:"log_json"`
	LogDir     string        `mapstructure:"log_dir"`

	Store StoreConfig `mapstructure:"store"`

	AdminJWTSecret string `mapstructure:"admin_jwt_secret"`

	IdleEvictAfter  time.Duration `mapstructure:"idle_evict_after"`
	IdleSweepPeriod time.Duration `mapstructure:"idle_sweep_period"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// StoreConfig selects and configures the durable session store.
type StoreConfig struct {
	// Driver is "badger" or "memory".
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// Default returns stepseqd's built-in configuration, used when no
// file or environment override is present.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		LogLevel: "info",
		LogJSON:  false,

		Store: StoreConfig{Driver: "badger", Path: "./data/stepseq"},

		IdleEvictAfter:  30 * time.Minute,
		IdleSweepPeriod: 5 * time.Minute,

		OTLPInsecure: true,
	}
}

// Load reads configuration from configPath (if non-empty and
// present), environment variables prefixed STEPSEQ_, and falls back
// to Default for anything unset.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("STEPSEQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	bindDefaults(v, cfg)
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// bindDefaults seeds viper with cfg's values so unset keys (no file,
// no env var) still resolve to the built-in defaults on Unmarshal.
func bindDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("http_addr", cfg.HTTPAddr)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_json", cfg.LogJSON)
	v.SetDefault("log_dir", cfg.LogDir)
	v.SetDefault("store.driver", cfg.Store.Driver)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("admin_jwt_secret", cfg.AdminJWTSecret)
	v.SetDefault("idle_evict_after", cfg.IdleEvictAfter)
	v.SetDefault("idle_sweep_period", cfg.IdleSweepPeriod)
	v.SetDefault("otlp_endpoint", cfg.OTLPEndpoint)
	v.SetDefault("otlp_insecure", cfg.OTLPInsecure)
}
