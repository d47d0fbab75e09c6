/*
NAME
  config.go

DESCRIPTION
  config.go loads the YAML configuration file for c64streamd into a
  stream/config.Config.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

package main

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/waltermfi/c64stream/stream/config"
)

// fileConfig is the on-disk YAML shape; it maps 1:1 onto config.Config's
// updatable fields (spec.md §6.6). BufferDelayMs is a pointer so that an
// absent key can be told apart from an explicit 0 (spec.md §4.3 "flush
// to zero" is a meaningful configured value, not an unset one).
type fileConfig struct {
	DeviceHost       string  `yaml:"device_host"`
	LocalBindAddress string  `yaml:"local_bind_address"`
	VideoPort        uint16  `yaml:"video_port"`
	AudioPort        uint16  `yaml:"audio_port"`
	BufferDelayMs    *uint16 `yaml:"buffer_delay_ms"`
	StaleThresholdMs uint16  `yaml:"stale_threshold_ms"`
	DebugLogging     bool    `yaml:"debug_logging"`
}

// loadConfig reads path and returns a validated Config. A missing file is
// not an error: an all-default Config is returned so the daemon can start
// without a config file.
func loadConfig(path string, logger *zap.Logger) (*config.Config, error) {
	cfg := &config.Config{Logger: logger}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.BufferDelayMs = config.DefaultBufferDelayMs
			cfg.DebugLogging = config.DefaultDebugLogging
			cfg.Validate()
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "config: reading %s", path)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, errors.Wrapf(err, "config: parsing %s", path)
	}

	vars := map[string]string{}
	addIfSet(vars, config.KeyDeviceHost, fc.DeviceHost)
	addIfSet(vars, config.KeyLocalBindAddress, fc.LocalBindAddress)
	if fc.VideoPort != 0 {
		vars[config.KeyVideoPort] = strconv.Itoa(int(fc.VideoPort))
	}
	if fc.AudioPort != 0 {
		vars[config.KeyAudioPort] = strconv.Itoa(int(fc.AudioPort))
	}
	if fc.BufferDelayMs != nil {
		vars[config.KeyBufferDelayMs] = strconv.Itoa(int(*fc.BufferDelayMs))
	} else {
		vars[config.KeyBufferDelayMs] = strconv.Itoa(config.DefaultBufferDelayMs)
	}
	vars[config.KeyStaleThreshold] = strconv.Itoa(int(fc.StaleThresholdMs))
	if fc.DebugLogging {
		vars[config.KeyDebugLogging] = "true"
	} else {
		vars[config.KeyDebugLogging] = "false"
	}

	cfg.Update(vars)
	cfg.Validate()
	return cfg, nil
}

func addIfSet(vars map[string]string, key, value string) {
	if value != "" {
		vars[key] = value
	}
}

// collectVars flattens a Config back into the variable-map shape
// Stream.Update expects, for applying a freshly reloaded file on top of
// a running stream.
func collectVars(cfg *config.Config, vars map[string]string) {
	vars[config.KeyDeviceHost] = cfg.DeviceHost
	vars[config.KeyLocalBindAddress] = cfg.LocalBindAddress
	vars[config.KeyVideoPort] = strconv.Itoa(int(cfg.VideoPort))
	vars[config.KeyAudioPort] = strconv.Itoa(int(cfg.AudioPort))
	vars[config.KeyBufferDelayMs] = strconv.Itoa(int(cfg.BufferDelayMs))
	vars[config.KeyStaleThreshold] = strconv.Itoa(int(cfg.StaleThreshold.Milliseconds()))
	if cfg.DebugLogging {
		vars[config.KeyDebugLogging] = "true"
	} else {
		vars[config.KeyDebugLogging] = "false"
	}
}
