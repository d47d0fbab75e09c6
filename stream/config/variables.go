/*
NAME
  variables.go

DESCRIPTION
  variables.go contains the table of Config field descriptors: a Name,
  type string, Update function and optional Validate function, in the
  same shape as revid/config/variables.go in the teacher repository.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

package config

import (
	"strconv"
	"time"
)

// Config map keys, used both as the map keys passed to Update and as the
// Variable.Name below.
const (
	KeyDeviceHost       = "DeviceHost"
	KeyLocalBindAddress = "LocalBindAddress"
	KeyVideoPort        = "VideoPort"
	KeyAudioPort        = "AudioPort"
	KeyBufferDelayMs    = "BufferDelayMs"
	KeyStaleThreshold   = "StaleThresholdMs"
	KeyDebugLogging     = "DebugLogging"
)

// Config map parameter types, for introspection/UI purposes.
const (
	typeString = "string"
	typeUint   = "uint"
	typeBool   = "bool"
)

// Variable describes one updatable/validatable Config field.
type Variable struct {
	Name     string
	Type     string
	Update   func(c *Config, v string)
	Validate func(c *Config)
}

var variables = []Variable{
	{
		Name: KeyDeviceHost,
		Type: typeString,
		Update: func(c *Config, v string) {
			c.DeviceHost = v
		},
		Validate: func(c *Config) {
			if c.DeviceHost == "" {
				c.LogInvalidField(KeyDeviceHost, DefaultDeviceHost)
				c.DeviceHost = DefaultDeviceHost
			}
		},
	},
	{
		Name: KeyLocalBindAddress,
		Type: typeString,
		Update: func(c *Config, v string) {
			c.LocalBindAddress = v
		},
	},
	{
		Name: KeyVideoPort,
		Type: typeUint,
		Update: func(c *Config, v string) {
			c.VideoPort = parsePort(KeyVideoPort, v, c)
		},
		Validate: func(c *Config) {
			if c.VideoPort == 0 {
				c.LogInvalidField(KeyVideoPort, DefaultVideoPort)
				c.VideoPort = DefaultVideoPort
			}
		},
	},
	{
		Name: KeyAudioPort,
		Type: typeUint,
		Update: func(c *Config, v string) {
			c.AudioPort = parsePort(KeyAudioPort, v, c)
		},
		Validate: func(c *Config) {
			if c.AudioPort == 0 {
				c.LogInvalidField(KeyAudioPort, DefaultAudioPort)
				c.AudioPort = DefaultAudioPort
			}
		},
	},
	{
		Name: KeyBufferDelayMs,
		Type: typeUint,
		Update: func(c *Config, v string) {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				c.LogInvalidField(KeyBufferDelayMs, c.BufferDelayMs)
				return
			}
			c.BufferDelayMs = uint16(n)
		},
		// No Validate: zero is a legitimate, user-meaningful value for
		// this field (spec.md §4.3 "flush to zero"), so there is no
		// out-of-range value to default away from. A caller that wants
		// DefaultBufferDelayMs applied when the field was never
		// configured must do so itself before calling Validate (see
		// cmd/c64streamd/config.go, which distinguishes "absent from the
		// YAML file" from "explicitly zero").
	},
	{
		Name: KeyStaleThreshold,
		Type: typeUint,
		Update: func(c *Config, v string) {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				c.LogInvalidField(KeyStaleThreshold, c.StaleThreshold)
				return
			}
			c.StaleThreshold = time.Duration(n) * time.Millisecond
		},
		Validate: func(c *Config) {
			if c.StaleThreshold <= 0 {
				c.LogInvalidField(KeyStaleThreshold, DefaultStaleThresholdNs)
				c.StaleThreshold = DefaultStaleThresholdNs
			}
		},
	},
	{
		Name: KeyDebugLogging,
		Type: typeBool,
		Update: func(c *Config, v string) {
			b, err := strconv.ParseBool(v)
			if err != nil {
				c.LogInvalidField(KeyDebugLogging, DefaultDebugLogging)
				return
			}
			c.DebugLogging = b
		},
	},
}

func parsePort(name, v string, c *Config) uint16 {
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		c.LogInvalidField(name, 0)
		return 0
	}
	return uint16(n)
}
