/*
NAME
  config.go

DESCRIPTION
  config.go holds the configuration for a c64stream Stream, following the
  same Config/Variable/Update/Validate shape as revid's configuration
  layer in the teacher repository.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

// Package config contains the configuration settings for a c64stream
// Stream (spec.md §6.6).
package config

import (
	"time"

	"go.uber.org/zap"
)

// NoControlHost is re-exported here for config defaulting convenience;
// see control.NoControlHost for the authoritative definition.
const NoControlHost = "0.0.0.0"

// Config provides the parameters relevant to one Stream. Validate applies
// the defaults for DeviceHost, VideoPort, AudioPort and StaleThreshold;
// LocalBindAddress, BufferDelayMs and DebugLogging are left as set.
type Config struct {
	// DeviceHost is the C64 Ultimate's hostname or IP. The sentinel value
	// "0.0.0.0" disables the control channel entirely.
	DeviceHost string

	// LocalBindAddress is the address the consumer-side UDP sockets bind
	// to. Empty means the OS default (all interfaces).
	LocalBindAddress string

	VideoPort uint16
	AudioPort uint16

	// BufferDelayMs is the jitter ring buffers' release delay.
	BufferDelayMs uint16

	// StaleThreshold is how long without a packet before a stream is
	// considered stale (spec.md §4.7, §5).
	StaleThreshold time.Duration

	DebugLogging bool

	// Logger receives structured log output from every c64stream
	// component. Must be set; NopLogger() is available for callers that
	// don't want output.
	Logger *zap.Logger
}

// Defaults, per spec.md §6.6.
const (
	DefaultDeviceHost       = "c64u"
	DefaultVideoPort        = 11000
	DefaultAudioPort        = 11001
	DefaultStaleThresholdNs = 100 * time.Millisecond
	DefaultDebugLogging     = true

	// DefaultBufferDelayMs approximates "3 frames-equivalent" at NTSC
	// (59.826 Hz): 3 * 1000/59.826 ≈ 50ms.
	DefaultBufferDelayMs = 50
)

// Validate fills in defaults for any unset or out-of-range fields. It
// never fails; invalid input is defaulted and logged, matching the
// teacher's LogInvalidField convention.
func (c *Config) Validate() {
	for _, v := range variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
}

// Update applies a map of variable name -> string value to the config,
// validating the variable names against the known set (spec.md §4.7
// update()). Unknown keys are ignored.
func (c *Config) Update(vars map[string]string) {
	for _, v := range variables {
		if val, ok := vars[v.Name]; ok && v.Update != nil {
			v.Update(c, val)
		}
	}
}

// NetworkingChanged reports whether vars contains any key for a field
// that requires a stop/start cycle rather than an in-place update
// (spec.md §4.7 update()). It looks only at which keys are present, not
// at whether their values differ from a current Config.
func NetworkingChanged(vars map[string]string) bool {
	for _, key := range []string{KeyDeviceHost, KeyLocalBindAddress, KeyVideoPort, KeyAudioPort} {
		if _, ok := vars[key]; ok {
			return true
		}
	}
	return false
}

// LogInvalidField logs a defaulted field, mirroring the teacher's
// Config.LogInvalidField.
func (c *Config) LogInvalidField(name string, def interface{}) {
	if c.Logger == nil {
		return
	}
	c.Logger.Info(name+" bad or unset, defaulting", zap.Any("default", def))
}

// NopLogger returns a Logger that discards everything, for callers (e.g.
// tests) that don't care about log output.
func NopLogger() *zap.Logger { return zap.NewNop() }
