package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateFillsDefaults(t *testing.T) {
	c := Config{Logger: NopLogger()}
	c.Validate()

	assert.Equal(t, DefaultDeviceHost, c.DeviceHost)
	assert.Equal(t, uint16(DefaultVideoPort), c.VideoPort)
	assert.Equal(t, uint16(DefaultAudioPort), c.AudioPort)
	assert.Equal(t, DefaultStaleThresholdNs, c.StaleThreshold)
}

func TestUpdateAppliesKnownKeys(t *testing.T) {
	c := Config{Logger: NopLogger()}
	c.Validate()

	c.Update(map[string]string{
		KeyDeviceHost:     "192.168.1.64",
		KeyVideoPort:      "12000",
		KeyBufferDelayMs:  "10",
		KeyStaleThreshold: "250",
		KeyDebugLogging:   "false",
	})

	assert.Equal(t, "192.168.1.64", c.DeviceHost)
	assert.Equal(t, uint16(12000), c.VideoPort)
	assert.Equal(t, uint16(10), c.BufferDelayMs)
	assert.Equal(t, 250*time.Millisecond, c.StaleThreshold)
	assert.False(t, c.DebugLogging)
}

func TestUpdateIgnoresUnknownKeys(t *testing.T) {
	c := Config{Logger: NopLogger()}
	c.Validate()
	before := c
	c.Update(map[string]string{"NotARealKey": "1"})
	assert.Equal(t, before, c)
}

func TestNetworkingChanged(t *testing.T) {
	assert.True(t, NetworkingChanged(map[string]string{KeyVideoPort: "1"}))
	assert.True(t, NetworkingChanged(map[string]string{KeyDeviceHost: "x"}))
	assert.False(t, NetworkingChanged(map[string]string{KeyBufferDelayMs: "1"}))
}
