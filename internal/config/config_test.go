package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 7, cfg.AvailabilityWindowDays)
	assert.Equal(t, 5000, cfg.DedupLimit)
	assert.Equal(t, "primary", cfg.CalendarID)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AVAILABILITY_WINDOW_DAYS", "3")
	t.Setenv("INBOX_USERNAME", "careinbox")
	t.Setenv("CLOCK_FIXED_NOW", "2025-09-28T10:00:00-04:00")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3, cfg.AvailabilityWindowDays)
	assert.Equal(t, "careinbox@agentmail.to", cfg.InboxAddress())
	assert.Equal(t, "2025-09-28T10:00:00-04:00", cfg.FixedNow)
}

func TestInboxAddressEmpty(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "", cfg.InboxAddress())
}
