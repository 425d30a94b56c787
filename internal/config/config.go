package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// AgentMail inbox
	InboxUsername    string
	AgentMailAPIKey  string
	AgentMailBaseURL string

	// Gemini agent runtime
	GeminiAPIKey string
	GeminiModel  string

	// Google Calendar
	CalendarID              string
	CalendarCredentialsFile string

	// Scheduling
	AvailabilityWindowDays int
	ClinicName             string
	ClinicProvider         string

	// Webhook processing
	DedupLimit        int
	ThreadQueueBuffer int

	// Deterministic clock for development/testing; RFC 3339, empty means wall clock.
	FixedNow string

	PublishTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		InboxUsername:    getEnv("INBOX_USERNAME", ""),
		AgentMailAPIKey:  getEnv("AGENTMAIL_API_KEY", ""),
		AgentMailBaseURL: getEnv("AGENTMAIL_BASE_URL", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		CalendarID:              getEnv("CALENDAR_ID", "primary"),
		CalendarCredentialsFile: getEnv("CALENDAR_CREDENTIALS_FILE", ""),

		AvailabilityWindowDays: getEnvAsInt("AVAILABILITY_WINDOW_DAYS", 7),
		ClinicName:             getEnv("CLINIC_NAME", "MHacks Clinic"),
		ClinicProvider:         getEnv("CLINIC_PROVIDER", "Dr. Yimmy Yapper"),

		DedupLimit:        getEnvAsInt("DEDUP_LIMIT", 5000),
		ThreadQueueBuffer: getEnvAsInt("THREAD_QUEUE_BUFFER", 128),

		FixedNow: getEnv("CLOCK_FIXED_NOW", ""),

		PublishTimeout: getEnvAsDuration("PUBLISH_TIMEOUT", 3*time.Second),
	}
}

// InboxAddress returns the full clinic inbox address.
func (c *Config) InboxAddress() string {
	if c.InboxUsername == "" {
		return ""
	}
	return fmt.Sprintf("%s@agentmail.to", c.InboxUsername)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
