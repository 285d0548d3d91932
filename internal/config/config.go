package config

import (
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the bridge
type Config struct {
	// Server settings
	Port string `json:"port"`
	Host string `json:"host"`

	// Qiita settings
	QiitaToken string `json:"-"` // Don't expose in JSON

	// Notion settings
	NotionToken      string `json:"-"` // Don't expose in JSON
	NotionDatabaseID string `json:"notion_database_id"`

	// Selection
	MinLikes     int `json:"min_likes"`
	MinStocks    int `json:"min_stocks"`
	BackfillDays int `json:"backfill_days"`

	// Scheduling
	Schedule   string `json:"schedule"`
	TimeZone   string `json:"timezone"`
	RunOnStart bool   `json:"run_on_start"`

	// Summarizer (Gemini is used only when a key is configured)
	GeminiAPIKey string `json:"-"` // Don't expose in JSON
	GeminiModel  string `json:"gemini_model"`

	// SummaryCacheHours keeps Gemini summaries in memory; 0 disables the cache
	SummaryCacheHours int `json:"summary_cache_hours"`

	// Slack notifications (optional)
	SlackBotToken string `json:"-"` // Don't expose in JSON
	SlackChannel  string `json:"slack_channel"`

	// Webhook settings
	WebhookAuthToken string `json:"-"` // Don't expose in JSON

	// Run report archive (optional)
	ReportBucket string `json:"report_bucket"`

	LogLevel string `json:"log_level"`
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	config := &Config{
		Port:              getEnvOrDefault("PORT", "8080"),
		Host:              getEnvOrDefault("HOST", "0.0.0.0"),
		QiitaToken:        getEnvOrDefault("QIITA_TOKEN", ""),
		NotionToken:       getEnvOrDefault("NOTION_TOKEN", ""),
		NotionDatabaseID:  getEnvOrDefault("NOTION_DB_ID", ""),
		MinLikes:          getEnvOrDefaultInt("MIN_LIKES", 500),
		MinStocks:         getEnvOrDefaultInt("MIN_STOCKS", 500),
		BackfillDays:      getEnvOrDefaultInt("BACKFILL_DAYS", 1),
		Schedule:          getEnvOrDefault("SCHEDULE", "0 7 * * *"),
		TimeZone:          getEnvOrDefault("TIMEZONE", "Asia/Tokyo"),
		RunOnStart:        getEnvOrDefaultBool("RUN_ON_START", true),
		GeminiAPIKey:      getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:       getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		SummaryCacheHours: getEnvOrDefaultInt("SUMMARY_CACHE_HOURS", 24),
		SlackBotToken:     getEnvOrDefault("SLACK_BOT_TOKEN", ""),
		SlackChannel:      getEnvOrDefault("SLACK_CHANNEL", "#qiita-highlights"),
		WebhookAuthToken:  getEnvOrDefault("WEBHOOK_AUTH_TOKEN", ""),
		ReportBucket:      getEnvOrDefault("REPORT_BUCKET", ""),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return config, config.validate()
}

// validate checks if required configuration values are present
func (c *Config) validate() error {
	if err := ValidateQiitaToken(c.QiitaToken); err != nil {
		return err
	}
	if err := ValidateNotionCredentials(c.NotionToken, c.NotionDatabaseID); err != nil {
		return err
	}
	if c.MinLikes < 0 {
		return &ConfigError{Field: "MIN_LIKES", Message: "must be zero or greater"}
	}
	if c.MinStocks < 0 {
		return &ConfigError{Field: "MIN_STOCKS", Message: "must be zero or greater"}
	}
	if c.BackfillDays < 1 {
		return &ConfigError{Field: "BACKFILL_DAYS", Message: "must be at least 1"}
	}
	if c.SummaryCacheHours < 0 {
		return &ConfigError{Field: "SUMMARY_CACHE_HOURS", Message: "must be zero or greater"}
	}
	if c.SlackBotToken != "" && !strings.HasPrefix(c.SlackBotToken, "xoxb-") {
		return &ConfigError{Field: "SLACK_BOT_TOKEN", Message: "must start with xoxb-"}
	}
	return nil
}

// ValidateQiitaToken checks the shape of a Qiita access token: 40 alphanumerics.
func ValidateQiitaToken(token string) error {
	if token == "" {
		return &ConfigError{Field: "QIITA_TOKEN", Message: "Qiita access token is required"}
	}
	if len(token) != 40 || !isAlphanumeric(token) {
		return &ConfigError{Field: "QIITA_TOKEN", Message: "must be 40 alphanumeric characters"}
	}
	return nil
}

// ValidateNotionCredentials checks the integration token and the database id.
func ValidateNotionCredentials(token, databaseID string) error {
	if token == "" {
		return &ConfigError{Field: "NOTION_TOKEN", Message: "Notion integration token is required"}
	}
	if len(token) < 40 || strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return &ConfigError{Field: "NOTION_TOKEN", Message: "malformed integration token"}
	}
	if databaseID == "" {
		return &ConfigError{Field: "NOTION_DB_ID", Message: "Notion database id is required"}
	}
	compact := strings.ReplaceAll(databaseID, "-", "")
	if len(compact) != 32 || !isAlphanumeric(compact) {
		return &ConfigError{Field: "NOTION_DB_ID", Message: "must be 32 alphanumeric characters (hyphens allowed)"}
	}
	return nil
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default if not set
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvOrDefaultBool returns environment variable value as bool or default if not set
func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
