package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	BaseURL            string
	Env                string
	LogFormat          string
	LogLevel           string
	SentryDSN          string
	GoogleClientID     string
	GoogleClientSecret string
	SessionSecret      string
	DatabaseDriver     string
	DatabaseURL        string
	RedisURL           string
	AccountsFile       string

	AIProvider            string
	AIKey                 string
	AIModel               string
	GenerationMinInterval time.Duration

	ExternalCallTimeout time.Duration
	ScanTickInterval    time.Duration
	AutoScanLookback    time.Duration
	AutoScanMaxItems    int
	ManualScanMaxItems  int
	ClaimTTL            time.Duration
	TokenExpiryBuffer   time.Duration

	NotifyChannel     string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFrom        string
	TwilioWhatsApp    bool
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFrom          string
	WebhookRatePerMin int
	SchedulerEnabled  bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:               GetEnv("PORT", "8080"),
		BaseURL:            GetEnv("BASE_URL", "http://localhost:8080"),
		Env:                GetEnv("ENV", "development"),
		LogFormat:          GetEnv("LOG_FORMAT", "text"),
		LogLevel:           GetEnv("LOG_LEVEL", "info"),
		SentryDSN:          GetEnv("SENTRY_DSN", ""),
		GoogleClientID:     GetEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: GetEnv("GOOGLE_CLIENT_SECRET", ""),
		SessionSecret:      GetEnv("SESSION_SECRET", ""),
		DatabaseDriver:     GetEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:        GetEnv("DATABASE_URL", ""),
		RedisURL:           GetEnv("REDIS_URL", ""),
		AccountsFile:       GetEnv("ACCOUNTS_FILE", ""),

		AIProvider:            GetEnv("AI_PROVIDER", "openai"),
		AIKey:                 GetEnv("AI_API_KEY", ""),
		AIModel:               GetEnv("AI_MODEL", ""),
		GenerationMinInterval: GetEnvDuration("GENERATION_MIN_INTERVAL", 21*time.Second),

		ExternalCallTimeout: GetEnvDuration("EXTERNAL_CALL_TIMEOUT", 30*time.Second),
		ScanTickInterval:    GetEnvDuration("SCAN_TICK_INTERVAL", time.Minute),
		AutoScanLookback:    GetEnvDuration("AUTO_SCAN_LOOKBACK", 24*time.Hour),
		AutoScanMaxItems:    GetEnvInt("AUTO_SCAN_MAX_ITEMS", 3),
		ManualScanMaxItems:  GetEnvInt("MANUAL_SCAN_MAX_ITEMS", 10),
		ClaimTTL:            GetEnvDuration("CLAIM_TTL", 10*time.Minute),
		TokenExpiryBuffer:   GetEnvDuration("TOKEN_EXPIRY_BUFFER", 5*time.Minute),

		NotifyChannel:     GetEnv("NOTIFY_CHANNEL", "log"),
		TwilioAccountSID:  GetEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   GetEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFrom:        GetEnv("TWILIO_FROM", ""),
		TwilioWhatsApp:    GetEnvBool("TWILIO_WHATSAPP", true),
		SMTPHost:          GetEnv("SMTP_HOST", ""),
		SMTPPort:          GetEnvInt("SMTP_PORT", 587),
		SMTPUsername:      GetEnv("SMTP_USERNAME", ""),
		SMTPPassword:      GetEnv("SMTP_PASSWORD", ""),
		SMTPFrom:          GetEnv("SMTP_FROM", ""),
		WebhookRatePerMin: GetEnvInt("WEBHOOK_RATE_PER_MIN", 60),
		SchedulerEnabled:  GetEnvBool("SCHEDULER_ENABLED", true),
	}, nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func GetEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

// GetEnvDuration accepts Go duration strings ("21s", "1m") or a bare number of seconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.AIKey == "" {
		return fmt.Errorf("AI_API_KEY is required")
	}
	if c.GoogleClientID != "" && c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET is required when GOOGLE_CLIENT_ID is set")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.GenerationMinInterval < 0 {
		return fmt.Errorf("GENERATION_MIN_INTERVAL must not be negative")
	}
	if c.ExternalCallTimeout <= 0 {
		return fmt.Errorf("EXTERNAL_CALL_TIMEOUT must be positive")
	}
	if c.ScanTickInterval <= 0 {
		return fmt.Errorf("SCAN_TICK_INTERVAL must be positive")
	}
	if c.AutoScanMaxItems <= 0 || c.ManualScanMaxItems <= 0 {
		return fmt.Errorf("scan max items must be positive")
	}
	switch c.NotifyChannel {
	case "log":
	case "twilio":
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFrom == "" {
			return fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM are required for the twilio channel")
		}
	case "smtp":
		if c.SMTPHost == "" || c.SMTPFrom == "" {
			return fmt.Errorf("SMTP_HOST and SMTP_FROM are required for the smtp channel")
		}
	default:
		return fmt.Errorf("NOTIFY_CHANNEL must be log, twilio or smtp, got %q", c.NotifyChannel)
	}
	return nil
}
