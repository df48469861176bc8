package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server     ServerConfig
	Auth       AuthConfig
	Commission CommissionConfig
	WhatsApp   WhatsAppConfig
	Sheets     SheetsConfig
	Settlement SettlementConfig
	MongoDB    MongoDBConfig
	Redis      RedisConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// AuthConfig holds the shared secret used to verify bearer tokens issued by
// the auth provider.
type AuthConfig struct {
	JWTSecret string
}

// CommissionConfig holds the committee's two commission rates. They are
// configured separately and never derived from each other.
type CommissionConfig struct {
	FarmerRate float64
	TraderRate float64
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken     string
	PhoneNumberID   string
	BaseURL         string
	APIVersion      string
	CommitteeNumber string
	CountryCode     string
}

// Enabled reports whether outbound WhatsApp notifications can be sent.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

// SheetsConfig contains configuration required to export billing rows to Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	BillingRange    string
}

// Enabled reports whether billing rows can be pushed to a spreadsheet.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsPath != "" && c.SpreadsheetID != ""
}

// SettlementConfig holds scheduler-related settings for the daily digest.
type SettlementConfig struct {
	CronSchedule string
	Timezone     string
}

// MongoDBConfig holds settings for MongoDB. An empty URI selects the
// in-memory store.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// RedisConfig holds settings for the billing report cache. An empty Addr
// selects the in-process cache.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	BillingTTL time.Duration
}

// LogConfig holds logger options.
type LogConfig struct {
	Level string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	farmerRate, err := getenvFloat("FARMER_COMMISSION_RATE", 0.04)
	if err != nil {
		return nil, err
	}
	traderRate, err := getenvFloat("TRADER_COMMISSION_RATE", 0.09)
	if err != nil {
		return nil, err
	}
	redisDB, err := getenvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	billingTTL, err := getenvDuration("BILLING_CACHE_TTL", 60*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Commission: CommissionConfig{
			FarmerRate: farmerRate,
			TraderRate: traderRate,
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:     os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:   os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:         getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:      getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			CommitteeNumber: os.Getenv("WHATSAPP_COMMITTEE_NUMBER"),
			CountryCode:     getenvWithDefault("WHATSAPP_COUNTRY_CODE", "91"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_BILLING_ID"),
			BillingRange:    getenvWithDefault("GOOGLE_SHEET_BILLING_RANGE", "Billing!A:N"),
		},
		Settlement: SettlementConfig{
			CronSchedule: getenvWithDefault("SETTLEMENT_CRON_SCHEDULE", "0 21 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "Asia/Kolkata"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "mandi"),
		},
		Redis: RedisConfig{
			Addr:       os.Getenv("REDIS_ADDR"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         redisDB,
			BillingTTL: billingTTL,
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}

	switch {
	case c.Commission.FarmerRate <= 0 || c.Commission.FarmerRate >= 1:
		return errors.New("FARMER_COMMISSION_RATE must be between 0 and 1")
	case c.Commission.TraderRate <= 0 || c.Commission.TraderRate >= 1:
		return errors.New("TRADER_COMMISSION_RATE must be between 0 and 1")
	}

	if c.WhatsApp.Enabled() {
		if c.WhatsApp.BaseURL == "" {
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		}
		if c.WhatsApp.APIVersion == "" {
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.Sheets.Enabled() && c.Sheets.BillingRange == "" {
		return errors.New("GOOGLE_SHEET_BILLING_RANGE must not be empty")
	}

	if c.Settlement.CronSchedule == "" {
		return errors.New("SETTLEMENT_CRON_SCHEDULE must be provided")
	}

	if _, err := time.LoadLocation(c.Settlement.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	if c.MongoDB.URI != "" && c.MongoDB.DBName == "" {
		return errors.New("MONGODB_DB_NAME must be provided")
	}

	if c.Redis.BillingTTL <= 0 {
		return errors.New("BILLING_CACHE_TTL must be positive")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return parsed, nil
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return parsed, nil
}
