package config

import (
	"fmt"
	"strings"
	"time"

	"clinicremind-backend/utils"

	"github.com/spf13/viper"
)

const (
	defaultPort           = "8080"
	defaultDBDriver       = "postgres"
	defaultLogLevel       = "info"
	defaultTimezone       = "Europe/Bucharest"
	defaultLookahead      = 4 * time.Hour
	defaultTolerance      = 7*time.Minute + 30*time.Second
	defaultCountryCode    = "+40"
	defaultSchedule       = "*/15 * * * *"
	defaultRunTimeout     = 2 * time.Minute
	defaultTokenTTL       = 24 * time.Hour
	defaultOperator       = "admin"
	defaultAllowedOrigins = "http://localhost:3000"
)

// AppConfig captures runtime configuration for the reminder service.
type AppConfig struct {
	Port     string
	LogLevel string

	DBDriver string
	DBURL    string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioSMSFrom    string

	Reminder ReminderConfig

	JWTSecret            string
	TokenTTL             time.Duration
	OperatorUsername     string
	OperatorPasswordHash string

	AllowedOrigins []string
}

// ReminderConfig holds the dispatch engine settings.
type ReminderConfig struct {
	Timezone       string
	Location       *time.Location
	Lookahead      time.Duration
	Tolerance      time.Duration
	WindowMode     string
	CountryCode    string
	Locale         string
	Template       string
	Schedule       string
	RunTimeout     time.Duration
	MaxConcurrency int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings. Keys map to env names by
// replacing dots with underscores, so twilio.account_sid reads TWILIO_ACCOUNT_SID.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.port", defaultPort)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("db.driver", defaultDBDriver)
	v.SetDefault("db.url", "")
	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.auth_token", "")
	v.SetDefault("twilio.sms_from", "")
	v.SetDefault("reminder.timezone", defaultTimezone)
	v.SetDefault("reminder.lookahead", defaultLookahead)
	v.SetDefault("reminder.tolerance", defaultTolerance)
	v.SetDefault("reminder.window_mode", utils.WindowModeOffset)
	v.SetDefault("reminder.country_code", defaultCountryCode)
	v.SetDefault("reminder.locale", utils.LocaleRomanian)
	v.SetDefault("reminder.template", utils.DefaultReminderTemplate)
	v.SetDefault("reminder.schedule", defaultSchedule)
	v.SetDefault("reminder.run_timeout", defaultRunTimeout)
	v.SetDefault("reminder.max_concurrency", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", defaultTokenTTL)
	v.SetDefault("auth.operator_username", defaultOperator)
	v.SetDefault("auth.operator_password_hash", "")
	v.SetDefault("cors.allowed_origins", defaultAllowedOrigins)
}

// Load parses runtime configuration from viper.
func Load(v *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		Port:     v.GetString("http.port"),
		LogLevel: v.GetString("log.level"),

		DBDriver: strings.ToLower(strings.TrimSpace(v.GetString("db.driver"))),
		DBURL:    v.GetString("db.url"),

		TwilioAccountSID: v.GetString("twilio.account_sid"),
		TwilioAuthToken:  v.GetString("twilio.auth_token"),
		TwilioSMSFrom:    v.GetString("twilio.sms_from"),

		Reminder: ReminderConfig{
			Timezone:       v.GetString("reminder.timezone"),
			Lookahead:      v.GetDuration("reminder.lookahead"),
			Tolerance:      v.GetDuration("reminder.tolerance"),
			WindowMode:     strings.ToLower(v.GetString("reminder.window_mode")),
			CountryCode:    v.GetString("reminder.country_code"),
			Locale:         v.GetString("reminder.locale"),
			Template:       v.GetString("reminder.template"),
			Schedule:       v.GetString("reminder.schedule"),
			RunTimeout:     v.GetDuration("reminder.run_timeout"),
			MaxConcurrency: v.GetInt("reminder.max_concurrency"),
		},

		JWTSecret:            v.GetString("auth.jwt_secret"),
		TokenTTL:             v.GetDuration("auth.token_ttl"),
		OperatorUsername:     v.GetString("auth.operator_username"),
		OperatorPasswordHash: v.GetString("auth.operator_password_hash"),

		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	loc, err := time.LoadLocation(cfg.Reminder.Timezone)
	if err != nil {
		return AppConfig{}, fmt.Errorf("reminder.timezone %q: %w", cfg.Reminder.Timezone, err)
	}
	cfg.Reminder.Location = loc

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DBURL) == "" {
		return fmt.Errorf("db.url is required")
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("db.driver must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.Reminder.Lookahead <= 0 {
		return fmt.Errorf("reminder.lookahead must be positive")
	}
	if c.Reminder.Tolerance <= 0 {
		return fmt.Errorf("reminder.tolerance must be positive")
	}
	if c.Reminder.WindowMode != utils.WindowModeOffset && c.Reminder.WindowMode != utils.WindowModeWallClock {
		return fmt.Errorf("reminder.window_mode must be %s or %s", utils.WindowModeOffset, utils.WindowModeWallClock)
	}
	if !utils.ValidCountryCode(c.Reminder.CountryCode) {
		return fmt.Errorf("reminder.country_code %q is not a calling code like +40", c.Reminder.CountryCode)
	}
	if !utils.SupportedLocale(c.Reminder.Locale) {
		return fmt.Errorf("reminder.locale %q is not supported", c.Reminder.Locale)
	}
	if strings.TrimSpace(c.Reminder.Schedule) == "" {
		return fmt.Errorf("reminder.schedule is required")
	}
	if c.Reminder.RunTimeout < 0 {
		return fmt.Errorf("reminder.run_timeout must not be negative")
	}
	if c.Reminder.MaxConcurrency < 0 {
		return fmt.Errorf("reminder.max_concurrency must not be negative")
	}
	return nil
}

// ValidateServer checks the settings only the HTTP server needs.
func (c AppConfig) ValidateServer() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
