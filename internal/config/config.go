package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values. Each field corresponds to an
// environment variable. Secrets for access and refresh tokens are independent
// so a leak of one does not compromise the other token kind.
type Config struct {
	Env                  string // application environment (dev/test/prod)
	Port                 string // HTTP port to listen on
	DBUser               string // database username
	DBPass               string // database password (optional)
	DBHost               string // database host address
	DBPort               string // database port number
	DBName               string // database name
	JWTAccessSecret      string // secret used to sign access tokens
	JWTRefreshSecret     string // secret used to sign refresh tokens
	AccessTTLMin         int    // access token time-to-live in minutes
	RefreshTTL           string // refresh token lifetime expression, e.g. "7d"
	OTPStepSeconds       int    // width of one OTP time bucket
	OTPWindowMinutes     int    // total drift tolerance when validating an OTP
	RequireVerifiedLogin bool   // gate login on completed registration verification
	UniqueRecoveryEmail  bool   // include recovery email in the duplicate-user check
	TelegramBotUsername  string // bot name used to build deep links
	TelegramBotToken     string // bot API token for sending OTP messages
	SMTPHost             string // outbound mail host (email OTP disabled when empty)
	SMTPPort             string // outbound mail port
	SMTPUser             string // outbound mail username
	SMTPPass             string // outbound mail password
	SMTPFrom             string // From address on OTP mails
}

// Load reads configuration from environment variables. Required variables are
// enforced by must() and missing values cause the program to exit.
func Load() Config {
	return Config{
		Env:                  must("APP_ENV"),
		Port:                 must("APP_PORT"),
		DBUser:               must("DB_USER"),
		DBPass:               os.Getenv("DB_PASS"),
		DBHost:               must("DB_HOST"),
		DBPort:               must("DB_PORT"),
		DBName:               must("DB_NAME"),
		JWTAccessSecret:      must("JWT_ACCESS_SECRET"),
		JWTRefreshSecret:     must("JWT_REFRESH_SECRET"),
		AccessTTLMin:         mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTL:           getenv("REFRESH_TOKEN_TTL", "7d"),
		OTPStepSeconds:       envInt("OTP_STEP_SECONDS", 60),
		OTPWindowMinutes:     envInt("OTP_WINDOW_MINUTES", 5),
		RequireVerifiedLogin: envBool("REQUIRE_VERIFIED_LOGIN", false),
		UniqueRecoveryEmail:  envBool("UNIQUE_RECOVERY_EMAIL", true),
		TelegramBotUsername:  must("TELEGRAM_BOT_USERNAME"),
		TelegramBotToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		SMTPHost:             os.Getenv("SMTP_HOST"),
		SMTPPort:             getenv("SMTP_PORT", "587"),
		SMTPUser:             os.Getenv("SMTP_USER"),
		SMTPPass:             os.Getenv("SMTP_PASS"),
		SMTPFrom:             os.Getenv("SMTP_FROM"),
	}
}

// IsProduction reports whether the service runs with the production cookie
// and error-detail policy.
func (c Config) IsProduction() bool { return c.Env == "prod" || c.Env == "production" }

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
