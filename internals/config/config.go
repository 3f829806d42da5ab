package config

import "time"

// RateLimitRule is a fixed-window cap applied per source IP at the transport
// boundary, in front of the per-account throttling.
type RateLimitRule struct {
	Max    int64
	Window time.Duration
}

// SMTPConfig holds the outbound mail settings. When User is empty the mailer
// runs in dev mode and logs codes instead of sending.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// GoogleConfig holds both Google entry points: the ID-token assertion flow
// (ClientID only) and the redirect/consent flow (all three fields).
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Config is the process-wide immutable configuration. It is built once in
// Load and passed by injection; business logic never reads the environment.
type Config struct {
	AppName string
	Addr    string
	DBPath  string

	// RedisURL enables the per-IP rate limiters; empty disables them.
	RedisURL string

	JWTSecret            string
	SessionTTLMinutes    int
	VerifyCodeTTLMinutes int
	OTPTTLMinutes        int

	SMTP   SMTPConfig
	Google GoogleConfig

	LoginRateLimit  RateLimitRule
	ForgotRateLimit RateLimitRule
}

// Load builds the Config from the environment, with the documented defaults
// for everything that is not security critical.
func Load() *Config {
	smtpUser := GetEnvAsStr("SMTP_USER", "")
	return &Config{
		AppName: GetEnvAsStr("APP_NAME", "La Pape"),
		Addr:    GetEnvAsStr("ADDR", ":4000"),
		DBPath:  GetEnvAsStr("DB_PATH", "lapape.db"),

		RedisURL: GetEnvAsStr("REDIS_URL", ""),

		JWTSecret:            GetEnv("JWT_SECRET"),
		SessionTTLMinutes:    GetEnvAsInt("JWT_EXPIRES_MINUTES", 120, true),
		VerifyCodeTTLMinutes: GetEnvAsInt("VERIFY_CODE_EXPIRATION_MINUTES", 15, true),
		OTPTTLMinutes:        GetEnvAsInt("OTP_EXPIRATION_MINUTES", 10, true),

		SMTP: SMTPConfig{
			Host:     GetEnvAsStr("SMTP_HOST", "smtp.gmail.com"),
			Port:     GetEnvAsInt("SMTP_PORT", 587, true),
			User:     smtpUser,
			Password: GetEnvAsStr("SMTP_PASSWORD", ""),
			From:     GetEnvAsStr("SMTP_FROM", smtpUser),
		},
		Google: GoogleConfig{
			ClientID:     GetEnvAsStr("GOOGLE_CLIENT_ID", ""),
			ClientSecret: GetEnvAsStr("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  GetEnvAsStr("GOOGLE_REDIRECT_URL", ""),
		},

		LoginRateLimit: RateLimitRule{
			Max:    int64(GetEnvAsInt("LOGIN_RATE_LIMIT", 20, true)),
			Window: time.Duration(GetEnvAsInt("LOGIN_RATE_WINDOW_MINUTES", 15, true)) * time.Minute,
		},
		ForgotRateLimit: RateLimitRule{
			Max:    int64(GetEnvAsInt("FORGOT_RATE_LIMIT", 5, true)),
			Window: time.Duration(GetEnvAsInt("FORGOT_RATE_WINDOW_MINUTES", 60, true)) * time.Minute,
		},
	}
}
