package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	LogLevel                  string
	JWTSecret                 string
	JWTRefreshSecret          string
	Database                  DatabaseConfig
	Mailer                    MailerConfig
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	VerificationTokenExpiry   int
	OTPExpiryMinutes          int
	OTPMaxAttempts            int
	AppointmentDefaultMinutes int
	CompensationDayOffPercent int
	CompensationCodeValidDays int
	AppURL                    string
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// MailerConfig holds email service configuration. An empty SMTPHost means mails are
// only logged.
type MailerConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	DefaultFrom  string
	QueueSize    int
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "clinic"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	smtpPort, err := getInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	mailQueue, err := getInt("MAILER_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	mailerConfig := MailerConfig{
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     smtpPort,
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		DefaultFrom:  getEnv("MAILER_DEFAULT_FROM", "no-reply@clinic.local"),
		QueueSize:    mailQueue,
	}

	jwtExpMinutes, err := getInt("JWT_EXPIRATION_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	jwtRefreshExpHours, err := getInt("JWT_REFRESH_EXPIRATION_HOURS", 168) // 7 days
	if err != nil {
		return nil, err
	}
	verificationTokenExpiry, err := getInt("VERIFICATION_TOKEN_EXPIRY_HOURS", 24)
	if err != nil {
		return nil, err
	}
	otpExpiry, err := getInt("OTP_EXPIRY_MINUTES", 10)
	if err != nil {
		return nil, err
	}
	otpAttempts, err := getInt("OTP_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	appointmentMinutes, err := getInt("APPOINTMENT_DEFAULT_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	dayOffPercent, err := getInt("COMPENSATION_DAY_OFF_PERCENT", 100)
	if err != nil {
		return nil, err
	}
	if dayOffPercent < 0 || dayOffPercent > 100 {
		return nil, fmt.Errorf("invalid COMPENSATION_DAY_OFF_PERCENT: %d is not between 0 and 100", dayOffPercent)
	}
	codeValidDays, err := getInt("COMPENSATION_CODE_VALID_DAYS", 90)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", "http://localhost:4200"),
		Environment:               getEnv("NODE_ENV", "development"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		Database:                  dbConfig,
		Mailer:                    mailerConfig,
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		VerificationTokenExpiry:   verificationTokenExpiry,
		OTPExpiryMinutes:          otpExpiry,
		OTPMaxAttempts:            otpAttempts,
		AppointmentDefaultMinutes: appointmentMinutes,
		CompensationDayOffPercent: dayOffPercent,
		CompensationCodeValidDays: codeValidDays,
		AppURL:                    getEnv("APP_URL", "http://localhost:3001"),
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
