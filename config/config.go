package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	Env  string
	Port string

	DBURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessExpiryMin    int
	RefreshExpiryMin   int

	// Lockout policy.
	LoginMaxAttempts      int
	LoginAttemptWindowMin int
	LockDurationMin       int

	// Independent fixed-window budgets.
	LoginRateWindowSec  int
	LoginRateMax        int
	ForgotRateWindowSec int
	ForgotRateMax       int

	OTPExpiryMin int

	SMTPAddr     string
	SMTPHost     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SiteName     string
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBURL: mustGetEnv("DB_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		AccessTokenSecret:  mustGetEnv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: mustGetEnv("REFRESH_TOKEN_SECRET"),
		AccessExpiryMin:    getEnvAsInt("ACCESS_TOKEN_EXPIRY", 15),
		RefreshExpiryMin:   getEnvAsInt("REFRESH_TOKEN_EXPIRY", 10080),

		LoginMaxAttempts:      getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginAttemptWindowMin: getEnvAsInt("LOGIN_ATTEMPT_WINDOW", 15),
		LockDurationMin:       getEnvAsInt("LOCK_DURATION", 30),

		LoginRateWindowSec:  getEnvAsInt("LOGIN_RATE_WINDOW", 60),
		LoginRateMax:        getEnvAsInt("LOGIN_RATE_MAX", 10),
		ForgotRateWindowSec: getEnvAsInt("FORGOT_RATE_WINDOW", 900),
		ForgotRateMax:       getEnvAsInt("FORGOT_RATE_MAX", 5),

		OTPExpiryMin: getEnvAsInt("OTP_EXPIRY", 10),

		SMTPAddr:     getEnv("SMTP_ADDR", ""),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@localhost"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SiteName:     getEnv("SITE_NAME", "session-service"),
	}
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func mustGetEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Fatalf("Missing required environment variable: %s", key)
	return ""
}

func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d", key, defaultVal)
		return defaultVal
	}
	return val
}
