package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type Platform struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

type Config struct {
	Facebook  Platform
	Instagram Platform
	LinkedIn  Platform
	X         Platform
	Google    Platform

	PostgresURI string
	RedisURI    string
	FrontendURL string
	R2          R2
	SecretKey   string
	CookieName  string

	// Publishing engine knobs.
	PlatformSpacing time.Duration // minimum gap between calls to one platform
	PublishTimeout  time.Duration // per-call HTTP timeout for platform APIs
	MaxAttempts     int           // enforcer runs per post before terminal failure
	TokenFreshness  time.Duration // window in which a validated token is trusted

	// Tokens this close to expiry are refreshed instead of used. Also the
	// lookahead window of the background refresh job.
	TokenRefreshMargin time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Facebook: Platform{
			ClientID:     getEnv("FACEBOOK_CLIENT_ID", ""),
			ClientSecret: getEnv("FACEBOOK_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("FACEBOOK_REDIRECT_URI", ""),
		},
		Instagram: Platform{
			ClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
			ClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("INSTAGRAM_REDIRECT_URI", ""),
		},
		LinkedIn: Platform{
			ClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("LINKEDIN_REDIRECT_URI", ""),
		},
		X: Platform{
			ClientID:     getEnv("X_CLIENT_ID", ""),
			ClientSecret: getEnv("X_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("X_REDIRECT_URI", ""),
		},
		Google: Platform{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),
		},
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", ""),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", ""),

		PlatformSpacing: getEnvDuration("PLATFORM_SPACING", 2*time.Second),
		PublishTimeout:  getEnvDuration("PUBLISH_TIMEOUT", 30*time.Second),
		MaxAttempts:     getEnvInt("MAX_PUBLISH_ATTEMPTS", 3),
		TokenFreshness:  getEnvDuration("TOKEN_FRESHNESS", 5*time.Minute),

		TokenRefreshMargin: getEnvDuration("TOKEN_REFRESH_MARGIN", 30*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
