package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type Config struct {
	PostgresURI      string
	RedisURI         string
	EncryptionKey    string
	SecretKey        string
	CookieName       string
	TickInterval     time.Duration
	BatchSize        int
	PublishTimeout   time.Duration
	ReconcileAfter   time.Duration
	EnabledPlatforms []string
	R2               R2
	ResendAPIKey     string
	EmailFrom        string
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:      getEnv("POSTGRES_URI", ""),
		RedisURI:         getEnv("REDIS_URI", "127.0.0.1:6379"),
		EncryptionKey:    getEnv("ENCRYPTION_KEY", ""),
		SecretKey:        getEnv("SECRET_KEY", ""),
		CookieName:       getEnv("COOKIE_NAME", "postloom_session"),
		TickInterval:     getDuration("TICK_INTERVAL", time.Minute),
		BatchSize:        getInt("BATCH_SIZE", 20),
		PublishTimeout:   getDuration("PUBLISH_TIMEOUT", 2*time.Minute),
		ReconcileAfter:   getDuration("RECONCILE_AFTER", 15*time.Minute),
		EnabledPlatforms: getList("PLATFORMS_ENABLED", "twitter,linkedin,instagram,youtube"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		EmailFrom:    getEnv("EMAIL_FROM", "alerts@postloom.app"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, strings.ToLower(p))
		}
	}
	return list
}
