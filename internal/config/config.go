package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote Store
	StoreURL     string
	StoreTimeout time.Duration

	// 静的アカウント
	AdminUsername  string
	AdminPassword  string
	ViewerUsername string
	ViewerPassword string

	// Session
	SessionSecret string
	SessionMaxAge int

	// キャッシュ再読み込み
	RefreshInterval time.Duration

	// Rate Limit
	RateLimitGeneral  int
	RateLimitMutation int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// ユーザーストアサーバー（storeサブコマンド）
	DatabaseURL      string
	StorePort        string
	StoreSeedData    bool
	StoreLatency     time.Duration
	StoreFailureRate float64
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.StoreURL = os.Getenv("STORE_URL")
	if cfg.StoreURL == "" {
		missing = append(missing, "STORE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.StoreTimeout = getEnvDuration("STORE_TIMEOUT", 10*time.Second)
	cfg.AdminUsername = getEnvString("ADMIN_USERNAME", "admin")
	cfg.AdminPassword = getEnvString("ADMIN_PASSWORD", "admin123")
	cfg.ViewerUsername = getEnvString("VIEWER_USERNAME", "user")
	cfg.ViewerPassword = getEnvString("VIEWER_PASSWORD", "user123")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", 5*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitMutation = getEnvInt("RATE_LIMIT_MUTATION", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.DatabaseURL = getEnvString("DATABASE_URL", "")
	cfg.StorePort = getEnvString("STORE_PORT", "8081")
	cfg.StoreSeedData = getEnvBool("STORE_SEED_DATA", true)

	return cfg, nil
}

// LoadStore はstoreサブコマンド用の設定を読み込む。
// ユーザーストアサーバーは管理APIの必須環境変数を要求しない。
func LoadStore() *Config {
	return &Config{
		DatabaseURL:      getEnvString("DATABASE_URL", ""),
		StorePort:        getEnvString("STORE_PORT", "8081"),
		StoreSeedData:    getEnvBool("STORE_SEED_DATA", true),
		StoreLatency:     getEnvDuration("STORE_LATENCY", 0),
		StoreFailureRate: getEnvFloat("STORE_FAILURE_RATE", 0),
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
