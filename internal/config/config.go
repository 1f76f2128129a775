package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service configuration. Values come from an optional YAML
// file (CONFIG_FILE) and are overridden by environment variables.
type Config struct {
	Port                   string        `yaml:"port"`
	LogLevel               string        `yaml:"logLevel"`
	PostgresDSN            string        `yaml:"postgresDSN"`
	MongoURI               string        `yaml:"mongoURI"`
	MongoDB                string        `yaml:"mongoDB"`
	RedisAddr              string        `yaml:"redisAddr"`
	RedisPassword          string        `yaml:"redisPassword"`
	MinioEndpoint          string        `yaml:"minioEndpoint"`
	MinioAccessKey         string        `yaml:"minioAccessKey"`
	MinioSecretKey         string        `yaml:"minioSecretKey"`
	MinioBucket            string        `yaml:"minioBucket"`
	MinioUseSSL            bool          `yaml:"minioUseSSL"`
	JWTSecret              string        `yaml:"jwtSecret"`
	JWTRefreshSecret       string        `yaml:"jwtRefreshSecret"`
	AccessTokenTTL         time.Duration `yaml:"accessTokenTTL"`
	RefreshTokenTTL        time.Duration `yaml:"refreshTokenTTL"`
	LoanPeriod             time.Duration `yaml:"loanPeriod"`
	AllowedOrigins         []string      `yaml:"allowedOrigins"`
	CookieSecure           bool          `yaml:"cookieSecure"`
	AuthRateLimitPerMinute int           `yaml:"authRateLimitPerMinute"`
	AdminEmail             string        `yaml:"adminEmail"`
	AdminPassword          string        `yaml:"adminPassword"`
}

// Defaults returns the configuration used when neither file nor environment
// set a value.
func Defaults() Config {
	return Config{
		Port:                   "8080",
		LogLevel:               "info",
		MongoURI:               "mongodb://mongo:27017",
		MongoDB:                "library",
		RedisAddr:              "redis:6379",
		MinioEndpoint:          "minio:9000",
		MinioBucket:            "book-covers",
		AccessTokenTTL:         15 * time.Minute,
		RefreshTokenTTL:        7 * 24 * time.Hour,
		LoanPeriod:             14 * 24 * time.Hour,
		AllowedOrigins:         []string{"http://localhost:5173"},
		AuthRateLimitPerMinute: 20,
	}
}

// Load builds the configuration from CONFIG_FILE (if set) and the environment.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getenv("PORT", cfg.Port)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.PostgresDSN = getenv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.MongoURI = getenv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDB = getenv("MONGO_DB", cfg.MongoDB)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getenv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.MinioEndpoint = getenv("MINIO_ENDPOINT", cfg.MinioEndpoint)
	cfg.MinioAccessKey = getenv("MINIO_ACCESS_KEY", cfg.MinioAccessKey)
	cfg.MinioSecretKey = getenv("MINIO_SECRET_KEY", cfg.MinioSecretKey)
	cfg.MinioBucket = getenv("MINIO_BUCKET", cfg.MinioBucket)
	cfg.JWTSecret = getenv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTRefreshSecret = getenv("JWT_REFRESH_SECRET", cfg.JWTRefreshSecret)
	cfg.AdminEmail = getenv("ADMIN_EMAIL", cfg.AdminEmail)
	cfg.AdminPassword = getenv("ADMIN_PASSWORD", cfg.AdminPassword)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}

	var err error
	if cfg.MinioUseSSL, err = getbool("MINIO_USE_SSL", cfg.MinioUseSSL); err != nil {
		return err
	}
	if cfg.CookieSecure, err = getbool("COOKIE_SECURE", cfg.CookieSecure); err != nil {
		return err
	}
	if cfg.AccessTokenTTL, err = getduration("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return err
	}
	if cfg.RefreshTokenTTL, err = getduration("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return err
	}
	if cfg.LoanPeriod, err = getduration("LOAN_PERIOD", cfg.LoanPeriod); err != nil {
		return err
	}
	if v := os.Getenv("AUTH_RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: AUTH_RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.AuthRateLimitPerMinute = n
	}
	return nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	if c.PostgresDSN == "" {
		return errors.New("config: POSTGRES_DSN is required")
	}
	if c.MongoURI == "" {
		return errors.New("config: MONGO_URI is required")
	}
	if c.JWTSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("config: JWT_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.JWTSecret == c.JWTRefreshSecret {
		return errors.New("config: JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.LoanPeriod <= 0 {
		return errors.New("config: LOAN_PERIOD must be positive")
	}
	if c.AuthRateLimitPerMinute < 0 {
		return errors.New("config: AUTH_RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("config: ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func getduration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
