package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the portal.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	BcryptCost int

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	OSSEndpoint        string
	OSSAccessKeyID     string
	OSSAccessKeySecret string
	OSSBucket          string

	DingTalkBaseURL     string
	DingTalkAppKey      string
	DingTalkAppSecret   string
	DingTalkRedirectURI string
	FrontendURL         string
	AllowedMobiles      []string
	AllowedEmails       []string

	OnDemandURLTTL   time.Duration
	PublishURLTTL    time.Duration
	SweepHorizon     time.Duration
	SweepInterval    time.Duration
	SweepBatchSize   int
	MaxUploadBytes   int64
	DefaultPageSize  int
	MaxPageSize      int
	DingTalkHTTPTime time.Duration

	MaxDBConns int32
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	OSS struct {
		Endpoint        string `yaml:"endpoint"`
		AccessKeyID     string `yaml:"access_key_id"`
		AccessKeySecret string `yaml:"access_key_secret"`
		Bucket          string `yaml:"bucket"`
	} `yaml:"oss"`
	DingTalk struct {
		BaseURL        string   `yaml:"base_url"`
		AppKey         string   `yaml:"app_key"`
		AppSecret      string   `yaml:"app_secret"`
		RedirectURI    string   `yaml:"redirect_uri"`
		FrontendURL    string   `yaml:"frontend_url"`
		AllowedMobiles []string `yaml:"allowed_mobiles"`
		AllowedEmails  []string `yaml:"allowed_emails"`
	} `yaml:"dingtalk"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:         "software-portal",
		HTTPPort:          8080,
		GRPCPort:          9090,
		JWTKeyID:          "portal-key-1",
		AllowEphemeralJWT: true,
		BcryptCost:        12,
		AccessTokenTTL:    24 * time.Hour,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		DingTalkBaseURL:   "https://api.dingtalk.com",
		FrontendURL:       "http://localhost:8080",
		OnDemandURLTTL:    time.Hour,
		PublishURLTTL:     7 * 24 * time.Hour,
		SweepHorizon:      72 * time.Hour,
		SweepInterval:     24 * time.Hour,
		SweepBatchSize:    200,
		MaxUploadBytes:    2 << 30,
		DefaultPageSize:   10,
		MaxPageSize:       100,
		DingTalkHTTPTime:  8 * time.Second,
		MaxDBConns:        20,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.OSS.Endpoint != "" {
			cfg.OSSEndpoint = f.OSS.Endpoint
		}
		if f.OSS.AccessKeyID != "" {
			cfg.OSSAccessKeyID = f.OSS.AccessKeyID
		}
		if f.OSS.AccessKeySecret != "" {
			cfg.OSSAccessKeySecret = f.OSS.AccessKeySecret
		}
		if f.OSS.Bucket != "" {
			cfg.OSSBucket = f.OSS.Bucket
		}
		if f.DingTalk.BaseURL != "" {
			cfg.DingTalkBaseURL = f.DingTalk.BaseURL
		}
		if f.DingTalk.AppKey != "" {
			cfg.DingTalkAppKey = f.DingTalk.AppKey
		}
		if f.DingTalk.AppSecret != "" {
			cfg.DingTalkAppSecret = f.DingTalk.AppSecret
		}
		if f.DingTalk.RedirectURI != "" {
			cfg.DingTalkRedirectURI = f.DingTalk.RedirectURI
		}
		if f.DingTalk.FrontendURL != "" {
			cfg.FrontendURL = f.DingTalk.FrontendURL
		}
		if len(f.DingTalk.AllowedMobiles) > 0 {
			cfg.AllowedMobiles = f.DingTalk.AllowedMobiles
		}
		if len(f.DingTalk.AllowedEmails) > 0 {
			cfg.AllowedEmails = f.DingTalk.AllowedEmails
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)

	cfg.OSSEndpoint = envOrDefault("OSS_ENDPOINT", cfg.OSSEndpoint)
	cfg.OSSAccessKeyID = envOrDefault("OSS_ACCESS_KEY_ID", cfg.OSSAccessKeyID)
	cfg.OSSAccessKeySecret = envOrDefault("OSS_ACCESS_KEY_SECRET", cfg.OSSAccessKeySecret)
	cfg.OSSBucket = envOrDefault("OSS_BUCKET", cfg.OSSBucket)

	cfg.DingTalkBaseURL = envOrDefault("DINGTALK_BASE_URL", cfg.DingTalkBaseURL)
	cfg.DingTalkAppKey = envOrDefault("DINGTALK_APP_KEY", cfg.DingTalkAppKey)
	cfg.DingTalkAppSecret = envOrDefault("DINGTALK_APP_SECRET", cfg.DingTalkAppSecret)
	cfg.DingTalkRedirectURI = envOrDefault("DINGTALK_REDIRECT_URI", cfg.DingTalkRedirectURI)
	cfg.FrontendURL = envOrDefault("FRONTEND_URL", cfg.FrontendURL)
	cfg.AllowedMobiles = envCSV("ALLOWED_MOBILES", cfg.AllowedMobiles)
	cfg.AllowedEmails = envCSV("ALLOWED_EMAILS", cfg.AllowedEmails)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.DefaultPageSize = envInt("DEFAULT_PAGE_SIZE", cfg.DefaultPageSize)
	cfg.MaxPageSize = envInt("MAX_PAGE_SIZE", cfg.MaxPageSize)
	cfg.SweepBatchSize = envInt("SWEEP_BATCH_SIZE", cfg.SweepBatchSize)
	cfg.MaxUploadBytes = int64(envInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))

	cfg.AccessTokenTTL = time.Duration(envInt("TOKEN_EXPIRY_HOURS", int(cfg.AccessTokenTTL.Hours()))) * time.Hour
	cfg.RefreshTokenTTL = time.Duration(envInt("REFRESH_EXPIRY_DAYS", int(cfg.RefreshTokenTTL.Hours()/24))) * 24 * time.Hour
	cfg.OnDemandURLTTL = time.Duration(envInt("DOWNLOAD_URL_TTL_SECONDS", int(cfg.OnDemandURLTTL.Seconds()))) * time.Second
	cfg.PublishURLTTL = time.Duration(envInt("PUBLISH_URL_TTL_DAYS", int(cfg.PublishURLTTL.Hours()/24))) * 24 * time.Hour
	cfg.SweepHorizon = time.Duration(envInt("SWEEP_HORIZON_HOURS", int(cfg.SweepHorizon.Hours()))) * time.Hour
	cfg.SweepInterval = time.Duration(envInt("SWEEP_INTERVAL_HOURS", int(cfg.SweepInterval.Hours()))) * time.Hour
	cfg.DingTalkHTTPTime = time.Duration(envInt("DINGTALK_HTTP_TIMEOUT_SECONDS", int(cfg.DingTalkHTTPTime.Seconds()))) * time.Second

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.OSSEndpoint == "" || cfg.OSSBucket == "" {
		return Config{}, fmt.Errorf("missing OSS_ENDPOINT or OSS_BUCKET")
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
