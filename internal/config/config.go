package config

import (
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Config struct {
	Port             int
	LogLevel         string
	DatabaseURL      string
	NatsURL          string
	NatsToken        string
	AssistantURL     string
	AssistantAPIKey  string
	AssistantVersion string
	CacheDir         string
	ExportDir        string
	CORSOrigins      []string

	// Object storage credentials for presigned workbook links. Links are
	// only generated when all of endpoint, bucket and key pair are set.
	COSEndpoint        string
	COSBucket          string
	COSRegion          string
	COSAccessKeyID     string
	COSSecretAccessKey string
	COSLinkExpiry      string
}

func Load() Config {
	return Config{
		Port:             envInt("EFFORT_PORT", 8760),
		LogLevel:         envStr("LOG_LEVEL", "info"),
		DatabaseURL:      envStr("DATABASE_URL", ""),
		NatsURL:          envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:        envStr("NATS_TOKEN", ""),
		AssistantURL:     envStr("ASSISTANT_URL", "https://api.us-south.assistant.watson.cloud.ibm.com"),
		AssistantAPIKey:  envStr("ASSISTANT_API_KEY", ""),
		AssistantVersion: envStr("ASSISTANT_VERSION", "2021-06-14"),
		CacheDir:         envStr("EFFORT_CACHE_DIR", "./cache"),
		ExportDir:        envStr("EFFORT_EXPORT_DIR", "./exports"),
		CORSOrigins:      envList("EFFORT_CORS_ORIGINS"),

		COSEndpoint:        envStr("COS_ENDPOINT", ""),
		COSBucket:          envStr("COS_BUCKET", ""),
		COSRegion:          envStr("COS_REGION", "us-south"),
		COSAccessKeyID:     envStr("COS_ACCESS_KEY_ID", ""),
		COSSecretAccessKey: envStr("COS_SECRET_ACCESS_KEY", ""),
		COSLinkExpiry:      envStr("COS_LINK_EXPIRY", ""),
	}
}

// LinkSigningConfigured reports whether presigned links can be generated.
func (c Config) LinkSigningConfigured() bool {
	return c.COSEndpoint != "" && c.COSBucket != "" &&
		c.COSAccessKeyID != "" && c.COSSecretAccessKey != ""
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.AssistantURL, validation.Required),
		validation.Field(&c.AssistantVersion, validation.Required),
	)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
