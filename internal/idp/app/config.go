package app

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tanukisoft/torii/internal/idp/oauth2"
)

type Config struct {
	Issuer         string // Required: issuer claim for ID tokens and discovery
	BootstrapToken string // Optional: seeds an initial access token for registration

	NumKeys      int    // Optional: number of Ed25519 signing keys (default: 3)
	DatabaseFile string // Optional: path to SQLite database file (default: ./torii.db)
	Env          string // Environment (dev, staging, prod) (default: dev)
	LogLevel     string // Log level (debug, info, warn, error) (default: info)
	LogFormat    string // Log format (json, text) (default: json)
	Port         int    // HTTP server port (default: 8080)

	AccessTokenTTL  time.Duration // Access token lifetime (default: 1h)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 720h)
	CodeTTL         time.Duration // Authorization code lifetime (default: 10m)
	IDTokenTTL      time.Duration // ID token lifetime (default: 1h)
	RequestTTL      time.Duration // In-flight authorization request lifetime (default: 15m)
	SessionTTL      time.Duration // Login session cookie lifetime (default: 12h)

	ScopesSupported []string // Scopes the server recognizes
	DefaultScopes   []string // Scopes granted when a request names none

	// RotateRefreshTokens revokes the presented refresh token on every
	// refresh_token grant and issues a replacement.
	RotateRefreshTokens bool

	// RejectUnmatchedVerifier fails code exchanges that present a
	// code_verifier when the authorization request carried no challenge.
	// Off by default: the stray verifier is ignored.
	RejectUnmatchedVerifier bool

	// AllowResponseModeOverride lets clients pick response_mode explicitly.
	AllowResponseModeOverride bool

	// TrustedIssuersFile points at a JSON file describing external
	// jwt-bearer assertion issuers.
	TrustedIssuersFile string

	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-row sweep interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:               os.Getenv("TORII_ISSUER"),
		BootstrapToken:       os.Getenv("TORII_BOOTSTRAP_TOKEN"),
		NumKeys:              getEnvIntOrDefault("TORII_NUM_KEYS", 3),
		DatabaseFile:         getEnvOrDefault("TORII_DATABASE_FILE", "torii.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		AccessTokenTTL:       getEnvDurationOrDefault("TORII_ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:      getEnvDurationOrDefault("TORII_REFRESH_TOKEN_TTL", 720*time.Hour),
		CodeTTL:              getEnvDurationOrDefault("TORII_CODE_TTL", 10*time.Minute),
		IDTokenTTL:           getEnvDurationOrDefault("TORII_ID_TOKEN_TTL", time.Hour),
		RequestTTL:           getEnvDurationOrDefault("TORII_REQUEST_TTL", 15*time.Minute),
		SessionTTL:           getEnvDurationOrDefault("TORII_SESSION_TTL", 12*time.Hour),
		ScopesSupported:      getEnvListOrDefault("TORII_SCOPES", []string{"openid", "profile", "email", "offline_access"}),
		DefaultScopes:        getEnvListOrDefault("TORII_DEFAULT_SCOPES", []string{"openid"}),
		RotateRefreshTokens:  getEnvBoolOrDefault("TORII_ROTATE_REFRESH_TOKENS", true),
		TrustedIssuersFile:   os.Getenv("TORII_TRUSTED_ISSUERS_FILE"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	cfg.RejectUnmatchedVerifier = getEnvBoolOrDefault("TORII_REJECT_UNMATCHED_VERIFIER", false)
	cfg.AllowResponseModeOverride = getEnvBoolOrDefault("TORII_ALLOW_RESPONSE_MODE_OVERRIDE", true)

	if cfg.Issuer == "" {
		cfg.Issuer = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.Issuer = strings.TrimRight(cfg.Issuer, "/")

	return cfg
}

// LoadTrustedIssuers reads the external jwt-bearer issuer list, an empty
// path yields no issuers.
func (c Config) LoadTrustedIssuers() ([]oauth2.TrustedIssuer, error) {
	if c.TrustedIssuersFile == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(c.TrustedIssuersFile)
	if err != nil {
		return nil, fmt.Errorf("read trusted issuers file: %w", err)
	}

	var issuers []oauth2.TrustedIssuer
	if err := json.Unmarshal(raw, &issuers); err != nil {
		return nil, fmt.Errorf("parse trusted issuers file: %w", err)
	}
	return issuers, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.Fields(value)
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
