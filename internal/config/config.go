// Package config loads and validates app config from env and an optional
// .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Transport selects the command broker: "mqtt", "kafka", or "log"
	// (development fallback that only writes to the process log).
	Transport string `mapstructure:"TRANSPORT"`
	// MQTTHost is the MQTT broker host; required when Transport is mqtt.
	MQTTHost string `mapstructure:"MQTT_HOST"`
	// MQTTPort is the MQTT broker port (default 8883).
	MQTTPort int `mapstructure:"MQTT_PORT"`
	// MQTTUser and MQTTPass authenticate against the broker.
	MQTTUser string `mapstructure:"MQTT_USER"`
	MQTTPass string `mapstructure:"MQTT_PASS"`
	// MQTTTLS enables mqtts (default true; cloud brokers require it).
	MQTTTLS bool `mapstructure:"MQTT_TLS"`
	// MQTTInsecureSkipVerify disables certificate verification for brokers
	// with self-signed certs. Never enable in production.
	MQTTInsecureSkipVerify bool `mapstructure:"MQTT_INSECURE_SKIP_VERIFY"`
	// KafkaBrokers is a comma-separated broker list; required when
	// Transport is kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`

	// Targets optionally extends the built-in target table, as
	// "id=topic:encoding" items (encoding "raw" or "switch").
	Targets string `mapstructure:"TARGETS"`

	// SweepInterval is how often expired codes are swept (e.g. "60s").
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
	// CodeMaxAttempts bounds collision retries when generating a code.
	CodeMaxAttempts int `mapstructure:"CODE_MAX_ATTEMPTS"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or a
	// path to one; used with JWTPublicKey for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or a path to one.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "gate-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "gate-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the admin token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`

	// AdminName is the administrative principal recorded as the owner of
	// audited admin actions.
	AdminName string `mapstructure:"ADMIN_NAME"`
	// AdminPasswordHash is the bcrypt hash of the admin password.
	// Required; there is no default credential.
	AdminPasswordHash string `mapstructure:"ADMIN_PASSWORD_HASH"`

	// DatabaseURL is the Postgres DSN for the audit trail; empty keeps the
	// trail in memory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// CORSAllowedOrigin is the Access-Control-Allow-Origin value for the
	// browser frontend. Default "*"; narrow it to the frontend's domain.
	CORSAllowedOrigin string `mapstructure:"CORS_ALLOWED_ORIGIN"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("TRANSPORT", "log")
	v.SetDefault("MQTT_HOST", "")
	v.SetDefault("MQTT_PORT", 8883)
	v.SetDefault("MQTT_USER", "")
	v.SetDefault("MQTT_PASS", "")
	v.SetDefault("MQTT_TLS", true)
	v.SetDefault("MQTT_INSECURE_SKIP_VERIFY", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TARGETS", "")
	v.SetDefault("SWEEP_INTERVAL", "60s")
	v.SetDefault("CODE_MAX_ATTEMPTS", 100)
	v.SetDefault("JWT_ISSUER", "gate-auth")
	v.SetDefault("JWT_AUDIENCE", "gate-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("ADMIN_NAME", "admin")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("CORS_ALLOWED_ORIGIN", "*")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	switch cfg.Transport {
	case "log":
		if cfg.Env == "production" {
			return nil, errors.New("config: TRANSPORT=log must not be used when APP_ENV=production")
		}
	case "mqtt":
		if cfg.MQTTHost == "" {
			return nil, errors.New("config: MQTT_HOST must be set when TRANSPORT=mqtt")
		}
	case "kafka":
		if len(cfg.KafkaBrokersList()) == 0 {
			return nil, errors.New("config: KAFKA_BROKERS must be set when TRANSPORT=kafka")
		}
	default:
		return nil, fmt.Errorf("config: TRANSPORT must be mqtt, kafka, or log, got %q", cfg.Transport)
	}
	if cfg.MQTTInsecureSkipVerify && cfg.Env == "production" {
		return nil, errors.New("config: MQTT_INSECURE_SKIP_VERIFY must not be true when APP_ENV=production")
	}

	return &cfg, nil
}

// SweepIntervalDuration parses SweepInterval. Returns 60s if unset or
// invalid.
func (c *Config) SweepIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// AccessTTL parses JWTAccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// KafkaBrokersList returns broker addresses from the comma-separated
// config value.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
