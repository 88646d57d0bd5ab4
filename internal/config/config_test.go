package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.Transport != "log" {
		t.Errorf("Transport = %q, want log", cfg.Transport)
	}
	if cfg.MQTTPort != 8883 {
		t.Errorf("MQTTPort = %d, want 8883", cfg.MQTTPort)
	}
	if !cfg.MQTTTLS {
		t.Error("MQTTTLS should default to true")
	}
	if cfg.JWTIssuer != "gate-auth" || cfg.JWTAudience != "gate-api" {
		t.Errorf("JWT issuer/audience = %q/%q, want gate-auth/gate-api", cfg.JWTIssuer, cfg.JWTAudience)
	}
	if got := cfg.SweepIntervalDuration(); got != 60*time.Second {
		t.Errorf("SweepIntervalDuration = %v, want 60s", got)
	}
	if got := cfg.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", got)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("CODE_MAX_ATTEMPTS", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if got := cfg.SweepIntervalDuration(); got != 30*time.Second {
		t.Errorf("SweepIntervalDuration = %v, want 30s", got)
	}
	if cfg.CodeMaxAttempts != 25 {
		t.Errorf("CodeMaxAttempts = %d, want 25", cfg.CodeMaxAttempts)
	}
}

func TestLoad_LogTransportForbiddenInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject TRANSPORT=log in production")
	}
}

func TestLoad_MQTTRequiresHost(t *testing.T) {
	t.Setenv("TRANSPORT", "mqtt")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject TRANSPORT=mqtt without MQTT_HOST")
	}

	t.Setenv("MQTT_HOST", "broker.example.com")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with MQTT_HOST set: %v", err)
	}
}

func TestLoad_KafkaRequiresBrokers(t *testing.T) {
	t.Setenv("TRANSPORT", "kafka")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject TRANSPORT=kafka without KAFKA_BROKERS")
	}

	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with KAFKA_BROKERS set: %v", err)
	}
}

func TestLoad_UnknownTransport(t *testing.T) {
	t.Setenv("TRANSPORT", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject an unknown TRANSPORT")
	}
}

func TestLoad_InsecureSkipVerifyForbiddenInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("TRANSPORT", "mqtt")
	t.Setenv("MQTT_HOST", "broker.example.com")
	t.Setenv("MQTT_INSECURE_SKIP_VERIFY", "true")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject MQTT_INSECURE_SKIP_VERIFY in production")
	}
}

func TestKafkaBrokersList(t *testing.T) {
	cfg := &Config{KafkaBrokers: "a:9092, b:9092 ,,c:9092"}
	got := cfg.KafkaBrokersList()
	want := []string{"a:9092", "b:9092", "c:9092"}
	if len(got) != len(want) {
		t.Fatalf("KafkaBrokersList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("KafkaBrokersList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{SweepInterval: "not-a-duration", JWTAccessTTL: "-5m"}
	if got := cfg.SweepIntervalDuration(); got != 60*time.Second {
		t.Errorf("SweepIntervalDuration = %v, want the 60s fallback", got)
	}
	if got := cfg.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want the 15m fallback", got)
	}
}
