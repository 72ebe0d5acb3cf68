package mq

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mqtt.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
connection:
  server: "tcp://broker.example.com:1883"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Connection.KeepAlive != 30*time.Second {
		t.Errorf("default KeepAlive = %v, want 30s", cfg.Connection.KeepAlive)
	}
	if cfg.Connection.ConnectTimeout != 10*time.Second {
		t.Errorf("default ConnectTimeout = %v, want 10s", cfg.Connection.ConnectTimeout)
	}
	if cfg.Reconnect.MinDelay != time.Second || cfg.Reconnect.MaxDelay != 2*time.Minute {
		t.Errorf("default reconnect bounds = %v/%v, want 1s/2m", cfg.Reconnect.MinDelay, cfg.Reconnect.MaxDelay)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadConfigRejectsMissingServer(t *testing.T) {
	path := writeConfigFile(t, "connection:\n  client_id: foo\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig with no server: want error, got nil")
	}
}

func TestLoadConfigRejectsBadWillQoS(t *testing.T) {
	path := writeConfigFile(t, `
connection:
  server: "tcp://localhost:1883"
will:
  topic: "status/offline"
  message: "bye"
  qos: 3
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig with will.qos=3: want error, got nil")
	}
}

func TestConfigOptionsRoundTrip(t *testing.T) {
	path := writeConfigFile(t, `
connection:
  server: "tcp://localhost:1883"
  client_id: "test-client"
  max_inflight: 5
auth:
  username: "alice"
  password: "s3cret"
reconnect:
  enabled: true
  min_delay: 500ms
  max_delay: 30s
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	opts := cfg.Options()
	applied := &clientOptions{}
	for _, opt := range opts {
		opt(applied)
	}

	if applied.ClientID != "test-client" {
		t.Errorf("ClientID = %q, want test-client", applied.ClientID)
	}
	if applied.MaxInFlight != 5 {
		t.Errorf("MaxInFlight = %d, want 5", applied.MaxInFlight)
	}
	if applied.Username != "alice" || applied.Password != "s3cret" {
		t.Errorf("credentials = %q/%q, want alice/s3cret", applied.Username, applied.Password)
	}
	if applied.MinReconnectDelay != 500*time.Millisecond || applied.MaxReconnectDelay != 30*time.Second {
		t.Errorf("reconnect bounds = %v/%v, want 500ms/30s", applied.MinReconnectDelay, applied.MaxReconnectDelay)
	}
	if cfg.Server() != "tcp://localhost:1883" {
		t.Errorf("Server() = %q", cfg.Server())
	}
}
