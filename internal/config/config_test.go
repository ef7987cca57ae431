package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
session:
  id: test-session
server:
  base_url: https://api.leadstack.test/v1
  ws_url: wss://push.leadstack.test/v1/stream
  token: tok-123
connection:
  heartbeat_interval: 20s
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Session.ID != "test-session" {
		t.Errorf("Session.ID = %q, want %q", cfg.Session.ID, "test-session")
	}
	if cfg.Server.BaseURL != "https://api.leadstack.test/v1" {
		t.Errorf("Server.BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Connection.HeartbeatInterval != 20*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 20s", cfg.Connection.HeartbeatInterval)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_SYNC_TOKEN", "secret123")

	yaml := `
session:
  id: test-session
server:
  base_url: https://api.leadstack.test/v1
  ws_url: wss://push.leadstack.test/v1/stream
  token: ${TEST_SYNC_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Token != "secret123" {
		t.Errorf("Server.Token = %q, want %q", cfg.Server.Token, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
session:
  id: test-session
server:
  base_url: https://api.leadstack.test/v1
  ws_url: wss://push.leadstack.test/v1/stream
  token: tok-123
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Connection.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("HeartbeatInterval = %v, want default %v", cfg.Connection.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.Connection.ReconnectBaseDelay != DefaultReconnectBase {
		t.Errorf("ReconnectBaseDelay = %v, want default %v", cfg.Connection.ReconnectBaseDelay, DefaultReconnectBase)
	}
	if cfg.Connection.MaxReconnectAttempts != DefaultReconnectAttempts {
		t.Errorf("MaxReconnectAttempts = %d, want default %d", cfg.Connection.MaxReconnectAttempts, DefaultReconnectAttempts)
	}
	if cfg.Cache.RefreshInterval != DefaultRefreshInterval {
		t.Errorf("RefreshInterval = %v, want default %v", cfg.Cache.RefreshInterval, DefaultRefreshInterval)
	}
	if cfg.Journal.BatchSize != DefaultJournalBatchSize {
		t.Errorf("Journal.BatchSize = %d, want default %d", cfg.Journal.BatchSize, DefaultJournalBatchSize)
	}
	if cfg.Ops.Port != DefaultOpsPort {
		t.Errorf("Ops.Port = %d, want default %d", cfg.Ops.Port, DefaultOpsPort)
	}

	// Explicit values survive
	if cfg.Server.Token != "tok-123" {
		t.Errorf("Server.Token = %q", cfg.Server.Token)
	}
}

func TestLoadAndValidate(t *testing.T) {
	yaml := `
session:
  id: test-session
server:
  base_url: https://api.leadstack.test/v1
  ws_url: wss://push.leadstack.test/v1/stream
  token: tok-123
`
	path := writeTempFile(t, yaml)

	if _, err := LoadAndValidate(path); err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempFile(t, "session: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *SyncConfig {
		cfg := &SyncConfig{}
		cfg.Session.ID = "s"
		cfg.Server.BaseURL = "https://api.test"
		cfg.Server.WSURL = "wss://push.test"
		cfg.Server.Token = "tok"
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*SyncConfig)
		wantErr string
	}{
		{"valid", func(c *SyncConfig) {}, ""},
		{"missing session id", func(c *SyncConfig) { c.Session.ID = "" }, "session.id"},
		{"missing base url", func(c *SyncConfig) { c.Server.BaseURL = "" }, "base_url"},
		{"missing ws url", func(c *SyncConfig) { c.Server.WSURL = "" }, "ws_url"},
		{"no token", func(c *SyncConfig) { c.Server.Token = "" }, "token"},
		{"both token forms", func(c *SyncConfig) { c.Server.TokenFile = "/tmp/tok" }, "mutually exclusive"},
		{"heartbeat timeout too small", func(c *SyncConfig) {
			c.Connection.HeartbeatTimeout = c.Connection.HeartbeatInterval
		}, "heartbeat_timeout"},
		{"base delay above cap", func(c *SyncConfig) {
			c.Connection.ReconnectBaseDelay = 2 * time.Minute
		}, "reconnect_base_delay"},
		{"zero attempts", func(c *SyncConfig) { c.Connection.MaxReconnectAttempts = -1 }, "max_reconnect_attempts"},
		{"journal without database", func(c *SyncConfig) { c.Journal.Enabled = true }, "database"},
		{"bad ops port", func(c *SyncConfig) { c.Ops.Port = 99999 }, "ops.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate failed: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_JournalDatabase(t *testing.T) {
	cfg := &SyncConfig{}
	cfg.Session.ID = "s"
	cfg.Server.BaseURL = "https://api.test"
	cfg.Server.WSURL = "wss://push.test"
	cfg.Server.Token = "tok"
	cfg.Journal.Enabled = true
	cfg.Database.Host = "localhost"
	cfg.Database.Name = "leadsync"
	cfg.Database.User = "sync"
	cfg.Database.Password = "pw"
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}

	cfg.Database.MinConns = 10
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for min_conns > max_conns")
	}
}
