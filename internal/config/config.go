package config

import "time"

// SyncConfig is the root configuration for a leadsync instance.
type SyncConfig struct {
	Session    SessionConfig    `yaml:"session"`
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	Cache      CacheConfig      `yaml:"cache"`
	Journal    JournalConfig    `yaml:"journal"`
	Database   DBConfig         `yaml:"database"`
	Ops        OpsConfig        `yaml:"ops"`
}

// SessionConfig identifies this sync instance.
type SessionConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the backend endpoints and credentials.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	WSURL   string `yaml:"ws_url"`

	// Token is a literal bearer token; TokenFile points at a file
	// holding one, re-read on each connection so the token can be
	// rotated externally. Exactly one must be set.
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`

	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ConnectionConfig holds WebSocket session settings.
type ConnectionConfig struct {
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	BufferSize        int           `yaml:"buffer_size"`

	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
}

// CacheConfig holds cache synchronizer settings.
type CacheConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
}

// JournalConfig holds event journal settings. The journal is optional;
// when disabled no database connection is made.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds the Postgres connection for the event journal.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// OpsConfig holds the local HTTP surface settings.
type OpsConfig struct {
	Port int `yaml:"port"`
}
