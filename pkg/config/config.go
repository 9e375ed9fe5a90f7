package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	icommon "github.com/goran-ethernal/MarketIndexor/internal/common"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
)

const (
	// StorageDriverSQLite keeps checkpoint and projection in a local SQLite file.
	StorageDriverSQLite = "sqlite"
	// StorageDriverPostgres keeps checkpoint and projection in PostgreSQL.
	StorageDriverPostgres = "postgres"

	DefaultChunkSize    = 2000
	DefaultSafetyBuffer = 10
)

// Config represents the complete configuration for the MarketIndexor.
type Config struct {
	// Network selects one entry of Networks
	Network string `yaml:"network" json:"network" toml:"network"`

	// Networks holds the known network profiles keyed by name
	Networks map[string]NetworkConfig `yaml:"networks" json:"networks" toml:"networks"`

	// Indexer contains the polling loop and RPC configuration
	Indexer IndexerConfig `yaml:"indexer" json:"indexer" toml:"indexer"`

	// Storage contains checkpoint and projection storage configuration
	Storage StorageConfig `yaml:"storage" json:"storage" toml:"storage"`

	// Notifier contains the WebSocket notification configuration
	Notifier *NotifierConfig `yaml:"notifier,omitempty" json:"notifier,omitempty" toml:"notifier,omitempty"`

	// Logging contains logging configuration
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics contains Prometheus metrics configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`
}

// NetworkConfig describes one deployment of the governance, market and registry contracts.
type NetworkConfig struct {
	// ChainID is checked against eth_chainId at startup when non-zero
	ChainID uint64 `yaml:"chain_id" json:"chain_id" toml:"chain_id"`

	// GenesisBlock is the checkpoint value used when none is stored yet.
	// Indexing starts at GenesisBlock+1.
	GenesisBlock uint64 `yaml:"genesis_block" json:"genesis_block" toml:"genesis_block"`

	// Contracts holds the contract addresses for this network
	Contracts ContractsConfig `yaml:"contracts" json:"contracts" toml:"contracts"`
}

// ContractsConfig holds the addresses of the indexed contracts.
type ContractsConfig struct {
	Governance       string `yaml:"governance" json:"governance" toml:"governance"`
	PredictionMarket string `yaml:"prediction_market" json:"prediction_market" toml:"prediction_market"`
	AgentRegistry    string `yaml:"agent_registry" json:"agent_registry" toml:"agent_registry"`
}

// Validate checks that every contract address is a valid hex address.
func (c ContractsConfig) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"governance", c.Governance},
		{"prediction_market", c.PredictionMarket},
		{"agent_registry", c.AgentRegistry},
	}

	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("contracts.%s is required", f.name)
		}
		if !common.IsHexAddress(f.value) {
			return fmt.Errorf("contracts.%s: invalid address %q", f.name, f.value)
		}
	}

	return nil
}

// IndexerConfig represents the configuration for the polling loop and its log source.
type IndexerConfig struct {
	// RPCURL is the Ethereum RPC endpoint URL
	RPCURL string `yaml:"rpc_url" json:"rpc_url" toml:"rpc_url"`

	// PollInterval is the sleep between cycles once caught up, and after a failed cycle
	PollInterval icommon.Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`

	// ChunkSize is the maximum number of blocks scanned per cycle
	ChunkSize uint64 `yaml:"chunk_size" json:"chunk_size" toml:"chunk_size"`

	// SafetyBuffer is the number of blocks behind head treated as not yet queryable.
	// Unset means DefaultSafetyBuffer; an explicit 0 indexes up to head.
	SafetyBuffer *uint64 `yaml:"safety_buffer,omitempty" json:"safety_buffer,omitempty" toml:"safety_buffer,omitempty"` //nolint:lll

	// RequestTimeout bounds every RPC request
	RequestTimeout icommon.Duration `yaml:"request_timeout" json:"request_timeout" toml:"request_timeout"`

	// Retry contains RPC retry configuration with exponential backoff
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`
}

// ApplyDefaults sets default values for optional indexer configuration fields.
func (i *IndexerConfig) ApplyDefaults() {
	if i.PollInterval.Duration == 0 {
		i.PollInterval = icommon.NewDuration(5 * time.Second) //nolint:mnd
	}
	if i.ChunkSize == 0 {
		i.ChunkSize = DefaultChunkSize
	}
	if i.SafetyBuffer == nil {
		buffer := uint64(DefaultSafetyBuffer)
		i.SafetyBuffer = &buffer
	}
	if i.RequestTimeout.Duration == 0 {
		i.RequestTimeout = icommon.NewDuration(30 * time.Second) //nolint:mnd
	}
	if i.Retry != nil {
		i.Retry.ApplyDefaults()
	}
}

// GetSafetyBuffer returns the configured safety buffer or DefaultSafetyBuffer when unset.
func (i *IndexerConfig) GetSafetyBuffer() uint64 {
	if i.SafetyBuffer == nil {
		return DefaultSafetyBuffer
	}

	return *i.SafetyBuffer
}

// RetryConfig represents RPC retry configuration with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial request)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`

	// InitialBackoff is the initial backoff duration before first retry
	InitialBackoff icommon.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`

	// MaxBackoff is the maximum backoff duration
	MaxBackoff icommon.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

// ApplyDefaults sets default values for retry configuration.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 3
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = icommon.NewDuration(500 * time.Millisecond) //nolint:mnd
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = icommon.NewDuration(10 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// StorageConfig selects and configures the checkpoint and projection backend.
type StorageConfig struct {
	// Driver is "sqlite" (default) or "postgres"
	Driver string `yaml:"driver" json:"driver" toml:"driver"`

	// DB contains SQLite configuration, used by the sqlite driver
	DB DatabaseConfig `yaml:"db" json:"db" toml:"db"`

	// Postgres contains PostgreSQL configuration, used by the postgres driver
	Postgres *PostgresConfig `yaml:"postgres,omitempty" json:"postgres,omitempty" toml:"postgres,omitempty"`

	// Maintenance contains optional SQLite maintenance settings
	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`
}

// ApplyDefaults sets default values for optional storage configuration fields.
func (s *StorageConfig) ApplyDefaults() {
	if s.Driver == "" {
		s.Driver = StorageDriverSQLite
	}
	s.Driver = icommon.ToLowerWithTrim(s.Driver)

	if s.Driver == StorageDriverSQLite {
		s.DB.ApplyDefaults()
	}
	if s.Postgres != nil {
		s.Postgres.ApplyDefaults()
	}
	if s.Maintenance != nil {
		s.Maintenance.ApplyDefaults()
	}
}

// Validate checks if the storage configuration is valid.
func (s *StorageConfig) Validate() error {
	switch s.Driver {
	case StorageDriverSQLite:
		if err := s.DB.Validate(); err != nil {
			return fmt.Errorf("storage.db: %w", err)
		}
	case StorageDriverPostgres:
		if s.Postgres == nil || s.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be one of: %s, %s", StorageDriverSQLite, StorageDriverPostgres)
	}

	if s.Maintenance != nil {
		if err := s.Maintenance.Validate(); err != nil {
			return fmt.Errorf("storage.maintenance: %w", err)
		}
	}

	return nil
}

// DatabaseConfig represents SQLite database configuration.
type DatabaseConfig struct {
	// Path is the file path to the SQLite database
	Path string `yaml:"path" json:"path" toml:"path"`

	// JournalMode sets the SQLite journal mode (e.g., "WAL", "DELETE")
	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`

	// Synchronous sets the synchronization level ("FULL", "NORMAL", "OFF")
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is the time in milliseconds to wait when the database is locked
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`

	// CacheSize is the size of the page cache (negative = KB, positive = pages)
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	// MaxOpenConnections is the maximum number of open database connections
	MaxOpenConnections int `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`

	// MaxIdleConnections is the maximum number of idle connections in the pool
	MaxIdleConnections int `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 4
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 2
	}
}

// Validate checks the SQLite settings.
func (d *DatabaseConfig) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("path is required")
	}

	if d.JournalMode != "" &&
		!slices.Contains([]string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}, d.JournalMode) {
		return fmt.Errorf("journal_mode must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
	}

	if d.Synchronous != "" && !slices.Contains([]string{"FULL", "NORMAL", "OFF"}, d.Synchronous) {
		return fmt.Errorf("synchronous must be one of: FULL, NORMAL, OFF")
	}

	return nil
}

// PostgresConfig represents PostgreSQL connection configuration.
type PostgresConfig struct {
	// DSN is a libpq style connection string or postgres:// URL
	DSN string `yaml:"dsn" json:"dsn" toml:"dsn"`

	// MaxConns is the maximum size of the connection pool
	MaxConns int32 `yaml:"max_conns" json:"max_conns" toml:"max_conns"`

	// ConnectTimeout bounds the initial connection and ping
	ConnectTimeout icommon.Duration `yaml:"connect_timeout" json:"connect_timeout" toml:"connect_timeout"`
}

// ApplyDefaults sets default values for optional PostgreSQL configuration fields.
func (p *PostgresConfig) ApplyDefaults() {
	if p.MaxConns == 0 {
		p.MaxConns = 5
	}
	if p.ConnectTimeout.Duration == 0 {
		p.ConnectTimeout = icommon.NewDuration(10 * time.Second) //nolint:mnd
	}
}

// MaintenanceConfig configures SQLite maintenance behavior.
type MaintenanceConfig struct {
	// Enabled controls whether background maintenance runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// CheckInterval is how often to run maintenance (e.g., "30m", "1h")
	CheckInterval icommon.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`

	// VacuumOnStartup runs maintenance immediately on startup
	VacuumOnStartup bool `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup"`

	// WALCheckpointMode is one of PASSIVE, FULL, RESTART, TRUNCATE
	WALCheckpointMode string `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode"`
}

// ApplyDefaults sets default values for optional maintenance configuration fields.
func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval = icommon.NewDuration(30 * time.Minute) //nolint:mnd
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
}

// Validate checks if the maintenance configuration is valid.
func (m *MaintenanceConfig) Validate() error {
	if m.WALCheckpointMode != "" &&
		!slices.Contains([]string{"PASSIVE", "FULL", "RESTART", "TRUNCATE"}, m.WALCheckpointMode) {
		return fmt.Errorf("wal_checkpoint_mode: must be one of: PASSIVE, FULL, RESTART, TRUNCATE")
	}

	return nil
}

// NotifierConfig configures the WebSocket endpoint that pushes projection changes.
type NotifierConfig struct {
	// Enabled controls whether the WebSocket server is started
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the WebSocket server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path accepting WebSocket upgrades
	Path string `yaml:"path" json:"path" toml:"path"`

	// SendBuffer is the number of queued messages per subscriber before it is dropped
	SendBuffer int `yaml:"send_buffer" json:"send_buffer" toml:"send_buffer"`

	// WriteTimeout bounds a single frame write to a subscriber
	WriteTimeout icommon.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`

	// AllowedOrigins restricts the Origin header; empty allows any origin
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" json:"allowed_origins,omitempty" toml:"allowed_origins,omitempty"` //nolint:lll
}

// ApplyDefaults sets default values for optional notifier configuration fields.
func (n *NotifierConfig) ApplyDefaults() {
	if n.ListenAddress == "" {
		n.ListenAddress = ":8081"
	}
	if n.Path == "" {
		n.Path = "/ws"
	}
	if n.SendBuffer == 0 {
		n.SendBuffer = 64
	}
	if n.WriteTimeout.Duration == 0 {
		n.WriteTimeout = icommon.NewDuration(10 * time.Second) //nolint:mnd
	}
}

// Validate checks if the notifier configuration is valid.
func (n *NotifierConfig) Validate() error {
	if !n.Enabled {
		return nil
	}
	if n.Path == "" || n.Path[0] != '/' {
		return fmt.Errorf("path must start with '/'")
	}
	if n.SendBuffer < 1 {
		return fmt.Errorf("send_buffer must be positive")
	}
	return nil
}

// LoggingConfig configures logging behavior with per-component log levels.
type LoggingConfig struct {
	// DefaultLevel is the default log level for all components
	// Options: "debug", "info", "warn", "error"
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level"`

	// Development enables development mode (stack traces, console encoder)
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels sets log levels for specific components
	// Available components: poller, log-source, decoder, projector, notifier,
	// checkpoint, store, maintenance
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty"` //nolint:lll
}

// ApplyDefaults sets default values for optional logging configuration fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
}

// Validate checks if the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, valid := logger.ValidLogLevels[icommon.ToLowerWithTrim(l.DefaultLevel)]; !valid {
			return fmt.Errorf("logging.default_level: must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, validComponent := icommon.AllComponents[icommon.ToLowerWithTrim(component)]; !validComponent {
			return fmt.Errorf("logging.component_levels: unknown component '%s'", component)
		}

		if _, valid := logger.ValidLogLevels[icommon.ToLowerWithTrim(level)]; !valid {
			return fmt.Errorf("logging.component_levels[%s]: must be one of: debug, info, warn, error", component)
		}
	}

	return nil
}

// GetComponentLevel returns the log level for a specific component.
// Falls back to DefaultLevel if no component-specific level is set.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if l == nil {
		return "info"
	}
	if level, ok := l.ComponentLevels[component]; ok {
		return icommon.ToLowerWithTrim(level)
	}
	return l.GetDefaultLevel()
}

// GetDefaultLevel returns the default log level.
func (l *LoggingConfig) GetDefaultLevel() string {
	if l == nil || l.DefaultLevel == "" {
		return "info"
	}
	return icommon.ToLowerWithTrim(l.DefaultLevel)
}

// IsDevelopment returns whether development mode is enabled.
func (l *LoggingConfig) IsDevelopment() bool {
	return l != nil && l.Development
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP endpoint are active
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the metrics HTTP server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path where metrics are exposed
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks if the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.ListenAddress == "" {
			return fmt.Errorf("listen_address is required when metrics are enabled")
		}
		if m.Path == "" || m.Path[0] != '/' {
			return fmt.Errorf("path must start with '/'")
		}
	}
	return nil
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	c.Network = strings.TrimSpace(c.Network)
	c.Indexer.ApplyDefaults()
	c.Storage.ApplyDefaults()

	if c.Notifier != nil {
		c.Notifier.ApplyDefaults()
	}
	if c.Logging != nil {
		c.Logging.ApplyDefaults()
	}
	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	network, err := c.ActiveNetwork()
	if err != nil {
		return err
	}

	if err := network.Contracts.Validate(); err != nil {
		return fmt.Errorf("networks.%s.%w", c.Network, err)
	}

	if c.Indexer.RPCURL == "" {
		return fmt.Errorf("indexer.rpc_url is required")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.Notifier != nil {
		if err := c.Notifier.Validate(); err != nil {
			return fmt.Errorf("notifier: %w", err)
		}
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	return nil
}

// ActiveNetwork returns the profile selected by Network.
func (c *Config) ActiveNetwork() (NetworkConfig, error) {
	if c.Network == "" {
		return NetworkConfig{}, fmt.Errorf("network is required")
	}

	network, ok := c.Networks[c.Network]
	if !ok {
		known := make([]string, 0, len(c.Networks))
		for name := range c.Networks {
			known = append(known, name)
		}
		sort.Strings(known)

		return NetworkConfig{}, fmt.Errorf("unknown network %q (configured: %s)", c.Network, strings.Join(known, ", "))
	}

	return network, nil
}
