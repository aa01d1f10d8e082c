// Package config provides Viper-based configuration loading for the Destiny
// game server, gateway and console.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// ServerConfig holds the gRPC game service settings.
type ServerConfig struct {
	// GRPCHost is the bind address for the game service.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port for the game service.
	GRPCPort int `mapstructure:"grpc_port"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.GRPCHost, s.GRPCPort)
}

// GatewayConfig holds the HTTP and WebSocket gateway settings.
type GatewayConfig struct {
	// Enabled starts the gateway alongside the game service.
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	// EventBuffer is the per-connection event queue length. Events beyond it
	// are dropped for that connection.
	EventBuffer int `mapstructure:"event_buffer"`
	// WriteTimeout bounds a single WebSocket write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// StorageConfig selects where save slots live.
type StorageConfig struct {
	// Backend is one of memory, sqlite or postgres.
	Backend string `mapstructure:"backend"`
	// SQLitePath is the database file for the sqlite backend. ":memory:" is allowed.
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output is "stderr", "stdout" or a file path.
	Output string `mapstructure:"output"`
}

// GameConfig tunes the simulation.
type GameConfig struct {
	// Seed seeds the random source. Zero selects a cryptographic source.
	Seed uint64 `mapstructure:"seed"`
	// Difficulty is the default difficulty for new games.
	Difficulty string `mapstructure:"difficulty"`
	// TickInterval is the wall time of one countdown second.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// HidingTick is the wall time of one hiding tick.
	HidingTick time.Duration `mapstructure:"hiding_tick"`
	// DialogueMaxLength caps the lines in one dialogue session.
	DialogueMaxLength int `mapstructure:"dialogue_max_length"`
}

// ReasoningConfig configures the external language model.
type ReasoningConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int64         `mapstructure:"max_tokens"`
}

// ScriptingConfig configures the Lua event hooks.
type ScriptingConfig struct {
	// ScriptDir holds *.lua hook files. Empty disables scripting.
	ScriptDir string `mapstructure:"script_dir"`
	// InstructionLimit caps the VM instructions of one hook call. Zero means unlimited.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Game      GameConfig      `mapstructure:"game"`
	Reasoning ReasoningConfig `mapstructure:"reasoning"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateServer(c.Server),
		validateGateway(c.Gateway),
		validateStorage(c.Storage),
		validateLogging(c.Logging),
		validateGame(c.Game),
		validateReasoning(c.Reasoning),
		validateScripting(c.Scripting),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	// The database section only matters for the postgres backend.
	if c.Storage.Backend == BackendPostgres {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joined(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

func validateServer(s ServerConfig) error {
	var errs []string
	if s.GRPCHost == "" {
		errs = append(errs, "server.grpc_host must not be empty")
	}
	if !validPort(s.GRPCPort) {
		errs = append(errs, fmt.Sprintf("server.grpc_port must be 1-65535, got %d", s.GRPCPort))
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	return joined(errs)
}

func validateGateway(g GatewayConfig) error {
	if !g.Enabled {
		return nil
	}
	var errs []string
	if !validPort(g.Port) {
		errs = append(errs, fmt.Sprintf("gateway.port must be 1-65535, got %d", g.Port))
	}
	if g.EventBuffer < 1 {
		errs = append(errs, fmt.Sprintf("gateway.event_buffer must be >= 1, got %d", g.EventBuffer))
	}
	if g.WriteTimeout <= 0 {
		errs = append(errs, "gateway.write_timeout must be positive")
	}
	return joined(errs)
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if !validPort(d.Port) {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return joined(errs)
}

func validateStorage(s StorageConfig) error {
	switch s.Backend {
	case BackendMemory, BackendPostgres:
		return nil
	case BackendSQLite:
		if s.SQLitePath == "" {
			return errors.New("storage.sqlite_path must not be empty for the sqlite backend")
		}
		return nil
	}
	return fmt.Errorf("storage.backend must be one of [memory, sqlite, postgres], got %q", s.Backend)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	validDifficulties := map[string]bool{"EASY": true, "NORMAL": true, "HARD": true, "NIGHTMARE": true}
	if !validDifficulties[g.Difficulty] {
		errs = append(errs, fmt.Sprintf("game.difficulty must be one of [EASY, NORMAL, HARD, NIGHTMARE], got %q", g.Difficulty))
	}
	if g.TickInterval <= 0 {
		errs = append(errs, "game.tick_interval must be positive")
	}
	if g.HidingTick <= 0 {
		errs = append(errs, "game.hiding_tick must be positive")
	}
	if g.DialogueMaxLength < 1 {
		errs = append(errs, fmt.Sprintf("game.dialogue_max_length must be >= 1, got %d", g.DialogueMaxLength))
	}
	return joined(errs)
}

func validateReasoning(r ReasoningConfig) error {
	if !r.Enabled {
		return nil
	}
	var errs []string
	if r.APIKey == "" {
		errs = append(errs, "reasoning.api_key must not be empty when reasoning is enabled")
	}
	if r.Model == "" {
		errs = append(errs, "reasoning.model must not be empty when reasoning is enabled")
	}
	if r.Timeout <= 0 {
		errs = append(errs, "reasoning.timeout must be positive")
	}
	if r.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("reasoning.max_tokens must be >= 1, got %d", r.MaxTokens))
	}
	return joined(errs)
}

func validateScripting(s ScriptingConfig) error {
	if s.InstructionLimit < 0 {
		return fmt.Errorf("scripting.instruction_limit must be >= 0, got %d", s.InstructionLimit)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with DESTINY_ prefix
	v.SetEnvPrefix("DESTINY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_host", "127.0.0.1")
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("gateway.enabled", true)
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.event_buffer", 64)
	v.SetDefault("gateway.write_timeout", "5s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "destiny")
	v.SetDefault("database.password", "destiny")
	v.SetDefault("database.name", "destiny")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.sqlite_path", "data/destiny.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("game.seed", 0)
	v.SetDefault("game.difficulty", "NORMAL")
	v.SetDefault("game.tick_interval", "1s")
	v.SetDefault("game.hiding_tick", "1s")
	v.SetDefault("game.dialogue_max_length", 10)

	v.SetDefault("reasoning.enabled", false)
	v.SetDefault("reasoning.api_key", "")
	v.SetDefault("reasoning.model", "claude-sonnet-4-5")
	v.SetDefault("reasoning.timeout", "5s")
	v.SetDefault("reasoning.max_tokens", 256)

	v.SetDefault("scripting.script_dir", "")
	v.SetDefault("scripting.instruction_limit", 100000)
}
