// Package config loads engine configuration from defaults, an optional YAML
// file, MEADOWLARK_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
)

// EnvPrefix prefixes every environment variable, e.g. MEADOWLARK_CONNECTION.
const EnvPrefix = "MEADOWLARK"

// MemoryConnection selects an in-memory database.
const MemoryConnection = ":memory:"

// Configuration keys.
const (
	KeyConnection         = "connection"
	KeyDatabaseName       = "database_name"
	KeyWriteConsistency   = "write_consistency"
	KeyReadConsistency    = "read_consistency"
	KeyMaxNumberOfRetries = "max_number_of_retries"
	KeyMaxConnections     = "max_connections"
	KeyBusyTimeout        = "busy_timeout"
)

// Keys lists every configuration key.
var Keys = []string{
	KeyConnection,
	KeyDatabaseName,
	KeyWriteConsistency,
	KeyReadConsistency,
	KeyMaxNumberOfRetries,
	KeyMaxConnections,
	KeyBusyTimeout,
}

var (
	writeConsistencies = []string{"off", "normal", "full", "extra"}
	readConsistencies  = []string{"deferred", "immediate", "exclusive"}
)

// Config is the validated engine configuration.
type Config struct {
	// Connection is the directory holding the database file, or ":memory:".
	Connection   string
	DatabaseName string

	// WriteConsistency maps to SQLite synchronous.
	WriteConsistency string

	// ReadConsistency maps to the transaction locking mode.
	ReadConsistency string

	MaxNumberOfRetries int
	MaxConnections     int
	BusyTimeout        time.Duration
}

// Validation error codes.
const (
	ErrCodeInvalidValue = "K001"
	ErrCodeUnknownKey   = "K002"
	ErrCodeReadFile     = "K003"
)

// Problem is one invalid configuration value.
type Problem struct {
	Code    string
	Key     string
	Message string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s: %s", p.Code, p.Key, p.Message)
}

// ValidationError lists every problem found while loading.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	lines := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		lines[i] = p.String()
	}
	return "invalid configuration: " + strings.Join(lines, "; ")
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// New returns a viper instance with defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyConnection, ".")
	v.SetDefault(KeyDatabaseName, "meadowlark")
	v.SetDefault(KeyWriteConsistency, "normal")
	v.SetDefault(KeyReadConsistency, "immediate")
	v.SetDefault(KeyMaxNumberOfRetries, 1)
	v.SetDefault(KeyMaxConnections, 4)
	v.SetDefault(KeyBusyTimeout, 5*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// FlagName is the command-line flag for a configuration key.
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// BindFlags binds every flag in flags named after a configuration key.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range Keys {
		f := flags.Lookup(FlagName(key))
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", f.Name, err)
		}
	}
	return nil
}

// ReadFile merges a YAML configuration file into v. Keys not in Keys are
// rejected.
func ReadFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return &ValidationError{Problems: []Problem{{
			Code:    ErrCodeReadFile,
			Key:     path,
			Message: err.Error(),
		}}}
	}

	var problems []Problem
	for _, key := range v.AllKeys() {
		if !isKey(key) {
			problems = append(problems, Problem{Code: ErrCodeUnknownKey, Key: key, Message: "unknown option in configuration file"})
		}
	}
	if len(problems) > 0 {
		sort.Slice(problems, func(i, j int) bool { return problems[i].Key < problems[j].Key })
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Connection:       strings.TrimSpace(v.GetString(KeyConnection)),
		DatabaseName:     strings.TrimSpace(v.GetString(KeyDatabaseName)),
		WriteConsistency: strings.ToLower(strings.TrimSpace(v.GetString(KeyWriteConsistency))),
		ReadConsistency:  strings.ToLower(strings.TrimSpace(v.GetString(KeyReadConsistency))),
	}

	var problems []Problem
	invalid := func(key, format string, args ...any) {
		problems = append(problems, Problem{Code: ErrCodeInvalidValue, Key: key, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Connection == "" {
		invalid(KeyConnection, "must not be empty")
	}
	if cfg.DatabaseName == "" && cfg.Connection != MemoryConnection {
		invalid(KeyDatabaseName, "must not be empty")
	}
	if !oneOf(cfg.WriteConsistency, writeConsistencies) {
		invalid(KeyWriteConsistency, "%q must be one of %v", cfg.WriteConsistency, writeConsistencies)
	}
	if !oneOf(cfg.ReadConsistency, readConsistencies) {
		invalid(KeyReadConsistency, "%q must be one of %v", cfg.ReadConsistency, readConsistencies)
	}

	var err error
	if cfg.MaxNumberOfRetries, err = intValue(v, KeyMaxNumberOfRetries); err != nil {
		invalid(KeyMaxNumberOfRetries, "%v", err)
	} else if cfg.MaxNumberOfRetries < 0 {
		invalid(KeyMaxNumberOfRetries, "must be >= 0, got %d", cfg.MaxNumberOfRetries)
	}
	if cfg.MaxConnections, err = intValue(v, KeyMaxConnections); err != nil {
		invalid(KeyMaxConnections, "%v", err)
	} else if cfg.MaxConnections < 1 {
		invalid(KeyMaxConnections, "must be >= 1, got %d", cfg.MaxConnections)
	}
	if cfg.BusyTimeout, err = durationValue(v, KeyBusyTimeout); err != nil {
		invalid(KeyBusyTimeout, "%v", err)
	} else if cfg.BusyTimeout < 0 {
		invalid(KeyBusyTimeout, "must not be negative, got %s", cfg.BusyTimeout)
	}

	if len(problems) > 0 {
		return Config{}, &ValidationError{Problems: problems}
	}
	return cfg, nil
}

// DatabasePath is the SQLite file the configuration selects.
func (c Config) DatabasePath() string {
	if c.Connection == MemoryConnection {
		return MemoryConnection
	}
	return filepath.Join(c.Connection, c.DatabaseName+".db")
}

// StoreConfig converts the configuration to store settings.
func (c Config) StoreConfig() store.Config {
	return store.Config{
		Path:           c.DatabasePath(),
		Synchronous:    strings.ToUpper(c.WriteConsistency),
		TxLock:         c.ReadConsistency,
		MaxConnections: c.MaxConnections,
		BusyTimeout:    c.BusyTimeout,
	}
}

// intValue rejects values viper would silently read as zero.
func intValue(v *viper.Viper, key string) (int, error) {
	raw := v.Get(key)
	switch n := raw.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	}
	s := strings.TrimSpace(fmt.Sprint(raw))
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || fmt.Sprint(n) != s {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return n, nil
}

func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	switch d := v.Get(key).(type) {
	case time.Duration:
		return d, nil
	case int, int64, float64:
		return v.GetDuration(key), nil
	}
	s := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a duration", s)
	}
	return d, nil
}

func isKey(key string) bool {
	return oneOf(key, Keys)
}

func oneOf(s string, options []string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
