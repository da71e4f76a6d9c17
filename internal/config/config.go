// Package config loads stepgraph settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/stepgraph/internal/validator"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreLoam   = "loam"
	StoreRedis  = "redis"
)

// EnvPrefix prefixes environment overrides, e.g. STEPGRAPH_STORE_KIND.
const EnvPrefix = "STEPGRAPH_"

// Config is the complete application configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Session SessionConfig `mapstructure:"session"`
	Layout  LayoutConfig  `mapstructure:"layout"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Kind    string        `mapstructure:"kind" validate:"oneof=memory file loam redis"`
	Path    string        `mapstructure:"path" validate:"required_if=Kind file,required_if=Kind loam"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// RedisConfig configures the Redis store and locker.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

// BreakerConfig wraps the store in a circuit breaker when enabled.
type BreakerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// SessionConfig configures hosted editing sessions.
type SessionConfig struct {
	// DistributedLock holds a Redis lock around saves. Requires the redis store.
	DistributedLock bool          `mapstructure:"distributed_lock"`
	LockTTL         time.Duration `mapstructure:"lock_ttl" validate:"gte=0"`
}

// LayoutConfig places loaded steps on the canvas.
type LayoutConfig struct {
	OriginX float64 `mapstructure:"origin_x"`
	OriginY float64 `mapstructure:"origin_y"`
	Spacing float64 `mapstructure:"spacing" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Kind: StoreFile,
			Path: ".stepgraph/flows",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "stepgraph:flow:",
			},
			Breaker: BreakerConfig{
				Timeout:             5 * time.Second,
				ConsecutiveFailures: 3,
			},
		},
		Log:     LogConfig{Level: "info"},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Session: SessionConfig{LockTTL: 30 * time.Second},
		Layout:  LayoutConfig{OriginX: 100, OriginY: 100, Spacing: 250},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file. A missing file is an error.
func Load(path string) (Config, error) {
	return LoadWithEnvFile(path, "")
}

// LoadWithEnvFile is Load with STEPGRAPH_ overrides also read from a dotenv file.
// Variables set in the process environment win over the file.
func LoadWithEnvFile(path, envFile string) (Config, error) {
	lookup := os.LookupEnv
	if envFile != "" {
		var err error
		if lookup, err = EnvFileLookup(envFile); err != nil {
			return Config{}, err
		}
	}

	raw := make(map[string]any)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	return FromMap(raw, lookup)
}

// EnvFileLookup parses a dotenv file without touching the process environment.
// The returned lookup prefers non-blank process variables.
func EnvFileLookup(envFile string) (func(string) (string, bool), error) {
	values, err := godotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}, nil
}

// FromMap decodes raw over the defaults and applies overrides found by lookup.
func FromMap(raw map[string]any, lookup func(string) (string, bool)) (Config, error) {
	if raw == nil {
		raw = make(map[string]any)
	}
	applyEnv(raw, lookup)

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values and cross-field rules.
func (c Config) Validate() error {
	if err := validator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Session.DistributedLock && c.Store.Kind != StoreRedis {
		return errors.New("invalid config: session.distributed_lock requires store.kind redis")
	}
	return nil
}

// envKeys maps environment suffixes to config paths.
var envKeys = map[string][]string{
	"STORE_KIND":     {"store", "kind"},
	"STORE_PATH":     {"store", "path"},
	"REDIS_ADDR":     {"store", "redis", "addr"},
	"REDIS_PASSWORD": {"store", "redis", "password"},
	"LOG_LEVEL":      {"log", "level"},
	"HTTP_ADDR":      {"http", "addr"},
}

func applyEnv(raw map[string]any, lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	for suffix, path := range envKeys {
		v, ok := lookup(EnvPrefix + suffix)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		set(raw, path, v)
	}
}

func set(m map[string]any, path []string, v any) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}
