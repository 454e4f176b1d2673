// Package config loads parley.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. It may be missing.
const DefaultPath = "parley.yaml"

// EnvPrefix prefixes the environment overrides, e.g. PARLEY_REDIS_ADDR.
const EnvPrefix = "PARLEY_"

// Config is the runtime configuration of the parley binaries.
type Config struct {
	ConversationID string `mapstructure:"conversation_id"`
	Catalog        string `mapstructure:"catalog"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`

	Store  StoreConfig  `mapstructure:"store"`
	HTTP   HTTPConfig   `mapstructure:"http"`
	Notify NotifyConfig `mapstructure:"notify"`
}

// StoreConfig selects where snapshots are written.
type StoreConfig struct {
	Backend string      `mapstructure:"backend"` // "memory", "file" or "redis"
	Redis   RedisConfig `mapstructure:"redis"`
	File    FileConfig  `mapstructure:"file"`

	// Keys are base64 AES-256 keys. When set, snapshots are encrypted with
	// the first one; the others only decrypt, for rotation.
	Keys []string `mapstructure:"keys"`

	// Redact lists patterns of result field names masked before saving.
	Redact []string `mapstructure:"redact"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type FileConfig struct {
	Dir string `mapstructure:"dir"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// NotifyConfig drives the demo notification ticker. A zero interval disables it.
type NotifyConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Skill    string        `mapstructure:"skill"`
}

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Catalog:   "skills.yaml",
		LogLevel:  "info",
		LogFormat: "text",
		Store: StoreConfig{
			Backend: BackendMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "parley:conversation:",
			},
			File: FileConfig{Dir: ".parley/conversations"},
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load reads the file at path over the defaults, then applies environment
// overrides. A missing file is only an error when path is not DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if raw == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// applyEnv overrides fields from PARLEY_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"CONVERSATION_ID": &cfg.ConversationID,
		"CATALOG":         &cfg.Catalog,
		"LOG_LEVEL":       &cfg.LogLevel,
		"LOG_FORMAT":      &cfg.LogFormat,
		"STORE":           &cfg.Store.Backend,
		"REDIS_ADDR":      &cfg.Store.Redis.Addr,
		"REDIS_PASSWORD":  &cfg.Store.Redis.Password,
		"REDIS_PREFIX":    &cfg.Store.Redis.Prefix,
		"FILE_DIR":        &cfg.Store.File.Dir,
		"HTTP_ADDR":       &cfg.HTTP.Addr,
		"NOTIFY_SKILL":    &cfg.Notify.Skill,
	}
	for name, field := range str {
		if v, ok := lookup(EnvPrefix + name); ok {
			*field = v
		}
	}

	durations := map[string]*time.Duration{
		"REDIS_TTL":       &cfg.Store.Redis.TTL,
		"NOTIFY_INTERVAL": &cfg.Notify.Interval,
	}
	for name, field := range durations {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*field = d
		}
	}

	if v, ok := lookup(EnvPrefix + "STORE_KEY"); ok && v != "" {
		cfg.Store.Keys = append([]string{v}, cfg.Store.Keys...)
	}

	if v, ok := lookup(EnvPrefix + "REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_DB: %w", EnvPrefix, err)
		}
		cfg.Store.Redis.DB = db
	}
	return nil
}

// Validate checks the values that have a closed set of options.
func (c Config) Validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.Notify.Interval < 0 {
		return errors.New("notify interval must not be negative")
	}
	return nil
}
