// Package config loads bucketfs settings.
//
// Values are layered, later layers winning:
//
//	defaults -> YAML file -> BUCKETFS_* environment -> command-line flags
//
// The file and the environment are partial: only the fields they set are
// applied, which is what Override's pointer fields record.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/logger"
	"go.yaml.in/yaml/v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "BUCKETFS_"

// Default configuration constants. See Config for field descriptions.
const (
	DefaultEndpoint        = "localhost:9000"
	DefaultConnectTimeout  = 10 * time.Second
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxBodyBytes    = 64 << 20
	DefaultConcurrency     = 8
)

// Config is the complete runtime configuration.
type Config struct {
	Store  filestore.Config `yaml:"store"`
	Log    LogConfig        `yaml:"log"`
	Server ServerConfig     `yaml:"server"`
	FS     FSConfig         `yaml:"fs"`
}

type LogConfig struct {
	Level      string `yaml:"level"`       // trace, debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	TimeFormat string `yaml:"time_format"` // rfc3339, unix, unixms, unixmicro
}

// ServerConfig configures the HTTP facade started by "bucketfs serve".
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps the request body of an upload.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// FSConfig tunes the tree operations engine.
type FSConfig struct {
	// Concurrency bounds parallel object copies during a recursive copy.
	Concurrency int `yaml:"concurrency"`
}

// Default returns a configuration for a local MinIO with its stock
// credentials.
func Default() *Config {
	return &Config{
		Store: *filestore.DefaultConfig(DefaultEndpoint, "minioadmin", "minioadmin"),
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			TimeFormat: "rfc3339",
		},
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxBodyBytes:    DefaultMaxBodyBytes,
		},
		FS: FSConfig{Concurrency: DefaultConcurrency},
	}
}

// Override uses pointer fields to distinguish between unset and zero values
// when loading partial configuration.
type Override struct {
	Store  StoreOverride  `yaml:"store"`
	Log    LogOverride    `yaml:"log"`
	Server ServerOverride `yaml:"server"`
	FS     FSOverride     `yaml:"fs"`
}

type StoreOverride struct {
	Provider       *filestore.Provider `yaml:"provider,omitempty"`
	Endpoint       *string             `yaml:"endpoint,omitempty"`
	AccessKey      *string             `yaml:"access_key,omitempty"`
	SecretKey      *string             `yaml:"secret_key,omitempty"`
	SessionToken   *string             `yaml:"session_token,omitempty"`
	UseSSL         *bool               `yaml:"use_ssl,omitempty"`
	Region         *string             `yaml:"region,omitempty"`
	ConnectTimeout *time.Duration      `yaml:"connect_timeout,omitempty"`
}

type LogOverride struct {
	Level      *string `yaml:"level,omitempty"`
	Format     *string `yaml:"format,omitempty"`
	TimeFormat *string `yaml:"time_format,omitempty"`
}

type ServerOverride struct {
	Addr            *string        `yaml:"addr,omitempty"`
	ReadTimeout     *time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout    *time.Duration `yaml:"write_timeout,omitempty"`
	ShutdownTimeout *time.Duration `yaml:"shutdown_timeout,omitempty"`
	MaxBodyBytes    *int64         `yaml:"max_body_bytes,omitempty"`
}

type FSOverride struct {
	Concurrency *int `yaml:"concurrency,omitempty"`
}

// Merge applies non-nil values from o onto c.
func (c *Config) Merge(o *Override) {
	if o == nil {
		return
	}

	s := &o.Store
	setIf(&c.Store.Provider, s.Provider)
	setIf(&c.Store.Endpoint, s.Endpoint)
	setIf(&c.Store.AccessKey, s.AccessKey)
	setIf(&c.Store.SecretKey, s.SecretKey)
	setIf(&c.Store.SessionToken, s.SessionToken)
	setIf(&c.Store.UseSSL, s.UseSSL)
	setIf(&c.Store.Region, s.Region)
	setIf(&c.Store.ConnectTimeout, s.ConnectTimeout)

	setIf(&c.Log.Level, o.Log.Level)
	setIf(&c.Log.Format, o.Log.Format)
	setIf(&c.Log.TimeFormat, o.Log.TimeFormat)

	setIf(&c.Server.Addr, o.Server.Addr)
	setIf(&c.Server.ReadTimeout, o.Server.ReadTimeout)
	setIf(&c.Server.WriteTimeout, o.Server.WriteTimeout)
	setIf(&c.Server.ShutdownTimeout, o.Server.ShutdownTimeout)
	setIf(&c.Server.MaxBodyBytes, o.Server.MaxBodyBytes)

	setIf(&c.FS.Concurrency, o.FS.Concurrency)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// LoadOverrideFile reads a YAML configuration file without merging it.
func LoadOverrideFile(path string) (*Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindNotFound, "failed to read config file "+path, err)
	}

	var o Override
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidOperand, "failed to parse config file "+path, err)
	}
	return &o, nil
}

// LoadFromEnv reads BUCKETFS_* variables through lookup, usually
// os.LookupEnv. Malformed numbers, booleans and durations are errors.
func LoadFromEnv(lookup func(string) (string, bool)) (*Override, error) {
	e := envReader{lookup: lookup}
	o := &Override{}

	o.Store.Provider = (*filestore.Provider)(e.str("STORE_PROVIDER"))
	o.Store.Endpoint = e.str("STORE_ENDPOINT")
	o.Store.AccessKey = e.str("STORE_ACCESS_KEY")
	o.Store.SecretKey = e.str("STORE_SECRET_KEY")
	o.Store.SessionToken = e.str("STORE_SESSION_TOKEN")
	o.Store.UseSSL = e.bool("STORE_USE_SSL")
	o.Store.Region = e.str("STORE_REGION")
	o.Store.ConnectTimeout = e.duration("STORE_CONNECT_TIMEOUT")

	o.Log.Level = e.str("LOG_LEVEL")
	o.Log.Format = e.str("LOG_FORMAT")
	o.Log.TimeFormat = e.str("LOG_TIME_FORMAT")

	o.Server.Addr = e.str("SERVER_ADDR")
	o.Server.ReadTimeout = e.duration("SERVER_READ_TIMEOUT")
	o.Server.WriteTimeout = e.duration("SERVER_WRITE_TIMEOUT")
	o.Server.ShutdownTimeout = e.duration("SERVER_SHUTDOWN_TIMEOUT")
	o.Server.MaxBodyBytes = e.int64("SERVER_MAX_BODY_BYTES")

	o.FS.Concurrency = e.int("FS_CONCURRENCY")

	if e.err != nil {
		return nil, e.err
	}
	return o, nil
}

// envReader remembers the first malformed variable.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) str(name string) *string {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func (e *envReader) parse(name string, fn func(string) error) {
	v := e.str(name)
	if v == nil || e.err != nil {
		return
	}
	if err := fn(*v); err != nil {
		e.err = errs.Wrap(errs.ErrKindInvalidOperand, fmt.Sprintf("invalid %s%s=%q", EnvPrefix, name, *v), err)
	}
}

func (e *envReader) bool(name string) *bool {
	var out *bool
	e.parse(name, func(s string) error {
		b, err := strconv.ParseBool(s)
		out = &b
		return err
	})
	return out
}

func (e *envReader) int(name string) *int {
	var out *int
	e.parse(name, func(s string) error {
		n, err := strconv.Atoi(s)
		out = &n
		return err
	})
	return out
}

func (e *envReader) int64(name string) *int64 {
	var out *int64
	e.parse(name, func(s string) error {
		n, err := strconv.ParseInt(s, 10, 64)
		out = &n
		return err
	})
	return out
}

func (e *envReader) duration(name string) *time.Duration {
	var out *time.Duration
	e.parse(name, func(s string) error {
		d, err := time.ParseDuration(s)
		out = &d
		return err
	})
	return out
}

// Load builds the configuration from defaults, the optional file at path
// and the process environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		o, err := LoadOverrideFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Merge(o)
	}

	o, err := LoadFromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	cfg.Merge(o)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validLogLevels = []string{"trace", "debug", "info", "warn", "error"}

// Validate reports the first setting bucketfs cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Provider {
	case filestore.ProviderMinIO:
		if c.Store.Endpoint == "" {
			return errs.New(errs.ErrKindInvalidOperand, "store.endpoint is required for the minio provider")
		}
	case filestore.ProviderMemory:
	default:
		return errs.Newf(errs.ErrKindInvalidOperand, "invalid store.provider %q (must be one of: %s, %s)",
			c.Store.Provider, filestore.ProviderMinIO, filestore.ProviderMemory)
	}

	if c.FS.Concurrency <= 0 {
		return errs.New(errs.ErrKindInvalidOperand, "fs.concurrency must be greater than 0")
	}
	if c.Server.Addr == "" {
		return errs.New(errs.ErrKindInvalidOperand, "server.addr must not be empty")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errs.New(errs.ErrKindInvalidOperand, "server.max_body_bytes must be greater than 0")
	}

	level := strings.ToLower(c.Log.Level)
	for _, l := range validLogLevels {
		if level == l {
			return nil
		}
	}
	return errs.Newf(errs.ErrKindInvalidOperand, "invalid log.level %q (must be one of: %s)",
		c.Log.Level, strings.Join(validLogLevels, ", "))
}

// Logger returns the logger settings for logger.New. Output is left to the
// logger's default.
func (c *Config) Logger() *logger.Config {
	return &logger.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: c.Log.TimeFormat,
	}
}
