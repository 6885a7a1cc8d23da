package formula

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the file form of the engine options.
type Config struct {
	CacheCapacity int               `yaml:"cache_capacity"`
	Locale        string            `yaml:"locale"`
	LocaleMap     map[string]string `yaml:"locale_map"`
	LogLevel      string            `yaml:"log_level"`
	Parallelism   int               `yaml:"parallelism"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config. unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.LogLevel != "" {
		if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
			return Config{}, fmt.Errorf("parse config: log_level: %w", err)
		}
	}
	if cfg.CacheCapacity < 0 {
		return Config{}, fmt.Errorf("parse config: cache_capacity must not be negative")
	}
	return cfg, nil
}

// Level returns the configured log level, info when unset.
func (c Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zapcore.InfoLevel
	}
	return level
}

// Options converts the config into engine options. log is used when not
// nil; building it at Level is up to the caller.
func (c Config) Options(log *zap.SugaredLogger) []Option {
	var opts []Option
	if c.CacheCapacity > 0 {
		opts = append(opts, WithCacheCapacity(c.CacheCapacity))
	}
	if c.Locale != "" {
		opts = append(opts, WithLocale(c.Locale))
	}
	if len(c.LocaleMap) > 0 {
		opts = append(opts, WithLocaleMap(c.LocaleMap))
	}
	if c.Parallelism > 0 {
		opts = append(opts, WithParallelism(c.Parallelism))
	}
	if log != nil {
		opts = append(opts, WithLogger(log))
	}
	return opts
}
