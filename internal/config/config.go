// Package config loads runtime settings from defaults, an optional YAML
// file, .env files and PATTERNWEAVE_* environment variables, in that order,
// and validates the result against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PATTERNWEAVE_"

// Config holds every runtime setting.
type Config struct {
	Workspace      string        `yaml:"workspace" json:"workspace"`
	PatternsDir    string        `yaml:"patterns_dir" json:"patterns_dir"`
	Listen         string        `yaml:"listen" json:"listen"`
	CacheSize      int           `yaml:"cache_size" json:"cache_size"`
	LogLevel       string        `yaml:"log_level" json:"log_level"`
	HistoryDB      string        `yaml:"history_db" json:"history_db"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	S3             S3Config      `yaml:"s3" json:"s3"`
}

// S3Config configures archive publishing. Disabled by default.
type S3Config struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Region    string `yaml:"region" json:"region"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
	Prefix    string `yaml:"prefix" json:"prefix"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Workspace:      "generated",
		PatternsDir:    "node_Structure",
		Listen:         ":8080",
		CacheSize:      128,
		LogLevel:       "info",
		RequestTimeout: 30 * time.Second,
		S3: S3Config{
			Region: "us-east-1",
			Bucket: "patternweave-archives",
			UseSSL: true,
		},
	}
}

// Load builds the configuration. path names an optional YAML file ("" to
// skip). envFiles are loaded with godotenv before the environment is read;
// with none given, ./.env is tried. Variables already set in the
// environment win over .env values.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := loadDotenv(envFiles); err != nil {
		return nil, err
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func loadDotenv(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// applyEnv overlays PATTERNWEAVE_* variables. PORT is honoured when no
// listen address is given explicitly.
func applyEnv(cfg *Config, getenv func(string) string) error {
	env := func(key string) string {
		return strings.TrimSpace(getenv(EnvPrefix + key))
	}

	setString(&cfg.Workspace, env("WORKSPACE"))
	setString(&cfg.PatternsDir, env("PATTERNS_DIR"))
	setString(&cfg.LogLevel, strings.ToLower(env("LOG_LEVEL")))
	setString(&cfg.HistoryDB, env("HISTORY_DB"))

	listen := firstNonEmpty(env("LISTEN"), strings.TrimSpace(getenv("PORT")))
	if listen != "" {
		if !strings.Contains(listen, ":") {
			listen = ":" + listen
		}
		cfg.Listen = listen
	}

	if v := env("CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCACHE_SIZE: %w", EnvPrefix, err)
		}
		cfg.CacheSize = n
	}
	if v := env("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREQUEST_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.RequestTimeout = d
	}

	setString(&cfg.S3.Endpoint, env("S3_ENDPOINT"))
	setString(&cfg.S3.Region, env("S3_REGION"))
	setString(&cfg.S3.AccessKey, env("S3_ACCESS_KEY"))
	setString(&cfg.S3.SecretKey, env("S3_SECRET_KEY"))
	setString(&cfg.S3.Bucket, env("S3_BUCKET"))
	setString(&cfg.S3.Prefix, env("S3_PREFIX"))
	for key, dst := range map[string]*bool{"S3_ENABLED": &cfg.S3.Enabled, "S3_USE_SSL": &cfg.S3.UseSSL} {
		if v := env(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate checks c against the embedded CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
