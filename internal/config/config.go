// Package config loads runtime settings.
//
// Sources, later ones winning: built-in defaults, a .env file, a toastit.*
// config file, TOASTIT_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/timex"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendDisk = "disk"
	BackendS3   = "s3"
)

// Config holds runtime settings. It is built once by Load and treated as
// read-only afterwards.
type Config struct {
	RootPath string

	DatabaseDriver string
	DatabaseDSN    string

	ContentBackend    string
	ContentCacheBytes uint64

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string

	ExecThreads          int
	TaskRefreshInterval  time.Duration
	EventRefreshInterval time.Duration
	EventLookForward     time.Duration
	EventRetention       time.Duration

	Editor           string
	OpenWith         string
	MaxPreviewLength int

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.RootPath = "~/.toastit"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = ""
	c.ContentBackend = BackendDisk
	c.ContentCacheBytes = 1 << 20
	c.S3Region = "us-east-1"
	c.ExecThreads = 2
	c.TaskRefreshInterval = 5 * time.Minute
	c.EventRefreshInterval = 5 * time.Minute
	c.EventLookForward = 24 * time.Hour
	c.EventRetention = 30 * 24 * time.Hour
	c.Editor = "vi"
	c.OpenWith = "xdg-open"
	c.MaxPreviewLength = 60
	c.LogLevel = "info"
	c.LogFormat = "console"
}

// ContentPath is where the disk content store keeps its files.
func (c *Config) ContentPath() string { return filepath.Join(c.RootPath, "content") }

// ProjectsPath is the default parent of project directories.
func (c *Config) ProjectsPath() string { return c.RootPath }

func setDefaults(v *viper.Viper) {
	var d Config
	d.LoadDefaults()

	v.SetDefault("root_path", d.RootPath)
	v.SetDefault("db_driver", d.DatabaseDriver)
	v.SetDefault("db_dsn", d.DatabaseDSN)
	v.SetDefault("content_backend", d.ContentBackend)
	v.SetDefault("content_cache_bytes", fmt.Sprint(d.ContentCacheBytes))
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_region", d.S3Region)
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_prefix", "")
	v.SetDefault("exec_threads", d.ExecThreads)
	v.SetDefault("task_refresh_interval", d.TaskRefreshInterval.String())
	v.SetDefault("event_refresh_interval", d.EventRefreshInterval.String())
	v.SetDefault("event_look_forward", d.EventLookForward.String())
	v.SetDefault("event_retention", timex.FormatWindow(d.EventRetention))
	v.SetDefault("editor", d.Editor)
	v.SetDefault("open_with", d.OpenWith)
	v.SetDefault("max_preview_length", d.MaxPreviewLength)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// flagKeys maps flag names registered by AddFlags to config keys.
var flagKeys = map[string]string{
	"root":            "root_path",
	"db-driver":       "db_driver",
	"db-dsn":          "db_dsn",
	"content-backend": "content_backend",
	"threads":         "exec_threads",
	"editor":          "editor",
	"log-level":       "log_level",
	"log-format":      "log_format",
}

// AddFlags registers the global flags. Values left unset on the command
// line do not override other sources.
func AddFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to a config file")
	flags.String("root", "", "data directory (default ~/.toastit)")
	flags.String("db-driver", "", "index database driver: sqlite or pgx")
	flags.String("db-dsn", "", "index database DSN")
	flags.String("content-backend", "", "content store backend: disk or s3")
	flags.Int("threads", 0, "scheduler worker count")
	flags.String("editor", "", "editor used for notes and descriptions")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text, json or console")
}

// Load builds a Config. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("toastit")
	v.SetEnvPrefix("TOASTIT")
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if file := configFileFlag(flags); file != "" {
		v.SetConfigFile(file)
	} else {
		if override := os.Getenv("TOASTIT_CONFIG_PATH"); override != "" {
			v.AddConfigPath(override)
		}
		if root, err := homedir.Expand(v.GetString("root_path")); err == nil {
			v.AddConfigPath(root)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func configFileFlag(flags *pflag.FlagSet) string {
	if flags == nil {
		return ""
	}
	f := flags.Lookup("config")
	if f == nil {
		return ""
	}
	return f.Value.String()
}

func fromViper(v *viper.Viper) (*Config, error) {
	root, err := homedir.Expand(v.GetString("root_path"))
	if err != nil {
		return nil, fmt.Errorf("%w: root_path: %w", common.ErrInvalidInput, err)
	}

	c := &Config{
		RootPath:          root,
		DatabaseDriver:    strings.ToLower(v.GetString("db_driver")),
		DatabaseDSN:       v.GetString("db_dsn"),
		ContentBackend:    strings.ToLower(v.GetString("content_backend")),
		ContentCacheBytes: uint64(v.GetSizeInBytes("content_cache_bytes")),
		S3Bucket:          v.GetString("s3_bucket"),
		S3Region:          v.GetString("s3_region"),
		S3Endpoint:        v.GetString("s3_endpoint"),
		S3AccessKey:       v.GetString("s3_access_key"),
		S3SecretKey:       v.GetString("s3_secret_key"),
		S3Prefix:          v.GetString("s3_prefix"),
		ExecThreads:       v.GetInt("exec_threads"),
		Editor:            v.GetString("editor"),
		OpenWith:          v.GetString("open_with"),
		MaxPreviewLength:  v.GetInt("max_preview_length"),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
	}

	for key, dst := range map[string]*time.Duration{
		"task_refresh_interval":  &c.TaskRefreshInterval,
		"event_refresh_interval": &c.EventRefreshInterval,
		"event_look_forward":     &c.EventLookForward,
		"event_retention":        &c.EventRetention,
	} {
		d, err := timex.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", common.ErrInvalidInput, key, err)
		}
		*dst = d
	}

	if c.DatabaseDSN == "" && c.DatabaseDriver == "sqlite" {
		c.DatabaseDSN = filepath.Join(c.RootPath, "toastit.db")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "pgx":
		return fmt.Errorf("%w: db_driver %q", common.ErrInvalidInput, c.DatabaseDriver)
	case c.DatabaseDSN == "":
		return fmt.Errorf("%w: db_dsn is required for %s", common.ErrInvalidInput, c.DatabaseDriver)
	case c.ContentBackend != BackendDisk && c.ContentBackend != BackendS3:
		return fmt.Errorf("%w: content_backend %q", common.ErrInvalidInput, c.ContentBackend)
	case c.ContentBackend == BackendS3 && c.S3Bucket == "":
		return fmt.Errorf("%w: s3_bucket is required for the s3 backend", common.ErrInvalidInput)
	case c.ExecThreads < 1:
		return fmt.Errorf("%w: exec_threads must be at least 1", common.ErrInvalidInput)
	case c.TaskRefreshInterval <= 0 || c.EventRefreshInterval <= 0:
		return fmt.Errorf("%w: refresh intervals must be positive", common.ErrInvalidInput)
	}
	return nil
}
