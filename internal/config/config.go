// Package config holds the settings unmarshalled from viper. Values come from
// defaults, an optional YAML file, CRISPRCORE_* environment variables and
// command line flags, in increasing precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"crisprcore/internal/blob"
	"crisprcore/internal/core"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CRISPRCORE"

// Keys bound to command line flags.
const (
	KeyStorageDriver   = "storage.driver"
	KeySQLitePath      = "storage.sqlite_path"
	KeyPostgresDSN     = "storage.postgres_dsn"
	KeyBlobDriver      = "blob.driver"
	KeyBlobRoot        = "blob.fs_root"
	KeyS3Bucket        = "blob.s3.bucket"
	KeyS3Region        = "blob.s3.region"
	KeyS3Endpoint      = "blob.s3.endpoint"
	KeyS3PathStyle     = "blob.s3.path_style"
	KeyWorkers         = "pipeline.workers"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyMetricsTextfile = "metrics.textfile"
	KeyMetricsVarsFile = "metrics.vars_file"
	KeyTraceFile       = "metrics.trace_file"
)

// StorageConfig selects the table store.
type StorageConfig struct {
	// memory, sqlite or postgres
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// S3Config addresses an S3 compatible bucket.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// BlobConfig selects the artifact store.
type BlobConfig struct {
	// fs, memory or s3
	Driver string   `mapstructure:"driver"`
	FSRoot string   `mapstructure:"fs_root"`
	S3     S3Config `mapstructure:"s3"`
}

// PipelineConfig tunes the assembly pipeline.
type PipelineConfig struct {
	// concurrent arrays; 0 selects GOMAXPROCS
	Workers int `mapstructure:"workers"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// node-exporter textfile written after each command; empty disables it
	Textfile string `mapstructure:"textfile"`
	// expvar JSON snapshot written after each command
	VarsFile string `mapstructure:"vars_file"`
	// JSON lines, one span per service operation, appended
	TraceFile string `mapstructure:"trace_file"`
}

// Config is the root settings struct.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Blob     BlobConfig     `mapstructure:"blob"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default of every key. Defaults also make the keys
// visible to AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyStorageDriver, string(core.StorageSQLite))
	v.SetDefault(KeySQLitePath, "crisprcore.db")
	v.SetDefault(KeyPostgresDSN, "postgres://localhost/crisprcore?sslmode=disable")
	v.SetDefault(KeyBlobDriver, string(blob.DriverFilesystem))
	v.SetDefault(KeyBlobRoot, "./blobdata")
	v.SetDefault(KeyS3Bucket, "")
	v.SetDefault(KeyS3Region, "us-east-1")
	v.SetDefault(KeyS3Endpoint, "")
	v.SetDefault(KeyS3PathStyle, false)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyMetricsTextfile, "")
	v.SetDefault(KeyMetricsVarsFile, "")
	v.SetDefault(KeyTraceFile, "")
}

// ReadFile merges a YAML config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects unknown drivers and formats.
func (c Config) Validate() error {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob.s3.bucket required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// StorageOptions converts the storage section for core.OpenTableStore.
func (c Config) StorageOptions() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobOptions converts the blob section for blob.Open.
func (c Config) BlobOptions() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3.Bucket,
			Region:    c.Blob.S3.Region,
			Endpoint:  c.Blob.S3.Endpoint,
			PathStyle: c.Blob.S3.PathStyle,
		},
	}
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

// NewLogger builds the slog logger described by the log section.
func NewLogger(c LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch c.Format {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
	return slog.New(h), nil
}
