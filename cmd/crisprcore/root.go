package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"crisprcore/internal/blob"
	"crisprcore/internal/config"
	"crisprcore/internal/core"
)

// expvarName is the expvar map the CLI publishes its metrics under.
const expvarName = "crisprcore"

// app carries the state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
	metrics *prometheus.Registry
	stdout  io.Writer
	stderr  io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: config.New(), metrics: prometheus.NewRegistry(), stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "crisprcore",
		Short:         "Assemble mature crRNAs from CRISPR locus dumps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "YAML config file")
	flags.String("storage-driver", "", "table store: memory, sqlite or postgres")
	flags.String("sqlite-path", "", "sqlite database file")
	flags.String("postgres-dsn", "", "PostgreSQL connection string")
	flags.String("blob-driver", "", "artifact store: fs, memory or s3")
	flags.String("blob-root", "", "artifact directory for the fs driver")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text or json")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file after the command")
	flags.String("vars-file", "", "write expvar metrics as JSON to this file after the command")
	flags.String("trace-file", "", "append one JSON line per service operation to this file")
	for flag, key := range map[string]string{
		"storage-driver":   config.KeyStorageDriver,
		"sqlite-path":      config.KeySQLitePath,
		"postgres-dsn":     config.KeyPostgresDSN,
		"blob-driver":      config.KeyBlobDriver,
		"blob-root":        config.KeyBlobRoot,
		"log-level":        config.KeyLogLevel,
		"log-format":       config.KeyLogFormat,
		"metrics-textfile": config.KeyMetricsTextfile,
		"vars-file":        config.KeyMetricsVarsFile,
		"trace-file":       config.KeyTraceFile,
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(newImportCmd(a), newRunCmd(a), newStatsCmd(a), newArtifactsCmd(a))
	return root
}

func (a *app) load() error {
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Log, a.stderr)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

// withService opens the configured stores, runs fn and then closes the table
// store and flushes the metric and trace files.
func (a *app) withService(ctx context.Context, fn func(context.Context, *core.Service) error) (err error) {
	store, err := core.OpenTableStore(ctx, a.cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("open table store: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	blobs, err := blob.Open(ctx, a.cfg.BlobOptions())
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	prom, err := core.NewPrometheusMetricsRecorder(a.metrics)
	if err != nil {
		return err
	}
	vars, err := core.NewExpvarMetricsRecorder(expvarName)
	if err != nil {
		return err
	}
	opts := []core.ServiceOption{
		core.WithLogger(a.logger),
		core.WithMetricsRecorder(core.TeeMetrics(prom, vars)),
		core.WithWorkers(a.cfg.Pipeline.Workers),
	}
	if path := a.cfg.Metrics.TraceFile; path != "" {
		f, openErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if openErr != nil {
			return fmt.Errorf("open trace file: %w", openErr)
		}
		tracer := core.NewJSONTracer(f, nil)
		defer func() {
			if cerr := errors.Join(tracer.Err(), f.Close()); cerr != nil && err == nil {
				err = fmt.Errorf("write trace: %w", cerr)
			}
		}()
		opts = append(opts, core.WithTracer(tracer))
	}

	runErr := fn(ctx, core.NewService(store, blobs, opts...))
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := prometheus.WriteToTextfile(path, a.metrics); err != nil && runErr == nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if path := a.cfg.Metrics.VarsFile; path != "" {
		if err := writeVars(path, vars); err != nil && runErr == nil {
			return fmt.Errorf("write vars: %w", err)
		}
	}
	return runErr
}

func writeVars(path string, vars *core.ExpvarMetricsRecorder) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := vars.WriteJSON(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
