// Package commands provides the command line interface of astro-ingester.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/laav10/astro-ingester/internal/archive"
	"github.com/laav10/astro-ingester/internal/cli"
	"github.com/laav10/astro-ingester/internal/constants"
	"github.com/laav10/astro-ingester/internal/fitsheader"
	"github.com/laav10/astro-ingester/internal/metadata"
	"github.com/laav10/astro-ingester/internal/metrics"
	"github.com/laav10/astro-ingester/internal/objectstore"
	"github.com/laav10/astro-ingester/internal/pipeline"
	"github.com/laav10/astro-ingester/internal/progress"
	"github.com/laav10/astro-ingester/internal/webservice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// pushTimeout bounds the delivery of metrics to the Pushgateway.
const pushTimeout = 10 * time.Second

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	ctx    context.Context
	cancel context.CancelFunc

	logCloser io.Closer

	mu     sync.Mutex
	server *webservice.Server
	ready  chan struct{}
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int    `mapstructure:"verbose"`
	JSONLogs  bool   `mapstructure:"json-logs"`
	LogFile   string `mapstructure:"log-file"`
	ExitCode  bool   `mapstructure:"exit-code"`

	Store   objectstore.Config `mapstructure:",squash"`
	Archive archive.Config     `mapstructure:",squash"`
	Serve   webservice.Config  `mapstructure:",squash"`

	MetricsPushURL string       `mapstructure:"metrics-push-url"`
	MetricsJob     string       `mapstructure:"metrics-job"`
	Footprint      [][2]float64 `mapstructure:"footprint"`
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.cmd = &cobra.Command{
		Use:   constants.CmdName + " [flags] <file-path> [metadata-path]",
		Short: "Ingest a FITS frame into the science archive",
		Long: `Ingest a FITS frame into the science archive.

The frame header is rewritten from the observation metadata, the frame is uploaded
to the object store and registered with the science archive.
Without a metadata file, built-in sample metadata is used.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetVerbosity(a.config.Verbosity) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}

			closer, err := cli.SetSlog(a.config.Verbosity, a.config.JSONLogs, a.config.LogFile)
			if err != nil {
				return fmt.Errorf("could not open log file: %v", err)
			}
			a.logCloser = closer
			slog.Debug("got app config", "config", a.config.redacted())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}

			job := pipeline.Job{Path: args[0]}
			if len(args) == 2 {
				job.MetadataPath = args[1]
			}
			return a.ingest(cmd.OutOrStdout(), job)
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)
	serve := a.installServe()
	a.installVersion()

	for _, fs := range []*pflag.FlagSet{a.cmd.PersistentFlags(), a.cmd.Flags(), serve.Flags()} {
		if err := a.viper.BindPFlags(fs); err != nil {
			return nil, err
		}
	}

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountP("verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().Bool("json-logs", false, "write logs as JSON")
	cmd.PersistentFlags().String("log-file", "", "also append JSON logs to this file")

	cmd.PersistentFlags().String("store-endpoint", constants.DefaultStoreEndpoint, "object store endpoint")
	cmd.PersistentFlags().String("store-region", constants.DefaultStoreRegion, "object store region")
	cmd.PersistentFlags().String("store-access-key", "", "object store access key")
	cmd.PersistentFlags().String("store-secret-key", "", "object store secret key")
	cmd.PersistentFlags().String("store-bucket", constants.DefaultBucket, "bucket receiving the frames")

	cmd.PersistentFlags().String("archive-url", constants.DefaultArchiveURL, "frames endpoint of the science archive")
	cmd.PersistentFlags().String("archive-token", "", "science archive API token")
	cmd.PersistentFlags().Duration("archive-timeout", constants.DefaultArchiveTimeout, "response timeout of the science archive")

	cmd.PersistentFlags().String("metrics-push-url", "", "Pushgateway URL receiving run metrics, disabled if empty")
	cmd.PersistentFlags().String("metrics-job", constants.DefaultMetricsJob, "job name of the pushed metrics")

	cmd.Flags().Bool("exit-code", false, "exit with status 1 when the ingestion fails")

	if err := cmd.MarkPersistentFlagFilename("log-file"); err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark log-file flag as filename: %v", err))
	}
}

// Run executes the command and associated process, returning an error if any.
func (a *App) Run() error {
	defer func() {
		if a.logCloser != nil {
			_ = a.logCloser.Close()
		}
	}()
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a *App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Quit stops the web service gracefully, or interrupts the running ingestion.
func (a *App) Quit() {
	a.mu.Lock()
	s := a.server
	a.mu.Unlock()

	if s != nil {
		s.Quit(false)
		return
	}
	a.cancel()
}

// RootCmd returns the root command.
func (a *App) RootCmd() cobra.Command {
	return *a.cmd
}

// ingest runs a single ingestion, reporting its progress on w.
func (a *App) ingest(w io.Writer, job pipeline.Job) error {
	rec := metrics.New(prometheus.NewRegistry())
	rep := progress.New(w)

	p, err := a.newPipeline(rec, pipeline.WithObserver(rep))
	if err != nil {
		return err
	}

	rep.Start(job)
	out := p.Run(a.ctx, job)
	rep.Outcome(out)
	rec.Outcome(out)

	a.pushMetrics(rec)

	if !out.Succeeded() && a.config.ExitCode {
		return fmt.Errorf("ingestion of %s failed: %w", job.Path, out.Err)
	}
	return nil
}

// newPipeline wires the pipeline steps from the configuration. rec observes every step.
func (a *App) newPipeline(rec *metrics.Recorder, args ...pipeline.Option) (pipeline.Pipeline, error) {
	log := slog.Default()

	store, err := objectstore.New(a.config.Store, objectstore.WithLogger(log))
	if err != nil {
		return pipeline.Pipeline{}, fmt.Errorf("invalid object store configuration: %v", err)
	}
	if err := store.EnsureBucket(a.ctx); err != nil {
		// The upload step reports the failure if the bucket is really missing.
		log.Warn("Could not ensure the bucket exists", "bucket", store.Bucket(), "err", err)
	}

	footprint, err := newFootprint(a.config.Footprint)
	if err != nil {
		return pipeline.Pipeline{}, err
	}

	args = append([]pipeline.Option{
		pipeline.WithObserver(rec),
		pipeline.WithFootprint(footprint),
		pipeline.WithLogger(log),
	}, args...)

	return pipeline.New(
		fitsheader.New(fitsheader.WithLogger(log)),
		store,
		archive.New(a.config.Archive, archive.WithLogger(log)),
		args...,
	), nil
}

// pushMetrics sends the metrics of the run to the Pushgateway, if one is configured.
func (a *App) pushMetrics(rec *metrics.Recorder) {
	if a.config.MetricsPushURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, pushTimeout)
	defer cancel()
	if err := rec.Push(ctx, a.config.MetricsPushURL, a.config.MetricsJob, &http.Client{}); err != nil {
		slog.Warn("Failed to push metrics", "url", a.config.MetricsPushURL, "err", err)
	}
}

// newFootprint builds the registered footprint from a ring of (ra, dec) vertices, closing it if needed.
func newFootprint(ring [][2]float64) (metadata.Footprint, error) {
	if len(ring) == 0 {
		return metadata.DefaultFootprint(), nil
	}
	if len(ring) < 3 {
		return metadata.Footprint{}, errors.New("footprint needs at least 3 vertices")
	}

	closed := append([][2]float64{}, ring...)
	if closed[0] != closed[len(closed)-1] {
		closed = append(closed, closed[0])
	}
	return metadata.NewFootprint(closed), nil
}

// redacted returns the configuration without its secrets, for logging.
func (c appConfig) redacted() appConfig {
	if c.Store.SecretKey != "" {
		c.Store.SecretKey = "***"
	}
	if c.Archive.Token != "" {
		c.Archive.Token = "***"
	}
	return c
}
