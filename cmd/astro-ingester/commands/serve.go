package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/laav10/astro-ingester/internal/constants"
	"github.com/laav10/astro-ingester/internal/metrics"
	"github.com/laav10/astro-ingester/internal/webservice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func (a *App) installServe() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept frames to ingest over HTTP",
		Long: `Accept frames to ingest over HTTP.

Frames are posted as multipart requests to /api/ingest, with the FITS file in the
fits_file field and the observation metadata in the metadata_file field.
Ingestions are run one at a time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve()
		},
	}

	cmd.Flags().String("listen-host", "", "host to listen on")
	cmd.Flags().Int("listen-port", constants.DefaultListenPort, "port to listen on")
	cmd.Flags().String("upload-dir", constants.GetDefaultUploadDir(), "directory holding posted files while they are ingested")
	cmd.Flags().Int64("max-upload-bytes", constants.DefaultMaxUploadBytes, "maximum size of an ingestion request")
	cmd.Flags().Duration("read-timeout", 5*time.Minute, "read timeout for HTTP server")
	cmd.Flags().Duration("write-timeout", 10*time.Minute, "write timeout for HTTP server")

	if err := cmd.MarkFlagDirname("upload-dir"); err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark upload-dir flag as dirname: %v", err))
	}

	a.cmd.AddCommand(cmd)
	return cmd
}

func (a *App) serve() error {
	s, err := a.newServer()

	a.mu.Lock()
	a.server = s
	a.mu.Unlock()
	close(a.ready)

	if err != nil {
		return err
	}
	return s.Run()
}

func (a *App) newServer() (*webservice.Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	p, err := a.newPipeline(rec)
	if err != nil {
		return nil, err
	}

	s, err := webservice.New(a.ctx, a.config.Serve, p, rec, webservice.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %v", err)
	}
	return s, nil
}
