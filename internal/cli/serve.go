package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/patternweave/internal/config"
	"github.com/roach88/patternweave/internal/generate"
	"github.com/roach88/patternweave/internal/publish"
	"github.com/roach88/patternweave/internal/server"
	"github.com/roach88/patternweave/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port        int
	Output      string
	PatternsDir string
	Database    string

	// Listener overrides the listen address (for testing).
	Listener net.Listener
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the generation HTTP service",
		Long: `Serve the pattern directory and the generation endpoint over HTTP.

Endpoints:
  GET  /api/patterns   list the .xml documents in the patterns directory
  POST /api/generate   generate refinements and return them as a zip
  GET  /healthz        liveness probe

Settings not given as flags come from --config, .env and PATTERNWEAVE_*
environment variables.

Example:
  patternweave serve --port 8080 --patterns ./node_Structure -o ./generated --db history.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "listen port (default from config)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "workspace directory (default from config)")
	cmd.Flags().StringVar(&opts.PatternsDir, "patterns", "", "pattern directory (default from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite history database (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(opts.formatter(cmd))
	if err != nil {
		return err
	}
	applyServeFlags(cfg, opts)

	logger := opts.logger(cmd.ErrOrStderr(), cfg.SlogLevel())

	files := generate.NewFileLoader(cfg.PatternsDir)
	loader, err := generate.NewCachedLoader(files, cfg.CacheSize)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeConfig+": cannot create pattern cache", err)
	}

	srvOpts := server.Options{
		Addr:           cfg.Listen,
		PatternsDir:    cfg.PatternsDir,
		Service:        generate.NewService(loader, logger),
		Writer:         generate.NewWriter(cfg.Workspace, logger),
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	}

	if cfg.HistoryDB != "" {
		logger.Info("opening history database", "path", cfg.HistoryDB)
		st, err := store.Open(cfg.HistoryDB)
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeStore+": cannot open history database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing history database", "error", closeErr)
			}
		}()
		srvOpts.Recorder = st
	}

	if cfg.S3.Enabled {
		pub, err := publish.NewS3Publisher(publish.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeConfig+": cannot create archive publisher", err)
		}
		srvOpts.Publisher = pub
		logger.Info("publishing archives", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket)
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := server.New(srvOpts)
	addr := cfg.Listen
	if opts.Listener != nil {
		addr = opts.Listener.Addr().String()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s. Press Ctrl-C to stop.\n", addr)

	if opts.Listener != nil {
		err = srv.Serve(ctx, opts.Listener)
	} else {
		err = srv.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "server error", err)
	}
	return nil
}

// applyServeFlags lets explicit flags win over the loaded configuration.
func applyServeFlags(cfg *config.Config, opts *ServeOptions) {
	if opts.Port > 0 {
		cfg.Listen = ":" + strconv.Itoa(opts.Port)
	}
	if opts.Output != "" {
		cfg.Workspace = opts.Output
	}
	if opts.PatternsDir != "" {
		cfg.PatternsDir = opts.PatternsDir
	}
	if opts.Database != "" {
		cfg.HistoryDB = opts.Database
	}
}
