package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/giftswap/internal/config"
	"github.com/roach88/giftswap/internal/exchange"
	"github.com/roach88/giftswap/internal/httpapi"
	"github.com/roach88/giftswap/internal/store"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
// Empty flag values fall back to the environment.
type ServeOptions struct {
	*RootOptions
	Addr     string
	DataFile string
	AuditDB  string

	// Listening is called with the bound address once the server accepts
	// connections (for testing).
	Listening func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gift exchange HTTP service",
		Long: `Run the gift exchange HTTP service.

State is loaded from the data file on startup and every change is written
back to it before the request returns. The admin secret is read from
GIFTSWAP_ADMIN_SECRET and must be set.

Environment:
  GIFTSWAP_ADDR          listen address (default :8080)
  GIFTSWAP_DATA_FILE     state file (default data/exchange.json)
  GIFTSWAP_AUDIT_DB      SQLite audit log (optional)
  GIFTSWAP_ADMIN_SECRET  admin secret (required)

Example:
  GIFTSWAP_ADMIN_SECRET=s3cret giftswap serve --data ./exchange.json
  giftswap serve --addr 127.0.0.1:9000 --audit-db ./audit.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides GIFTSWAP_ADDR)")
	cmd.Flags().StringVar(&opts.DataFile, "data", "", "state file path (overrides GIFTSWAP_DATA_FILE)")
	cmd.Flags().StringVar(&opts.AuditDB, "audit-db", "", "SQLite audit log path (overrides GIFTSWAP_AUDIT_DB)")

	return cmd
}

// newLogger builds the process logger: text on w, Debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// loadServeConfig reads the environment and applies flag overrides.
func loadServeConfig(opts *ServeOptions) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	if opts.DataFile != "" {
		cfg.DataFile = opts.DataFile
	}
	if opts.AuditDB != "" {
		cfg.AuditDB = opts.AuditDB
	}
	return cfg, cfg.Validate()
}

func runServe(parent context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	slog.SetDefault(logger)

	cfg, err := loadServeConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	gate, err := exchange.NewGate(cfg.AdminSecret)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	files := store.NewFileStore(cfg.DataFile, store.WithFileLogger(logger))
	snap, err := files.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load state", err)
	}
	if snap == nil {
		logger.Info("no state file, starting empty exchange", "path", cfg.DataFile)
	} else {
		logger.Info("state loaded",
			"path", cfg.DataFile,
			"participants", len(snap.Participants),
			"registration_open", snap.State.RegistrationOpen,
			"assignments_ready", snap.State.AssignmentsReady,
		)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	writerOpts := []store.WriterOption{store.WithWriterLogger(logger)}
	if cfg.AuditDB != "" {
		audit, err := store.OpenAudit(cfg.AuditDB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open audit database", err)
		}
		defer func() {
			if closeErr := audit.Close(); closeErr != nil {
				logger.Error("error closing audit database", "error", closeErr)
			}
		}()
		lastSeq, err := audit.LastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read audit database", err)
		}
		writerOpts = append(writerOpts, store.WithRecorder(audit), store.WithStartSeq(lastSeq))
		logger.Info("audit log enabled", "path", cfg.AuditDB, "last_seq", lastSeq)
	}

	writer := store.NewWriter(files, writerOpts...)
	// Runs after HTTP shutdown and before the audit log closes.
	defer writer.Close()

	registry, err := exchange.NewRegistry(snap, exchange.Options{
		Persister: writer,
		Logger:    logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create registry", err)
	}
	server := httpapi.NewServer(registry, exchange.NewAdmin(gate, registry), logger)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to listen on %s", cfg.Addr), err)
	}
	httpSrv := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

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

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpSrv.Serve(ln)
	}()

	logger.Info("giftswap listening", "addr", ln.Addr().String(), "data", cfg.DataFile)
	if opts.Listening != nil {
		opts.Listening(ln.Addr().String())
	}

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	logger.Info("giftswap stopped", "pending_writes", writer.Pending(), "seq", writer.Seq())
	return nil
}
