package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/passverify/internal/adapter/driving/http"
	"github.com/ericfisherdev/passverify/internal/application"
)

// sessionPollInterval is how often a signed-out kiosk checks the token store
// for a new conductor login.
const sessionPollInterval = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the kiosk API for the configured bus",
		Long: `Serve the kiosk HTTP API that a touch terminal drives: open a face or QR
verification, capture, reset and browse today's history for the configured
bus. Journaled verifications are replayed in the background.

Sign in with passverify login before starting the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: configured listen_addr)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *RootOptions, listen string) error {
	f := opts.formatter(cmd)
	app, err := opts.openApp(cmd, f)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config
	logger := app.Logger
	if listen != "" {
		cfg.ListenAddr = listen
	}
	if !cfg.HasBus() {
		return f.Fail(ExitCommandError, ErrCodeConfig, "no bus configured: set PASSVERIFY_BUS_ID", nil)
	}

	deps, err := app.VerifierDeps()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "camera", err)
	}

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	// 1. Resume the conductor session, if any.
	if conductor, ok, err := app.Auth.Restore(ctx); err != nil {
		logger.Warn("could not restore conductor session", "error", err)
	} else if ok {
		logger.Info("conductor session restored", "conductor_id", conductor.ConductorID)
	} else {
		logger.Warn("no conductor signed in, verification is disabled until passverify login")
	}

	// 2. Wire the desk and the journal replay.
	bus := completeBus(ctx, app, f, sessionDepot(app.Session), busFromConfig(cfg))
	desk := application.NewDesk(bus, deps)
	defer func() {
		if err := desk.Close(); err != nil {
			logger.Error("error closing verification desk", "error", err)
		}
	}()

	var background sync.WaitGroup
	defer background.Wait()
	defer stop()

	retry := application.NewRetryService(app.History, cfg.RetryInterval, logger)
	background.Go(func() { retry.Start(ctx) })
	background.Go(func() { watchSession(ctx, app, desk, sessionPollInterval) })

	// 3. Serve the kiosk API.
	handler := httphandler.NewHandler(desk, app.History, retry, app.Session, logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "listening", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("kiosk server starting", "addr", ln.Addr().String(), "bus_id", bus.ID)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 4. Wait for shutdown signal or a server failure.
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "kiosk server", err)
		}
	}
	logger.Info("shutting down")

	// 5. Graceful shutdown with 10s timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// watchSession closes the desk each time the backend ends the conductor
// session, then polls the token store until a conductor signs in again from
// another passverify process.
func watchSession(ctx context.Context, app *App, desk *application.Desk, poll time.Duration) {
	for {
		if !app.Session.Active() && !waitForLogin(ctx, app, poll) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-app.Session.Ended():
		}

		app.Logger.Warn("conductor session ended, sign in again with passverify login")
		if err := desk.Close(); err != nil {
			app.Logger.Error("error closing verification desk", "error", err)
		}
	}
}

// waitForLogin returns true once a stored conductor token is accepted, or
// false when ctx ends first.
func waitForLogin(ctx context.Context, app *App, poll time.Duration) bool {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		conductor, ok, err := app.Auth.Restore(ctx)
		if err != nil {
			app.Logger.Debug("conductor session check failed", "error", err)
			continue
		}
		if ok {
			app.Logger.Info("conductor signed in", "conductor_id", conductor.ConductorID)
			return true
		}
	}
}

func sessionDepot(s *application.ConductorSession) string {
	c, ok := s.Profile()
	if !ok {
		return ""
	}
	return c.Depot
}
