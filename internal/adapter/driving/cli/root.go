// Package cli is the passverify command tree: conductor sign-in, one-shot
// verifications, history and the kiosk server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/passverify/internal/config"
	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	APIURL     string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the passverify CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "passverify",
		Short: "Bus pass verification for conductors",
		Long: `passverify checks passenger bus passes by face or QR code against the
pass backend, records every attempt in the bus's verification history and
serves a local kiosk API for touch terminals.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $PASSVERIFY_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "backend base URL (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logs")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewBusesCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// Execute runs the command tree with args and returns the process exit code.
// Errors the commands did not report themselves are printed to stderr.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || !exitErr.reported {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return GetExitCode(err)
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// loadConfig loads the config file and environment, then applies flags.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	path := o.ConfigPath
	if path == "" {
		path = os.Getenv("PASSVERIFY_CONFIG")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	if o.APIURL != "" {
		cfg.APIURL = o.APIURL
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp loads configuration and wires the runtime. Failures are reported
// through f and returned as command errors.
func (o *RootOptions) openApp(cmd *cobra.Command, f *OutputFormatter) (*App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "loading configuration", err)
	}

	app, err := NewApp(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "opening local storage", err)
	}
	f.VerboseLog("using backend %s", cfg.APIURL)
	return app, nil
}

// requireConductor restores the stored conductor session.
func requireConductor(ctx context.Context, app *App, f *OutputFormatter) (model.Conductor, error) {
	conductor, ok, err := app.Auth.Restore(ctx)
	if err != nil {
		return model.Conductor{}, backendFailure(f, "restoring session", err)
	}
	if !ok {
		return model.Conductor{}, f.Fail(ExitFailure, ErrCodeSession, "not signed in: run passverify login", nil)
	}
	return conductor, nil
}

// backendFailure reports a failed backend call. A session expiry is a
// failure of the operator's session; anything else is a command error.
func backendFailure(f *OutputFormatter, op string, err error) error {
	if errors.Is(err, driven.ErrSessionExpired) {
		return f.Fail(ExitFailure, ErrCodeSession, driven.ErrSessionExpired.Error(), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeBackend, op, err)
}

// busFromConfig returns the configured bus.
func busFromConfig(cfg *config.Config) model.Bus {
	return model.Bus{
		ID:     cfg.Bus.ID,
		Number: cfg.Bus.Number,
		Route:  model.Route{From: cfg.Bus.From, To: cfg.Bus.To},
	}
}
