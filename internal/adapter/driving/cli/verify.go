package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/passverify/internal/application"
	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	BusID     string
	BusNumber string
	From      string
	To        string
}

// outcomeView is the output form of a settled verification.
type outcomeView struct {
	Status       string    `json:"status"`
	Message      string    `json:"message"`
	Mode         string    `json:"mode"`
	Bus          busView   `json:"bus"`
	SubjectID    string    `json:"subject_id,omitempty"`
	RouteMatches bool      `json:"route_matches"`
	Pass         *passView `json:"pass,omitempty"`
	AttemptID    string    `json:"attempt_id"`
}

// passView is the output form of a checked pass.
type passView struct {
	Name     string `json:"name"`
	PassID   string `json:"pass_id"`
	PassType string `json:"pass_type"`
	From     string `json:"from"`
	To       string `json:"to"`
	Validity string `json:"validity"`
}

func toOutcomeView(mode model.Mode, bus model.Bus, o application.Outcome) outcomeView {
	view := outcomeView{
		Status:       string(o.Status),
		Message:      o.Message,
		Mode:         string(mode),
		Bus:          toBusView(bus),
		SubjectID:    o.SubjectID,
		RouteMatches: o.RouteMatches,
		AttemptID:    o.Attempt.ID,
	}
	if p := o.Pass; p != nil {
		view.Pass = &passView{
			Name:     p.SubjectName,
			PassID:   p.PassID,
			PassType: p.PassType,
			From:     p.Route.From,
			To:       p.Route.To,
			Validity: p.Validity,
		}
	}
	return view
}

func (v outcomeView) text(w io.Writer) {
	fmt.Fprintf(w, "%s: %s\n", v.Status, v.Message)
	if v.Pass != nil {
		fmt.Fprintf(w, "  passenger: %s (%s)\n", v.Pass.Name, v.SubjectID)
		fmt.Fprintf(w, "  pass:      %s %s, valid until %s\n", v.Pass.PassType, v.Pass.PassID, v.Pass.Validity)
		fmt.Fprintf(w, "  route:     %s - %s\n", v.Pass.From, v.Pass.To)
	}
	if v.Mode == string(model.ModeFace) && v.Status == string(model.StatusSuccess) {
		match := "matches"
		if !v.RouteMatches {
			match = "does not match"
		}
		fmt.Fprintf(w, "  pass route %s bus %s (%s - %s)\n", match, v.Bus.Number, v.Bus.From, v.Bus.To)
	}
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify <face|qr>",
		Short: "Run one verification with the camera",
		Long: `Run one verification on the configured camera and record it in the bus's
history.

face captures a single frame and submits it for recognition. qr scans frames
until a code is read or the scan times out.

Exit status is 0 when the pass is verified, 1 when it is not, 2 on errors.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(model.ModeFace), string(model.ModeQR)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, rootOpts, opts, model.Mode(args[0]))
		},
	}

	cmd.Flags().StringVar(&opts.BusID, "bus-id", "", "bus ID (default: configured bus)")
	cmd.Flags().StringVar(&opts.BusNumber, "bus-number", "", "bus number")
	cmd.Flags().StringVar(&opts.From, "from", "", "bus route origin")
	cmd.Flags().StringVar(&opts.To, "to", "", "bus route destination")

	return cmd
}

func runVerify(cmd *cobra.Command, rootOpts *RootOptions, opts *VerifyOptions, mode model.Mode) error {
	f := rootOpts.formatter(cmd)
	if !mode.Valid() {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs,
			fmt.Sprintf("unknown mode %q: must be face or qr", mode), nil)
	}

	app, err := rootOpts.openApp(cmd, f)
	if err != nil {
		return err
	}
	defer app.Close()

	bus := busFromConfig(app.Config)
	if opts.BusID != "" && opts.BusID != bus.ID {
		bus = model.Bus{ID: opts.BusID}
	}
	if opts.BusNumber != "" {
		bus.Number = opts.BusNumber
	}
	if opts.From != "" {
		bus.Route.From = opts.From
	}
	if opts.To != "" {
		bus.Route.To = opts.To
	}
	if bus.ID == "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "no bus selected: pass --bus-id or set PASSVERIFY_BUS_ID", nil)
	}

	ctx := cmd.Context()
	conductor, err := requireConductor(ctx, app, f)
	if err != nil {
		return err
	}
	bus = completeBus(ctx, app, f, conductor.Depot, bus)

	deps, err := app.VerifierDeps()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "camera", err)
	}
	v, err := application.NewVerifier(bus, mode, deps)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "creating verifier", err)
	}
	defer v.Close()

	if err := v.StartCapture(ctx); err != nil {
		return f.Fail(ExitCommandError, ErrCodeDevice, "camera unavailable", err)
	}

	outcome, err := awaitOutcome(ctx, v, mode, f)
	if err != nil {
		return err
	}

	view := toOutcomeView(mode, bus, outcome)
	if err := f.Success(view, view.text); err != nil {
		return err
	}
	if outcome.Status != model.StatusSuccess {
		return f.Done(ExitFailure, outcome.Message)
	}
	return nil
}

// awaitOutcome drives the verifier to a terminal outcome for mode.
func awaitOutcome(ctx context.Context, v *application.Verifier, mode model.Mode, f *OutputFormatter) (application.Outcome, error) {
	if mode == model.ModeFace {
		outcome, err := v.CaptureFace(ctx)
		if err != nil {
			return application.Outcome{}, verifyFailure(f, err)
		}
		return outcome, nil
	}

	f.VerboseLog("scanning for a QR code")
	snap, err := v.WaitSettled(ctx)
	if err != nil {
		return application.Outcome{}, f.Fail(ExitCommandError, ErrCodeGeneric, "waiting for a QR code", err)
	}
	switch {
	case snap.Outcome != nil:
		return *snap.Outcome, nil
	case snap.State == model.StateClosed:
		return application.Outcome{}, verifyFailure(f, application.ErrClosed)
	default:
		return application.Outcome{}, f.Fail(ExitCommandError, ErrCodeDevice, snap.DeviceErr, nil)
	}
}

func verifyFailure(f *OutputFormatter, err error) error {
	if errors.Is(err, application.ErrClosed) {
		// The verifier closes itself only when the backend ended the session.
		return f.Fail(ExitFailure, ErrCodeSession, "session expired: sign in again", nil)
	}
	return backendFailure(f, "verifying", err)
}

// completeBus fills a bus's number and route from the conductor's depot
// listing when they were not configured.
func completeBus(ctx context.Context, app *App, f *OutputFormatter, depot string, bus model.Bus) model.Bus {
	if bus.Number != "" && bus.Route.From != "" && bus.Route.To != "" {
		return bus
	}
	if depot == "" {
		return bus
	}

	buses, err := app.Conductor.ListDepotBuses(ctx, depot)
	if err != nil {
		f.VerboseLog("could not look up bus %s: %v", bus.ID, err)
		return bus
	}
	for _, b := range buses {
		if b.ID != bus.ID {
			continue
		}
		if bus.Number == "" {
			bus.Number = b.Number
		}
		if bus.Route.From == "" {
			bus.Route.From = b.Route.From
		}
		if bus.Route.To == "" {
			bus.Route.To = b.Route.To
		}
		bus.Depot = b.Depot
		return bus
	}
	f.VerboseLog("bus %s not found in depot %s", bus.ID, depot)
	return bus
}
