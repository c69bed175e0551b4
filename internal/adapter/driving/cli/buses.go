package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// busView is the output form of a bus.
type busView struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	From   string `json:"from"`
	To     string `json:"to"`
	Depot  string `json:"depot,omitempty"`
}

func toBusView(b model.Bus) busView {
	return busView{ID: b.ID, Number: b.Number, From: b.Route.From, To: b.Route.To, Depot: b.Depot}
}

// NewBusesCommand creates the buses command.
func NewBusesCommand(rootOpts *RootOptions) *cobra.Command {
	var depot string

	cmd := &cobra.Command{
		Use:   "buses",
		Short: "List the buses of a depot",
		Long:  "List the buses of a depot. Defaults to the signed-in conductor's depot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuses(cmd, rootOpts, depot)
		},
	}

	cmd.Flags().StringVar(&depot, "depot", "", "depot ID (default: the conductor's depot)")

	return cmd
}

func runBuses(cmd *cobra.Command, opts *RootOptions, depot string) error {
	f := opts.formatter(cmd)
	app, err := opts.openApp(cmd, f)
	if err != nil {
		return err
	}
	defer app.Close()

	conductor, err := requireConductor(cmd.Context(), app, f)
	if err != nil {
		return err
	}
	if depot == "" {
		depot = conductor.Depot
	}
	if depot == "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "conductor has no depot: pass --depot", nil)
	}

	buses, err := app.Conductor.ListDepotBuses(cmd.Context(), depot)
	if err != nil {
		return backendFailure(f, "listing buses", err)
	}

	views := make([]busView, 0, len(buses))
	for _, b := range buses {
		views = append(views, toBusView(b))
	}
	return f.Success(views, func(w io.Writer) {
		if len(views) == 0 {
			fmt.Fprintf(w, "No buses in depot %s\n", depot)
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNUMBER\tROUTE")
		for _, v := range views {
			fmt.Fprintf(tw, "%s\t%s\t%s - %s\n", v.ID, v.Number, v.From, v.To)
		}
		_ = tw.Flush()
	})
}
