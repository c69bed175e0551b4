package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// attemptView is the output form of a history entry.
type attemptView struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Mode        string `json:"mode,omitempty"`
	Status      string `json:"status"`
	SubjectID   string `json:"subject_id,omitempty"`
	SubjectName string `json:"subject_name,omitempty"`
	PassID      string `json:"pass_id,omitempty"`
	PassType    string `json:"pass_type,omitempty"`
	Message     string `json:"message,omitempty"`
}

func toAttemptView(a model.VerificationAttempt) attemptView {
	ts := ""
	if !a.Timestamp.IsZero() {
		ts = a.Timestamp.UTC().Format(time.RFC3339)
	}
	return attemptView{
		ID:          a.ID,
		Timestamp:   ts,
		Mode:        string(a.Mode),
		Status:      string(a.Status),
		SubjectID:   a.SubjectID,
		SubjectName: a.SubjectName,
		PassID:      a.PassID,
		PassType:    a.PassType,
		Message:     a.Message,
	}
}

// flushView reports a journal replay.
type flushView struct {
	Sent      int `json:"sent"`
	Dropped   int `json:"dropped"`
	Remaining int `json:"remaining"`
}

// NewHistoryCommand creates the history command and its flush subcommand.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var busID, date string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a bus's verification history",
		Long:  "Show the verification history of a bus for one calendar day (UTC), today by default.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, rootOpts, busID, date)
		},
	}

	cmd.Flags().StringVar(&busID, "bus-id", "", "bus ID (default: configured bus)")
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default: today)")

	cmd.AddCommand(newHistoryFlushCommand(rootOpts))

	return cmd
}

func runHistory(cmd *cobra.Command, opts *RootOptions, busID, date string) error {
	f := opts.formatter(cmd)
	if date != "" {
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "date must be YYYY-MM-DD", nil)
		}
	}

	app, err := opts.openApp(cmd, f)
	if err != nil {
		return err
	}
	defer app.Close()

	if busID == "" {
		busID = app.Config.Bus.ID
	}
	if busID == "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "no bus selected: pass --bus-id or set PASSVERIFY_BUS_ID", nil)
	}

	attempts, err := app.History.List(cmd.Context(), busID, date)
	if err != nil {
		return backendFailure(f, "listing history", err)
	}

	views := make([]attemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, toAttemptView(a))
	}
	return f.Success(views, func(w io.Writer) {
		if len(views) == 0 {
			fmt.Fprintln(w, "No verifications recorded")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tMODE\tSTATUS\tPASSENGER\tPASS\tMESSAGE")
		for _, v := range views {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", v.Timestamp, v.Mode, v.Status, v.SubjectName, v.PassID, v.Message)
		}
		_ = tw.Flush()
	})
}

func newHistoryFlushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Send verifications the backend has not accepted yet",
		Long: `Replay journaled verifications to the backend, oldest first.

Exit status is 1 when entries remain in the journal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			app, err := rootOpts.openApp(cmd, f)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.History.Flush(cmd.Context())
			if err != nil {
				f.VerboseLog("flush stopped after %d: %v", res.Sent, err)
			}

			view := flushView{Sent: res.Sent, Dropped: res.Dropped, Remaining: res.Remaining}
			if err := f.Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "Sent %d, %d remaining\n", view.Sent, view.Remaining)
				if view.Dropped > 0 {
					fmt.Fprintf(w, "Dropped %d refused by the server\n", view.Dropped)
				}
			}); err != nil {
				return err
			}
			if err != nil || res.Remaining > 0 {
				return f.Done(ExitFailure, "pending verifications remain")
			}
			return nil
		},
	}
}
