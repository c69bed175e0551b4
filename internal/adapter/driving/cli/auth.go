package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// conductorView is the output form of a conductor profile.
type conductorView struct {
	ID          string `json:"id"`
	ConductorID string `json:"conductor_id"`
	Name        string `json:"name"`
	Depot       string `json:"depot"`
}

func toConductorView(c model.Conductor) conductorView {
	return conductorView{ID: c.ID, ConductorID: c.ConductorID, Name: c.Name, Depot: c.Depot}
}

func (v conductorView) text(w io.Writer) {
	fmt.Fprintf(w, "%s (%s), depot %s\n", v.Name, v.ConductorID, v.Depot)
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var conductorID, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a conductor",
		Long: `Sign in as a conductor and store the session token locally.

Any previous conductor session is discarded first. The password is read
from standard input when --password is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, rootOpts, conductorID, password)
		},
	}

	cmd.Flags().StringVar(&conductorID, "id", "", "conductor ID")
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *RootOptions, conductorID, password string) error {
	f := opts.formatter(cmd)

	if password == "" {
		var err error
		password, err = readSecret(cmd.InOrStdin())
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "reading password", err)
		}
	}

	app, err := opts.openApp(cmd, f)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Auth.Login(cmd.Context(), conductorID, password)
	if err != nil {
		return backendFailure(f, "signing in", err)
	}
	if !res.OK {
		return f.Fail(ExitFailure, ErrCodeRejected, res.Message, nil)
	}

	view := toConductorView(res.Payload)
	return f.Success(view, func(w io.Writer) {
		fmt.Fprint(w, "Signed in as ")
		view.text(w)
	})
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored conductor session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			app, err := rootOpts.openApp(cmd, f)
			if err != nil {
				return err
			}
			defer app.Close()

			app.Auth.Logout(cmd.Context())
			return f.Success(map[string]bool{"signed_out": true}, func(w io.Writer) {
				fmt.Fprintln(w, "Signed out")
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in conductor",
		Long:  "Verify the stored conductor token with the backend and show its profile.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			app, err := rootOpts.openApp(cmd, f)
			if err != nil {
				return err
			}
			defer app.Close()

			conductor, err := requireConductor(cmd.Context(), app, f)
			if err != nil {
				return err
			}
			view := toConductorView(conductor)
			return f.Success(view, view.text)
		},
	}
}

// readSecret reads one line from r.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("no password on stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
