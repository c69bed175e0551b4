package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// NewUserCommand creates the user command group for passenger accounts.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Passenger account commands",
	}

	cmd.AddCommand(newUserLoginCommand(rootOpts))
	cmd.AddCommand(newUserLogoutCommand(rootOpts))
	cmd.AddCommand(newUserPassCommand(rootOpts))

	return cmd
}

// userView is the output form of a user sign-in.
type userView struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	UserType string `json:"user_type"`
}

// passInfoView is the output form of a user's pass summary.
type passInfoView struct {
	HasPass  bool   `json:"has_pass"`
	Status   string `json:"status"`
	PassType string `json:"pass_type,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Validity string `json:"validity,omitempty"`
}

func newUserLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a passenger",
		Long: `Sign in as a passenger and store the user token. The user token is kept
apart from the conductor session. The password is read from standard input
when --password is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if password == "" {
				var err error
				password, err = readSecret(cmd.InOrStdin())
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "reading password", err)
				}
			}

			app, err := rootOpts.openApp(cmd, f)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			app.Vault.Remove(ctx, model.ActorUser)
			res, err := app.User.Login(ctx, email, password)
			if err != nil {
				return backendFailure(f, "signing in", err)
			}
			if !res.OK {
				return f.Fail(ExitFailure, ErrCodeRejected, res.MessageOr("Login failed"), nil)
			}
			app.Vault.Set(ctx, model.ActorUser, res.Payload.Token)

			view := userView{UserID: res.Payload.UserID, Name: res.Payload.Name, UserType: res.Payload.UserType}
			return f.Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "Signed in as %s (%s)\n", view.Name, view.UserID)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newUserLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored user token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			app, err := rootOpts.openApp(cmd, f)
			if err != nil {
				return err
			}
			defer app.Close()

			app.Vault.Remove(cmd.Context(), model.ActorUser)
			return f.Success(map[string]bool{"signed_out": true}, func(w io.Writer) {
				fmt.Fprintln(w, "Signed out")
			})
		},
	}
}

func newUserPassCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pass",
		Short: "Show the signed-in passenger's pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			app, err := rootOpts.openApp(cmd, f)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if !app.Vault.Exists(ctx, model.ActorUser) {
				return f.Fail(ExitFailure, ErrCodeSession, "not signed in: run passverify user login", nil)
			}

			res, err := app.User.PassInfo(ctx)
			if err != nil {
				return backendFailure(f, "loading pass", err)
			}
			if !res.OK {
				return f.Fail(ExitFailure, ErrCodeRejected, res.MessageOr("Pass information unavailable"), nil)
			}

			p := res.Payload
			view := passInfoView{
				HasPass:  p.HasPass,
				Status:   p.Status,
				PassType: p.PassType,
				From:     p.Route.From,
				To:       p.Route.To,
				Validity: p.Validity,
			}
			return f.Success(view, func(w io.Writer) {
				if !view.HasPass {
					fmt.Fprintf(w, "No active pass (status: %s)\n", view.Status)
					return
				}
				fmt.Fprintf(w, "%s pass, %s - %s, valid until %s (status: %s)\n",
					view.PassType, view.From, view.To, view.Validity, view.Status)
			})
		},
	}
}
