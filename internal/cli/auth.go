package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cashier/internal/remote"
)

// AuthOptions holds flags for the auth and admin-auth commands.
type AuthOptions struct {
	*RootOptions
	Email    string
	Password string
}

func (o *AuthOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&o.Password, "password", "", "account password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
}

// NewAuthCommand creates the auth command.
func NewAuthCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuthOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in to the cashier API and store the token",
		Long: `Log in to the cashier API and store the returned token for email.
Later upload runs use the stored token unless --token is given.

Example:
  cashier auth --email cashier@example.com --password secret`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			token, err := s.cashierClient("").Login(cmd.Context(), opts.Email, opts.Password)
			if err != nil {
				return loginError("cashier", err)
			}
			if err := s.store.SaveCashierToken(cmd.Context(), opts.Email, token); err != nil {
				return WrapExitError(ExitFailure, "failed to store token", err)
			}
			return s.out.Emit(
				map[string]string{"email": opts.Email, "token": token},
				fmt.Sprintf("Token %s is stored in db.", token),
			)
		},
	}
	opts.bind(cmd)

	return cmd
}

// NewAdminAuthCommand creates the admin-auth command.
func NewAdminAuthCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuthOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "admin-auth",
		Aliases: []string{"admin_auth"},
		Short:   "Log in to the admin API through SSO and store the token",
		Long: `Run the admin single sign-on flow and store the resulting token for
email. The company id is resolved on the first removal run and cached.

Example:
  cashier admin-auth --email admin@example.com --password secret`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			token, err := s.adminClient("").Login(cmd.Context(), opts.Email, opts.Password)
			if err != nil {
				return loginError("admin", err)
			}
			if err := s.store.SaveAdminToken(cmd.Context(), opts.Email, token); err != nil {
				return WrapExitError(ExitFailure, "failed to store token", err)
			}
			return s.out.Emit(
				map[string]string{"email": opts.Email, "token": token},
				fmt.Sprintf("Token %s", token),
			)
		},
	}
	opts.bind(cmd)

	return cmd
}

func loginError(service string, err error) error {
	if remote.IsAuthError(err) {
		return WrapExitError(ExitFailure, service+" login rejected", err)
	}
	return WrapExitError(ExitFailure, service+" login failed", err)
}
