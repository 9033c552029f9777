package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/readoai/readoai-go/internal/client"
	"github.com/readoai/readoai-go/internal/model"
)

var ErrPasswordMismatch = errors.New("passwords do not match")

func newRegisterCmd(a *app) *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Long:  `Create a new account. The password is asked for twice and never echoed.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			var err error
			if name == "" {
				if name, err = promptLine(a.reader, out, "Name"); err != nil {
					return err
				}
			}
			if email == "" {
				if email, err = promptLine(a.reader, out, "Email"); err != nil {
					return err
				}
			}

			password, err := promptPassword(out, "Password")
			if err != nil {
				return err
			}
			confirm, err := promptPassword(out, "Confirm password")
			if err != nil {
				return err
			}
			if password != confirm {
				return ErrPasswordMismatch
			}

			resp, err := a.client.Register(cmd.Context(), model.RegisterRequest{
				Name:     name,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")

	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			var err error
			if email == "" {
				if email, err = promptLine(a.reader, out, "Email"); err != nil {
					return err
				}
			}
			password, err := promptPassword(out, "Password")
			if err != nil {
				return err
			}

			resp, err := a.client.Login(cmd.Context(), model.LoginRequest{Email: email, Password: password})
			if err != nil {
				return err
			}

			name := resp.User.Name
			if name == "" {
				name = "User"
			}
			fmt.Fprintf(out, "Welcome back, %s!\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")

	return cmd
}

func newMeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the account behind the stored session",
		Long: `Ask the server who the stored session belongs to.
A session the server rejects is removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.client.Me(cmd.Context())
			switch {
			case errors.Is(err, client.ErrNotLoggedIn):
				return errors.New("not logged in, run readoctl login first")
			case client.IsUnauthorized(err):
				return errors.New("session expired, run readoctl login again")
			case err != nil:
				return err
			}

			printUser(cmd.OutOrStdout(), resp.User)
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.client.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session without contacting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			state, ok := a.holder.Get()
			if !ok {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			fmt.Fprintln(out, "Logged in")
			printUser(out, state.User)
			return nil
		},
	}
}

func printUser(w io.Writer, u model.UserResponse) {
	fmt.Fprintf(w, "ID:    %s\nName:  %s\nEmail: %s\n", u.ID, u.Name, u.Email)
}
