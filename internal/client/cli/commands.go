package cli

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/spf13/cobra"
)

// argOrPrompt returns args[0] or asks for the value.
func argOrPrompt(cmd *cobra.Command, reader *bufio.Reader, args []string, prompt string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	return GetSimpleText(reader, prompt, cmd.OutOrStdout())
}

func newRegisterCmd(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "register [username]",
		Short: "Create a new account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			reader := bufio.NewReader(cmd.InOrStdin())

			username, err := argOrPrompt(cmd, reader, args, "Username")
			if err != nil {
				return err
			}
			if email == "" {
				if email, err = GetSimpleText(reader, "Email", out); err != nil {
					return err
				}
			}
			pw, err := GetNewPassword(out, "Password")
			if err != nil {
				return err
			}

			return app.withClient(cmd, false, func(ctx context.Context, c Client) error {
				resp, err := c.Register(ctx, username, email, pw)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, resp.Message)
				if resp.User != nil {
					fmt.Fprintf(out, "id: %s\n", resp.User.ID)
				}
				if resp.Strength != nil {
					fmt.Fprintf(out, "password strength: %s (%.1f bits)\n", resp.Strength.Level, resp.Strength.Entropy)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	return cmd
}

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and store the access token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			reader := bufio.NewReader(cmd.InOrStdin())

			username, err := argOrPrompt(cmd, reader, args, "Username")
			if err != nil {
				return err
			}
			pw, err := GetPassword(out, "Password")
			if err != nil {
				return err
			}

			return app.withClient(cmd, false, func(ctx context.Context, c Client) error {
				resp, err := c.Login(ctx, username, pw)
				if err != nil {
					return err
				}
				if err := client.SaveToken(app.cfg.TokenFile, resp.AccessToken); err != nil {
					return fmt.Errorf("saving token: %w", err)
				}
				fmt.Fprintln(out, resp.Message)
				return nil
			})
		},
	}
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := client.DeleteToken(app.cfg.TokenFile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newWhoAmICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withClient(cmd, true, func(ctx context.Context, c Client) error {
				u, err := c.WhoAmI(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "username: %s\n", u.Username)
				fmt.Fprintf(out, "email:    %s\n", u.Email)
				fmt.Fprintf(out, "id:       %s\n", u.ID)
				fmt.Fprintf(out, "created:  %s\n", u.CreatedAt.Format(time.RFC3339))
				return nil
			})
		},
	}
}

func newPasswdCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			current, err := GetPassword(out, "Current password")
			if err != nil {
				return err
			}
			next, err := GetNewPassword(out, "New password")
			if err != nil {
				return err
			}

			return app.withClient(cmd, true, func(ctx context.Context, c Client) error {
				resp, err := c.ChangePassword(ctx, current, next)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, resp.Message)
				return nil
			})
		},
	}
}

func newStrengthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "strength",
		Short: "Estimate the strength of a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			pw, err := GetPassword(out, "Password")
			if err != nil {
				return err
			}

			return app.withClient(cmd, false, func(ctx context.Context, c Client) error {
				st, err := c.Strength(ctx, pw)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s (%.1f bits)\n", st.Level, st.Entropy)
				return nil
			})
		},
	}
}

func newPingCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withClient(cmd, false, func(ctx context.Context, c Client) error {
				if err := c.Ping(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "OK")
				return nil
			})
		},
	}
}
