package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgellow/minidp/internal"
	"github.com/dgellow/minidp/internal/auth"
	"github.com/dgellow/minidp/internal/authflow"
)

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the hosted identity provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *internal.MiniDP) error {
				tokens, err := app.Login(ctx, provider)
				if errors.Is(err, internal.ErrNoLoopback) {
					fmt.Fprintln(cmd.OutOrStdout(), "Browser opened. After signing in, run:")
					fmt.Fprintln(cmd.OutOrStdout(), "  minidp callback '<redirected url>'")
					return nil
				}
				if isCancelled(err) {
					return fmt.Errorf("login cancelled")
				}
				return printResult(cmd, auth.NewCallbackResult(tokens, err), err)
			})
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "identity provider name passed as identity_provider")
	return cmd
}

func newCallbackCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "callback <url>",
		Short: "Complete a login with the URL the identity provider redirected to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *internal.MiniDP) error {
				tokens, err := app.Callback(ctx, args[0])
				return printResult(cmd, auth.NewCallbackResult(tokens, err), err)
			})
		},
	}
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *internal.MiniDP) error {
				status := map[string]any{
					"loggedIn": app.Auth().NotifyAuthChange(ctx),
				}
				if cfg := app.IdentityProvider(); cfg != nil {
					status["identityProvider"] = cfg.BaseURL()
					status["clientId"] = cfg.ClientID
				}
				if tokens := app.Auth().GetTokens(ctx); tokens != nil {
					status["username"] = tokens.Username
					if exp := tokens.Expiry(); !exp.IsZero() {
						status["expiresAt"] = exp.Format(time.RFC3339)
					}
				}
				return writeJSON(cmd, status)
			})
		},
	}
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var idToken bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it when needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *internal.MiniDP) error {
				if !app.Auth().EnsureValidToken(ctx) {
					return fmt.Errorf("not logged in")
				}
				tokens := app.Auth().GetTokens(ctx)
				value := tokens.AccessToken
				if idToken {
					value = tokens.IDToken
				}
				if value == "" {
					return fmt.Errorf("no token stored")
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&idToken, "id", false, "print the id token instead")
	return cmd
}

func newRefreshCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run the refresh token grant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *internal.MiniDP) error {
				if err := app.Auth().RefreshWithRefreshToken(ctx); err != nil {
					return fmt.Errorf("%s: %w", authflow.ErrorCode(err), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Tokens refreshed")
				return nil
			})
		},
	}
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *internal.MiniDP) error {
				if err := app.Auth().SignOut(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), BuildVersion)
		},
	}
}

func printResult(cmd *cobra.Command, result auth.CallbackResult, err error) error {
	if werr := writeJSON(cmd, result); werr != nil {
		return werr
	}
	return err
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
