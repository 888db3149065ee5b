package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dgellow/minidp/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check configuration files",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "init [path]",
			Short: "Generate a default config file",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := defaultConfigPath
				if len(args) == 1 {
					path = args[0]
				}
				if err := generateDefaultConfig(path); err != nil {
					return fmt.Errorf("failed to generate config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Generated default config at: %s\n", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate [path]",
			Short: "Validate a config file",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := defaultConfigPath
				if len(args) == 1 {
					path = args[0]
				}
				return validateConfig(cmd.OutOrStdout(), path)
			},
		},
	)
	return cmd
}

func generateDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	defaultConfig := map[string]any{
		"identityProvider": map[string]any{
			"domain":   "yourapp.auth.eu-west-1.amazoncognito.com",
			"clientId": "your-app-client-id",
			"redirectUris": []string{
				"http://127.0.0.1:8765/callback",
			},
		},
		"storage": map[string]any{
			"durable": map[string]any{
				"kind":          "file",
				"path":          ".minidp/tokens.json",
				"encryptionKey": map[string]string{"$env": "MINIDP_ENCRYPTION_KEY"},
			},
			"session": map[string]any{
				"kind": "file",
				"path": ".minidp/session.json",
			},
		},
		"callback": map[string]any{
			"timeout": "5m",
		},
		"log": map[string]any{
			"level": "info",
		},
	}

	data, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(w io.Writer, path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Fprintf(w, "Validating: %s\n", path)

	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors (%d):\n", len(result.Errors))
		for _, err := range result.Errors {
			if err.Path != "" {
				fmt.Fprintf(w, "  - %s: %s\n", err.Path, err.Message)
			} else {
				fmt.Fprintf(w, "  - %s\n", err.Message)
			}
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(result.Warnings))
		for _, warn := range result.Warnings {
			if warn.Path != "" {
				fmt.Fprintf(w, "  - %s: %s\n", warn.Path, warn.Message)
			} else {
				fmt.Fprintf(w, "  - %s\n", warn.Message)
			}
		}
	}

	fmt.Fprintln(w)
	if len(result.Errors) == 0 && len(result.Warnings) == 0 {
		fmt.Fprintln(w, "Result: PASS")
	} else if len(result.Errors) == 0 {
		fmt.Fprintln(w, "Result: FAIL (warnings present)")
	} else {
		fmt.Fprintln(w, "Result: FAIL")
	}

	if len(result.Errors) > 0 || len(result.Warnings) > 0 {
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	}
	return nil
}
