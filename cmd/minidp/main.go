package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgellow/minidp/internal"
	"github.com/dgellow/minidp/internal/config"
	"github.com/dgellow/minidp/internal/log"
)

var BuildVersion = "dev"

const defaultConfigPath = "minidp.yaml"

type rootOptions struct {
	configPath string
	dotenv     []string
	appOptions []internal.Option
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	_ = log.Close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand(appOpts ...internal.Option) *cobra.Command {
	opts := &rootOptions{appOptions: appOpts}
	root := &cobra.Command{
		Use:           "minidp",
		Short:         "OAuth2 authorization code + PKCE client for hosted identity providers",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (default "+defaultConfigPath+" when present)")
	root.PersistentFlags().StringSliceVar(&opts.dotenv, "env-file", nil, "additional .env files with MINIDP_IDP_* settings")

	root.AddCommand(
		newLoginCommand(opts),
		newCallbackCommand(opts),
		newStatusCommand(opts),
		newTokenCommand(opts),
		newRefreshCommand(opts),
		newLogoutCommand(opts),
		newConfigCommand(),
		newVersionCommand(),
	)
	return root
}

// loadConfig reads the config file when one is given or present in the
// working directory; otherwise settings come from the environment. Storage
// not configured explicitly goes to files under stateDir.
func (o *rootOptions) loadConfig() (config.Config, error) {
	path := o.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	dir, err := stateDir()
	if err != nil {
		return config.Config{}, err
	}
	prefill := config.FileStorageDefaults(dir)

	var cfg config.Config
	if path == "" {
		prefill(&cfg)
		config.ApplyDefaults(&cfg)
		log.LogDebugWithFields("cli", "No config file, using environment", map[string]any{
			"stateDir": dir,
		})
	} else {
		loaded, err := config.LoadWithDefaults(path, prefill)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	applyLogConfig(cfg.Log)
	return cfg, nil
}

// stateDir is where tokens and the pending login live between
// invocations unless the config file says otherwise
func stateDir() (string, error) {
	if dir := os.Getenv("MINIDP_STATE_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(base, "minidp"), nil
}

func applyLogConfig(c config.LogConfig) {
	if c.Level != "" && os.Getenv("LOG_LEVEL") == "" {
		if err := log.SetLogLevel(c.Level); err != nil {
			log.LogWarnWithFields("cli", "Ignoring invalid log level", map[string]any{
				"level": c.Level,
			})
		}
	}
	if c.Format != "" && os.Getenv("LOG_FORMAT") == "" {
		log.SetFormat(c.Format)
	}
	if c.File != "" && os.Getenv("LOG_FILE") == "" {
		log.EnableFile(log.FileOptions{Path: c.File, MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28})
	}
}

// withApp builds the application for one command and closes it afterwards
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *internal.MiniDP) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	appOpts := append([]internal.Option(nil), o.appOptions...)
	if len(o.dotenv) > 0 {
		appOpts = append(appOpts, internal.WithDotEnv(o.dotenv...))
	}

	ctx := cmd.Context()
	app, err := internal.NewMiniDP(ctx, cfg, appOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			log.LogWarnWithFields("cli", "Failed to close storage", map[string]any{
				"error": cerr.Error(),
			})
		}
	}()
	return fn(ctx, app)
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
