package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/grafana/rbac-actions/actions"
	"github.com/grafana/rbac-actions/auth"
	"github.com/grafana/rbac-actions/types"
)

type output struct {
	AllowedActions actions.AllowedActions `json:"allowedActions"`
	Permissions    []types.Permission     `json:"permissions"`
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		cfg        config
		configFile string
		locale     string
		timeout    time.Duration
	)

	fs := flag.NewFlagSet("allowedactions", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	root := &cobra.Command{
		Use:          "allowedactions <permissions-file>",
		Short:        "Resolve which actions of a permissions file the authenticated user is allowed to perform",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return nil
			}
			return cfg.load(configFile, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
			defer cancelTimeout()

			res, err := run(ctx, cfg, args[0], locale)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	root.Flags().AddGoFlagSet(fs)
	root.Flags().StringVarP(&configFile, "config", "c", "", "YAML configuration file.")
	root.Flags().StringVar(&locale, "locale", "", "Locale permissions are checked for.")
	root.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall time allowed to resolve the permissions.")

	return root
}

func run(ctx context.Context, cfg config, path, locale string) (*output, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	in, err := loadPermissions(path)
	if err != nil {
		return nil, fmt.Errorf("loading permissions: %w", err)
	}

	client, err := auth.NewClient(cfg.Client, auth.WithClientLogger(logger))
	if err != nil {
		return nil, err
	}

	provider := auth.NewProvider(client, auth.WithProviderLogger(logger))
	if err := provider.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("loading user permissions: %w", err)
	}

	tracker := actions.NewTracker(provider, in,
		actions.WithLogger(logger),
		actions.WithLocaleDebounce(cfg.Actions.LocaleDebounce),
		actions.WithInitialLocale(locale),
	)
	defer tracker.Close()

	res, err := tracker.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, fmt.Errorf("checking permissions: %w", res.Err)
	}

	granted := 0
	for _, allowed := range res.AllowedActions {
		if allowed {
			granted++
		}
	}
	_ = level.Info(logger).Log("msg", "resolved allowed actions", "actions", len(res.AllowedActions), "allowed", granted)

	return &output{AllowedActions: res.AllowedActions, Permissions: res.Permissions}, nil
}
