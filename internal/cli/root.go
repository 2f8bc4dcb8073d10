// Package cli implements the studio command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adstudio/studio/internal/app/studio"
	"github.com/adstudio/studio/internal/daemon"
	"github.com/adstudio/studio/internal/infra/logging"
)

var (
	configPath string
	userFlag   string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "Campaign studio orchestration layer",
	Long: `studio runs marketing generation tools against the studio backend,
keeps the credit balance reconciled, and maintains the content calendar.

Run 'studio serve' for the local API used by the dashboard, or use the
subcommands for one-shot operations.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $STUDIO_HOME/config.toml)")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "Act as this user id (overrides [session].user_id)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig resolves the config file and flag overrides.
func loadConfig() (daemon.Config, *logrus.Logger, error) {
	path := configPath
	if path == "" {
		path = daemon.ConfigPath()
	}
	cfg, err := daemon.LoadConfig(path)
	if err != nil {
		return cfg, nil, err
	}
	if userFlag != "" {
		cfg.Session.UserID = userFlag
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format), nil
}

// withApp builds the app for a one-shot command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *studio.App) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := cfg.Options(log)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := studio.New(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireUser(app *studio.App) (string, error) {
	id := app.Session.UserID()
	if id == "" {
		return "", fmt.Errorf("no user: set [session].user_id, STUDIO_USER_ID or --user")
	}
	return id, nil
}
