package cli

import (
	"github.com/spf13/cobra"

	"github.com/adstudio/studio/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Override [api].host")
	serveCmd.Flags().Int("port", 0, "Override [api].port")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local studio API",
	Long: `Serve the studio API for dashboard clients. The credit balance is
re-polled on [ledger].refresh_interval while a user is signed in.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.API.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.API.Port = port
	}
	d, err := daemon.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	return d.Run(cmd.Context())
}
