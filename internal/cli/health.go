package cli

import (
	"fmt"
	"time"

	"anthem-kiosk/internal/backend"
	"anthem-kiosk/internal/config"
	"github.com/spf13/cobra"
)

// NewHealthCmd probes the generation backend. The welcome screen stays
// disabled while this fails, so operators get the same check from the
// shell.
func NewHealthCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the generation backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Backend.URL == "" {
				return fmt.Errorf("backend url not configured")
			}
			client := backend.New(cfg.Backend.URL, config.Duration(cfg.Backend.Timeout, 15*time.Second), nil)
			if !client.Health(cmd.Context()) {
				return fmt.Errorf("backend unreachable: %s", cfg.Backend.URL)
			}
			fmt.Println("ok")
			return nil
		},
	}
}
