package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"superloop/internal/app"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print hyperperiod, offsets, utilization and slot table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := app.MakePlan(cfg)
			if err != nil {
				return fmt.Errorf("build schedule: %w", err)
			}
			return app.WritePlan(cmd.OutOrStdout(), p)
		},
	}
}
