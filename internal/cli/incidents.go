package cli

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"superloop/internal/config"
	"superloop/internal/storage"
)

func newIncidentsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "List persisted overrun and saturation incidents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sc, enabled, err := config.StorageFrom(cfg)
			if err != nil {
				return err
			}
			if !enabled {
				return errors.New("storage is disabled in config")
			}
			st, err := storage.Open(sc, cliLogger())
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer st.Close()

			list, err := st.RecentIncidents(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list incidents: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No incidents recorded.")
				return nil
			}

			fmt.Fprintf(out, "%-14s  %-8s  %-10s  %-12s  %10s  %s\n", "WHEN", "RUN", "KIND", "TASK", "TICK", "DETAIL")
			for _, in := range list {
				detail := ""
				if in.Kind == storage.KindOverrun {
					detail = fmt.Sprintf("measured %d > slice %d", in.Measured, in.Budget)
				}
				run := in.RunID
				if len(run) > 8 {
					run = run[:8]
				}
				fmt.Fprintf(out, "%-14s  %-8s  %-10s  %-12s  %10d  %s\n",
					humanize.Time(in.At), run, in.Kind, in.Task, in.Tick, detail)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "incidents to show, newest first")
	return cmd
}
