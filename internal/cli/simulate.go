package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"superloop/internal/app"
)

func newSimulateCmd() *cobra.Command {
	var (
		ticks int64
		echo  bool
		show  int
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Step the schedule through virtual ticks and report overruns",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var taskOut io.Writer
			if echo {
				taskOut = out
			}
			res, err := app.Simulate(cfg, ticks, taskOut, cliLogger())
			if err != nil {
				return err
			}

			snap := res.Snapshot
			fmt.Fprintf(out, "simulated %s ticks (%s hyperperiods), mode %s, utilization %.1f%%\n\n",
				humanize.Comma(int64(snap.Now)),
				humanize.FtoaWithDigits(float64(snap.Now)/float64(res.Schedule.Hyperperiod), 2),
				snap.Mode, snap.Utilization*100)

			fmt.Fprintf(out, "%-12s  %8s  %8s  %8s  %8s  %12s\n", "TASK", "RUNS", "OVERRUNS", "DROPPED", "SATURATED", "MAX MEASURED")
			for _, t := range snap.Tasks {
				fmt.Fprintf(out, "%-12s  %8s  %8s  %8s  %8s  %12d\n", t.Name,
					humanize.Comma(int64(t.Runs)), humanize.Comma(int64(t.Overruns)),
					humanize.Comma(int64(t.Dropped)), humanize.Comma(int64(t.Saturations)), t.MaxMeasured)
			}

			if n := min(show, len(res.Overruns)); n > 0 {
				fmt.Fprintf(out, "\nfirst %d overruns:\n", n)
				for _, o := range res.Overruns[:n] {
					fmt.Fprintf(out, "  tick %-10d %-12s measured %d > slice %d\n", o.Start, o.Name, o.Measured, o.Budget)
				}
			}
			if res.Truncated {
				fmt.Fprintf(out, "\n(only the first %d reports were kept)\n", app.MaxRecorded)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&ticks, "ticks", 10000, "virtual ticks to simulate")
	cmd.Flags().BoolVar(&echo, "echo", false, "print task output (heartbeat lines)")
	cmd.Flags().IntVar(&show, "show", 10, "overruns to list")
	return cmd
}
