package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"superloop/internal/config"
	"superloop/internal/sched"
	"superloop/internal/tasks"

	logx "superloop/pkg/logx"
)

// Plan is the static view of a config: what Build would produce, plus a slot
// table for inspection even when the configured mode does not use one.
type Plan struct {
	Schedule sched.Schedule
	Tasks    []sched.TaskSnapshot
	// Slots is Schedule's table, or one materialized just for display.
	Slots      []sched.Slot
	Collisions []sched.Collision
	// SlotsOmitted is set when the table would not fit in MaxSlots.
	SlotsOmitted bool
	Mode         string
}

// MakePlan builds the schedule for cfg without starting anything.
func MakePlan(cfg *config.Config) (Plan, error) {
	env := tasks.Env{
		Out:    io.Discard,
		Log:    logx.Nop(),
		Notify: func(bool, string) (bool, error) { return false, nil },
	}
	s, sc, err := Build(cfg, env, nil, logx.Nop())
	if err != nil {
		return Plan{}, err
	}
	snap := s.Snapshot()
	p := Plan{Schedule: sc, Tasks: snap.Tasks, Mode: snap.Mode}

	p.Slots = sc.Slots()
	p.Collisions = sc.Collisions()
	if len(p.Slots) == 0 {
		params := make([]sched.TaskParams, len(snap.Tasks))
		for i, t := range snap.Tasks {
			params[i] = sched.TaskParams{Period: t.Period, Slice: t.Slice, Offset: t.Offset}
		}
		full, err := sched.Build(params, sched.BuildOptions{Offsets: sched.OffsetsExplicit, Slots: true})
		switch {
		case errors.Is(err, sched.ErrSlotTableFull):
			p.SlotsOmitted = true
		case err != nil:
			return Plan{}, err
		default:
			p.Slots = full.Slots()
			p.Collisions = full.Collisions()
		}
	}
	return p, nil
}

var (
	planTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	planLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	planWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	planBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// WritePlan renders p for a terminal.
func WritePlan(w io.Writer, p Plan) error {
	sc := p.Schedule
	summary := []string{
		planTitle.Render("schedule"),
		fmt.Sprintf("%s %s", planLabel.Render("mode       "), p.Mode),
		fmt.Sprintf("%s %s ticks", planLabel.Render("hyperperiod"), humanize.Comma(int64(sc.Hyperperiod))),
		fmt.Sprintf("%s %s of %s ticks (%s%%)", planLabel.Render("busy       "),
			humanize.Comma(int64(sc.BusyTicks)), humanize.Comma(int64(sc.Hyperperiod)),
			humanize.FtoaWithDigits(sc.Utilization()*100, 1)),
	}
	if !sc.Schedulable() {
		summary = append(summary, planWarn.Render("over-utilized: slices exceed the hyperperiod"))
	}

	taskLines := []string{planTitle.Render("tasks (dispatch order)")}
	taskLines = append(taskLines, planLabel.Render(fmt.Sprintf("%-3s %-12s %8s %6s %7s %5s", "#", "name", "period", "slice", "offset", "runs")))
	for _, h := range sc.Order() {
		t := p.Tasks[h]
		taskLines = append(taskLines, fmt.Sprintf("%-3d %-12s %8d %6d %7d %5d",
			t.Handle, t.Name, t.Period, t.Slice, t.Offset, sc.Hyperperiod/t.Period))
	}

	slotLines := []string{planTitle.Render("slots")}
	switch {
	case p.SlotsOmitted:
		slotLines = append(slotLines, planWarn.Render(fmt.Sprintf("more than %d instances per hyperperiod; table omitted", sched.MaxSlots)))
	default:
		for _, sl := range p.Slots {
			slotLines = append(slotLines, fmt.Sprintf("%8d  +%-4d %s", sl.Start, sl.Duration, p.Tasks[sl.Task].Name))
		}
	}

	if len(p.Collisions) > 0 {
		slotLines = append(slotLines, "", planWarn.Render(fmt.Sprintf("%d collisions", len(p.Collisions))))
		for _, c := range p.Collisions {
			slotLines = append(slotLines, fmt.Sprintf("  %s@%d overlaps %s@%d",
				p.Tasks[c.A.Task].Name, c.A.Start, p.Tasks[c.B.Task].Name, c.B.Start))
		}
	}

	out := lipgloss.JoinVertical(lipgloss.Left,
		planBox.Render(strings.Join(summary, "\n")),
		planBox.Render(strings.Join(taskLines, "\n")),
		planBox.Render(strings.Join(slotLines, "\n")),
	)
	_, err := fmt.Fprintln(w, out)
	return err
}
