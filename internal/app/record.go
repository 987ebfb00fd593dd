package app

import (
	"context"
	"time"

	"superloop/internal/eventbus"
	"superloop/internal/sched"
	"superloop/internal/storage"

	logx "superloop/pkg/logx"
)

// incidentFrom maps a scheduler event to a storage record. ok is false for
// events that are not incidents.
func incidentFrom(e eventbus.Event, runID string) (storage.Incident, bool) {
	switch d := e.Data.(type) {
	case sched.SliceOverrun:
		return storage.Incident{
			RunID:    runID,
			At:       e.Time,
			Kind:     storage.KindOverrun,
			Task:     d.Name,
			Handle:   int(d.Task),
			Tick:     d.Start,
			Measured: d.Measured,
			Budget:   d.Budget,
		}, true
	case sched.PendingSaturation:
		return storage.Incident{
			RunID:  runID,
			At:     e.Time,
			Kind:   storage.KindSaturation,
			Task:   d.Name,
			Handle: int(d.Task),
			Tick:   d.At,
		}, true
	default:
		return storage.Incident{}, false
	}
}

// recordIncidents persists incident events until ctx is done or events closes.
func recordIncidents(ctx context.Context, events <-chan eventbus.Event, st storage.Store, runID string, log logx.Logger) {
	var failed uint64
	write := func(parent context.Context, e eventbus.Event) {
		in, ok := incidentFrom(e, runID)
		if !ok {
			return
		}
		wctx, cancel := context.WithTimeout(parent, time.Second)
		err := st.AppendIncident(wctx, in)
		cancel()
		if err != nil {
			failed++
			// First failure and then every 100th.
			if failed%100 == 1 {
				log.Warn("incident write failed", logx.Err(err), logx.Uint64("failed", failed))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			// Keep what is already buffered.
			for {
				select {
				case e, ok := <-events:
					if !ok {
						return
					}
					write(context.Background(), e)
				default:
					return
				}
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			write(ctx, e)
		}
	}
}
