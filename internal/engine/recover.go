package engine

import "github.com/hiveq/hiveq/internal/wal"

func jobState(s wal.State) State {
	switch s {
	case wal.StateReady:
		return Ready
	case wal.StateDelayed:
		return Delayed
	case wal.StateReserved:
		return Reserved
	case wal.StateBuried:
		return Buried
	default:
		return Invalid
	}
}

// recover replays the WAL, rebuilds every tube's containers from the
// surviving jobs, advances the id counter past every recovered id, and
// rotates the log to fresh, self-sufficient files.
func (e *Engine) recover() error {
	recs, err := e.store.Replay()
	if err != nil {
		return err
	}

	var maxID uint64
	for id, rec := range recs {
		if id > maxID {
			maxID = id
		}
		j := &Job{
			ID:         rec.ID,
			Priority:   rec.Priority,
			Delay:      int64(rec.Delay),
			TTR:        int64(rec.TTR),
			CreatedAt:  int64(rec.CreatedAt),
			DeadlineAt: int64(rec.DeadlineAt),
			State:      jobState(rec.State),
			Tube:       rec.Tube,
			Body:       rec.Body,
			Reserves:   rec.Reserves,
			Timeouts:   rec.Timeouts,
			Releases:   rec.Releases,
			Buries:     rec.Buries,
			Kicks:      rec.Kicks,
			heapIndex:  -1,
		}
		if j.State != Delayed {
			// A recovered reserved job is always demoted to ready by
			// Replay; only a delayed job's DeadlineAt means anything here.
			j.DeadlineAt = 0
		}
		e.jobs[j.ID] = j
		t := e.getTube(j.Tube)
		t.totalJobs++
		switch j.State {
		case Ready:
			t.pushReady(j)
		case Delayed:
			t.pushDelay(j)
		case Buried:
			t.pushBuried(j)
		}
	}
	if maxID >= e.nextID {
		e.nextID = maxID + 1
	}

	return e.store.Rotate(recs)
}
