package engine

import "github.com/hiveq/hiveq/internal/wal"

func waState(s State) wal.State {
	switch s {
	case Ready:
		return wal.StateReady
	case Delayed:
		return wal.StateDelayed
	case Reserved:
		return wal.StateReserved
	case Buried:
		return wal.StateBuried
	default:
		return wal.StateInvalid
	}
}

func recordFor(j *Job, full bool) wal.Record {
	deadline := j.DeadlineAt
	if deadline == maxDeadline {
		deadline = 0
	}
	rec := wal.Record{
		ID:         j.ID,
		Delay:      uint32(j.Delay),
		TTR:        uint32(j.TTR),
		Priority:   j.Priority,
		CreatedAt:  uint64(j.CreatedAt),
		DeadlineAt: uint64(deadline),
		State:      waState(j.State),
		Reserves:   j.Reserves,
		Timeouts:   j.Timeouts,
		Releases:   j.Releases,
		Buries:     j.Buries,
		Kicks:      j.Kicks,
		Full:       full,
	}
	if full {
		rec.Tube = j.Tube
		rec.Body = j.Body
	}
	return rec
}

// persistFull writes the job's full snapshot; used only for its first
// record (put). Full records for recovered jobs are written by
// wal.Store.Rotate.
func (e *Engine) persistFull(j *Job) {
	if e.store == nil {
		return
	}
	if err := e.store.Append(recordFor(j, true)); err != nil {
		e.log.Error().Err(err).Uint64("job_id", j.ID).Msg("wal: append full record failed")
	}
}

// persistDelta writes a non-full mutation record (release, bury, touch,
// TTR timeout, kick).
func (e *Engine) persistDelta(j *Job) {
	if e.store == nil {
		return
	}
	if err := e.store.Append(recordFor(j, false)); err != nil {
		e.log.Error().Err(err).Uint64("job_id", j.ID).Msg("wal: append delta record failed")
	}
}

// persistInvalid writes the tombstone delta for a deleted job.
func (e *Engine) persistInvalid(id uint64) {
	if e.store == nil {
		return
	}
	rec := wal.Record{ID: id, State: wal.StateInvalid}
	if err := e.store.Append(rec); err != nil {
		e.log.Error().Err(err).Uint64("job_id", id).Msg("wal: append tombstone failed")
	}
}
