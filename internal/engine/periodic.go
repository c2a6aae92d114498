package engine

// sweep runs the four time-driven transitions described by the job
// lifecycle: delay expiry, TTR expiry, pause expiry, and reserve-timeout
// expiry. It always runs inside the engine's single transaction
// goroutine, so none of it needs further synchronization.
func (e *Engine) sweep() {
	now := e.now()
	e.sweepDelays(now)
	e.sweepReservations(now)
	e.sweepPauses(now)
	e.sweepReserveTimeouts(now)
	e.refreshMetrics()
}

// sweepDelays moves every delayed job whose deadline has passed into its
// tube's ready set, then tries to pair it off with a waiting worker.
func (e *Engine) sweepDelays(now int64) {
	for _, t := range e.tubes {
		moved := false
		for {
			job := t.peekDelay()
			if job == nil || job.DeadlineAt > now {
				break
			}
			t.removeDelay(job)
			job.State = Ready
			job.DeadlineAt = 0
			t.pushReady(job)
			e.persistDelta(job)
			moved = true
		}
		if moved {
			e.drainTube(t)
		}
	}
}

// sweepReservations returns every job whose TTR has elapsed back to
// ready, stripping it from its reserver. Jobs reserved with TTR=0 carry
// the maxDeadline sentinel and are never picked up here.
func (e *Engine) sweepReservations(now int64) {
	for _, job := range e.jobs {
		if job.State != Reserved || job.DeadlineAt > now {
			continue
		}
		sess := job.Reserver
		if sess != nil {
			delete(sess.Reserved, job.ID)
		}
		job.Reserver = nil
		job.State = Ready
		job.DeadlineAt = 0
		job.Timeouts++
		e.jobTimeouts++
		if e.metrics != nil {
			e.metrics.ObserveTimeout()
		}
		t := e.getTube(job.Tube)
		t.pushReady(job)
		e.persistDelta(job)
		e.drainTube(t)
	}
}

// sweepPauses unpauses any tube whose pause has expired and immediately
// tries to dispatch whatever is already waiting on it.
func (e *Engine) sweepPauses(now int64) {
	for _, t := range e.tubes {
		if t.Paused && t.PauseDeadline <= now {
			t.Paused = false
			e.drainTube(t)
		}
	}
}

// sweepReserveTimeouts wakes every session whose reserve-with-timeout
// has expired without being satisfied.
func (e *Engine) sweepReserveTimeouts(now int64) {
	for _, sess := range e.sessions {
		if sess.State != Waiting || !sess.HasDeadline || sess.DeadlineAt > now {
			continue
		}
		e.clearWaiting(sess)
		sess.State = Idle
		if sess.waiterCh != nil {
			select {
			case sess.waiterCh <- waiterResult{timedOut: true}:
			default:
			}
		}
	}
}

// refreshMetrics recomputes the Prometheus gauges from live state. Cheap
// relative to the sweep period at the scale this engine targets, and
// keeps every gauge trivially consistent without touching every mutation
// site individually.
func (e *Engine) refreshMetrics() {
	if e.metrics == nil {
		return
	}
	jobCounts := map[string]int{"ready": 0, "delayed": 0, "reserved": 0, "buried": 0}
	for _, j := range e.jobs {
		jobCounts[j.State.String()]++
	}
	e.metrics.SetJobsByState(jobCounts)

	sessCounts := map[string]int{"idle": 0, "waiting": 0, "working": 0}
	for _, s := range e.sessions {
		switch s.State {
		case Idle:
			sessCounts["idle"]++
		case Waiting:
			sessCounts["waiting"]++
		case Working:
			sessCounts["working"]++
		}
	}
	e.metrics.SetSessionsByState(sessCounts)

	paused := 0
	for _, t := range e.tubes {
		if t.Paused {
			paused++
		}
	}
	e.metrics.SetTubeCounts(len(e.tubes), paused)
}
