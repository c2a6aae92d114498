package engine

import "sort"

// GlobalStats is the snapshot returned by the stats verb.
type GlobalStats struct {
	JobsReady    int
	JobsDelayed  int
	JobsReserved int
	JobsBuried   int
	JobsTotal    uint64

	Tubes int

	SessionsTotal    int
	SessionsWaiting  int
	SessionsWorking  int

	CmdCounts map[string]uint64

	JobTimeouts uint64
	UptimeSec   int64
}

// TubeStats is the snapshot returned by stats-tube.
type TubeStats struct {
	Name          string
	JobsReady     int
	JobsDelayed   int
	JobsReserved  int
	JobsBuried    int
	JobsTotal     uint64
	Using         int
	Watching      int
	Waiting       int
	Paused        bool
	CmdDelete     uint32
	CmdPauseTube  uint32
	Pauses        uint32
}

// JobStats is the snapshot returned by stats-job.
type JobStats struct {
	ID        uint64
	Tube      string
	State     State
	Priority  uint32
	Age       int64
	Delay     int64
	TTR       int64
	TimeLeft  int64
	Reserves  uint32
	Timeouts  uint32
	Releases  uint32
	Buries    uint32
	Kicks     uint32
}

// Stats returns a global snapshot of the engine.
func (e *Engine) Stats(sessionID string) (GlobalStats, ErrKind) {
	res := e.Submit(func() Result {
		e.incrCmd("stats")
		_, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}

		g := GlobalStats{
			JobsTotal:   e.totalJobs,
			Tubes:       len(e.tubes),
			JobTimeouts: e.jobTimeouts,
			UptimeSec:   (e.now() - e.startedAt) / 1000,
			CmdCounts:   make(map[string]uint64, len(e.cmdCounts)),
		}
		for _, j := range e.jobs {
			switch j.State {
			case Ready:
				g.JobsReady++
			case Delayed:
				g.JobsDelayed++
			case Reserved:
				g.JobsReserved++
			case Buried:
				g.JobsBuried++
			}
		}
		for _, s := range e.sessions {
			g.SessionsTotal++
			switch s.State {
			case Waiting:
				g.SessionsWaiting++
			case Working:
				g.SessionsWorking++
			}
		}
		for k, v := range e.cmdCounts {
			g.CmdCounts[k] = v
		}
		return ok(g)
	})
	if res.Err != ErrNone {
		return GlobalStats{}, res.Err
	}
	return res.Value.(GlobalStats), ErrNone
}

// StatsTube returns a snapshot of a single tube's counters.
func (e *Engine) StatsTube(sessionID, tube string) (TubeStats, ErrKind) {
	res := e.Submit(func() Result {
		e.incrCmd("stats-tube")
		_, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		t, found := e.tubes[tube]
		if !found {
			return fail(ErrNotFound)
		}
		ts := TubeStats{
			Name:         t.Name,
			JobsReady:    len(t.ready),
			JobsDelayed:  len(t.delay),
			JobsBuried:   t.buried.Len(),
			JobsTotal:    t.totalJobs,
			Waiting:      t.waitingList.Len(),
			Paused:       t.Paused,
			CmdDelete:    t.cmdDelete,
			CmdPauseTube: t.cmdPauseTube,
			Pauses:       t.Pauses,
		}
		for _, j := range e.jobs {
			if j.Tube == tube && j.State == Reserved {
				ts.JobsReserved++
			}
		}
		for _, s := range e.sessions {
			if s.Use == tube {
				ts.Using++
			}
			if s.Watch[tube] {
				ts.Watching++
			}
		}
		return ok(ts)
	})
	if res.Err != ErrNone {
		return TubeStats{}, res.Err
	}
	return res.Value.(TubeStats), ErrNone
}

// StatsJob returns a snapshot of a single job's counters.
func (e *Engine) StatsJob(sessionID string, id uint64) (JobStats, ErrKind) {
	res := e.Submit(func() Result {
		e.incrCmd("stats-job")
		_, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		job, found := e.jobs[id]
		if !found {
			return fail(ErrNotFound)
		}
		now := e.now()
		js := JobStats{
			ID:       job.ID,
			Tube:     job.Tube,
			State:    job.State,
			Priority: job.Priority,
			Age:      (now - job.CreatedAt) / 1000,
			Delay:    job.Delay,
			TTR:      job.TTR,
			Reserves: job.Reserves,
			Timeouts: job.Timeouts,
			Releases: job.Releases,
			Buries:   job.Buries,
			Kicks:    job.Kicks,
		}
		switch job.State {
		case Delayed, Reserved:
			if job.DeadlineAt == maxDeadline {
				js.TimeLeft = -1
			} else {
				left := (job.DeadlineAt - now) / 1000
				if left < 0 {
					left = 0
				}
				js.TimeLeft = left
			}
		}
		return ok(js)
	})
	if res.Err != ErrNone {
		return JobStats{}, res.Err
	}
	return res.Value.(JobStats), ErrNone
}

// ListTubes returns every tube name, sorted.
func (e *Engine) ListTubes(sessionID string) ([]string, ErrKind) {
	res := e.Submit(func() Result {
		e.incrCmd("list-tubes")
		_, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		names := make([]string, 0, len(e.tubes))
		for name := range e.tubes {
			names = append(names, name)
		}
		sort.Strings(names)
		return ok(names)
	})
	if res.Err != ErrNone {
		return nil, res.Err
	}
	return res.Value.([]string), ErrNone
}

// ListTubeUsed returns the tube the session currently uses.
func (e *Engine) ListTubeUsed(sessionID string) (string, ErrKind) {
	res := e.Submit(func() Result {
		e.incrCmd("list-tube-used")
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		return ok(sess.Use)
	})
	if res.Err != ErrNone {
		return "", res.Err
	}
	return res.Value.(string), ErrNone
}

// ListTubesWatched returns every tube the session watches, sorted.
func (e *Engine) ListTubesWatched(sessionID string) ([]string, ErrKind) {
	res := e.Submit(func() Result {
		e.incrCmd("list-tubes-watched")
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		names := make([]string, 0, len(sess.Watch))
		for name := range sess.Watch {
			names = append(names, name)
		}
		sort.Strings(names)
		return ok(names)
	})
	if res.Err != ErrNone {
		return nil, res.Err
	}
	return res.Value.([]string), ErrNone
}
