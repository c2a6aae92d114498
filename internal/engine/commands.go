package engine

// This file implements the beanstalkd verb surface as exported Engine
// methods. Each method submits one closure to the engine's transaction
// goroutine via Submit and unwraps the Result into Go-idiomatic return
// values; nothing here touches engine state directly.

func (e *Engine) lookupSession(id string) (*Session, ErrKind) {
	s, found := e.sessions[id]
	if !found {
		return nil, ErrInternal
	}
	return s, ErrNone
}

// CreateSession registers a new session, idempotently.
func (e *Engine) CreateSession(id string, typ SessionType) {
	e.Submit(func() Result {
		if _, exists := e.sessions[id]; !exists {
			e.sessions[id] = newSession(id, typ)
		}
		return Result{}
	})
}

// CloseSession tears down a session: every job it holds reserved goes
// back to ready, and it is removed from any waiting list it sits in.
func (e *Engine) CloseSession(id string) {
	e.Submit(func() Result {
		sess, found := e.sessions[id]
		if !found {
			return Result{}
		}
		e.releaseSessionJobs(sess)
		delete(e.sessions, id)
		return Result{}
	})
}

func (e *Engine) releaseSessionJobs(sess *Session) {
	for id, job := range sess.Reserved {
		job.State = Ready
		job.Reserver = nil
		job.DeadlineAt = 0
		t := e.getTube(job.Tube)
		t.pushReady(job)
		e.persistDelta(job)
		e.drainTube(t)
		delete(sess.Reserved, id)
	}
	e.clearWaiting(sess)
	sess.State = Idle
	sess.IncomingJob = nil

	// A goroutine may already be parked on sess.waiterCh from a pending
	// reserve (doReserve returned pendingReserve); wake it so closing
	// the session out from under it doesn't leak that goroutine.
	if sess.waiterCh != nil {
		select {
		case sess.waiterCh <- waiterResult{cancelled: true}:
		default:
		}
	}
}

// Quit is CloseSession plus command accounting, matching the other
// verbs' bookkeeping.
func (e *Engine) Quit(sessionID string) {
	e.Submit(func() Result {
		e.incrCmd("quit")
		sess, found := e.sessions[sessionID]
		if found {
			e.releaseSessionJobs(sess)
			delete(e.sessions, sessionID)
		}
		return Result{}
	})
}

// Put creates a job in the session's used tube and returns its id.
func (e *Engine) Put(sessionID string, priority uint32, delay, ttr int64, body []byte) (uint64, ErrKind) {
	res := e.Submit(func() Result {
		e.incrCmd("put")
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		if e.drain {
			return fail(ErrDraining)
		}
		id := e.allocID()
		now := e.now()
		job := &Job{
			ID:        id,
			Priority:  priority,
			Delay:     delay,
			TTR:       ttr,
			CreatedAt: now,
			Tube:      sess.Use,
			Body:      body,
			heapIndex: -1,
		}
		e.jobs[id] = job
		t := e.getTube(sess.Use)
		t.totalJobs++
		e.totalJobs++

		if delay > 0 {
			job.State = Delayed
			job.DeadlineAt = now + delay*1000
			t.pushDelay(job)
		} else {
			job.State = Ready
			t.pushReady(job)
		}
		e.persistFull(job)
		if job.State == Ready {
			e.drainTube(t)
		}
		if e.metrics != nil {
			e.metrics.ObservePut(t.Name)
		}
		return ok(id)
	})
	if res.Err != ErrNone {
		return 0, res.Err
	}
	return res.Value.(uint64), ErrNone
}

// Use sets the session's tube for subsequent Put calls, creating the
// tube if it doesn't exist yet.
func (e *Engine) Use(sessionID, tube string) ErrKind {
	res := e.Submit(func() Result {
		e.incrCmd("use")
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		e.getTube(tube)
		sess.Use = tube
		return ok(nil)
	})
	return res.Err
}

// Watch adds a tube to the session's watch list and returns the new
// watch-list size.
func (e *Engine) Watch(sessionID, tube string) (int, ErrKind) {
	res := e.Submit(func() Result {
		e.incrCmd("watch")
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		e.getTube(tube)
		sess.Watch[tube] = true
		return ok(len(sess.Watch))
	})
	if res.Err != ErrNone {
		return 0, res.Err
	}
	return res.Value.(int), ErrNone
}

// Ignore removes a tube from the session's watch list. Ignoring the
// session's last watched tube fails with ErrNotIgnored.
func (e *Engine) Ignore(sessionID, tube string) (int, ErrKind) {
	res := e.Submit(func() Result {
		e.incrCmd("ignore")
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		if _, watching := sess.Watch[tube]; watching && len(sess.Watch) == 1 {
			return fail(ErrNotIgnored)
		}
		delete(sess.Watch, tube)
		if elem, waiting := sess.waitingElems[tube]; waiting {
			if t, ok := e.tubes[tube]; ok {
				t.waitingList.Remove(elem)
			}
			delete(sess.waitingElems, tube)
		}
		return ok(len(sess.Watch))
	})
	if res.Err != ErrNone {
		return 0, res.Err
	}
	return res.Value.(int), ErrNone
}

// Reserve blocks until a job is available on one of the session's
// watched tubes.
func (e *Engine) Reserve(sessionID string) (*Job, ErrKind) {
	return e.reserve(sessionID, nil)
}

// ReserveWithTimeout blocks for at most timeoutSeconds; a value of 0
// never blocks at all.
func (e *Engine) ReserveWithTimeout(sessionID string, timeoutSeconds int64) (*Job, ErrKind) {
	ms := timeoutSeconds * 1000
	return e.reserve(sessionID, &ms)
}

func (e *Engine) reserve(sessionID string, timeoutMs *int64) (*Job, ErrKind) {
	cmdName := "reserve"
	if timeoutMs != nil {
		cmdName = "reserve-with-timeout"
	}

	var waitOn *Session
	res := e.Submit(func() Result {
		e.incrCmd(cmdName)
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		r := e.doReserve(sess, timeoutMs)
		if r.Err == ErrNone {
			if _, pending := r.Value.(pendingReserve); pending {
				waitOn = sess
			}
		}
		return r
	})
	if res.Err != ErrNone {
		return nil, res.Err
	}
	if waitOn != nil {
		wr := <-waitOn.waiterCh
		if wr.cancelled {
			return nil, ErrInternal
		}
		if wr.timedOut {
			return nil, ErrTimedOut
		}
		return wr.job, ErrNone
	}
	return res.Value.(*Job), ErrNone
}

// Delete removes a job outright. A caller may delete a job it has
// reserved, or any ready/buried job; delayed jobs must be kicked or
// allowed to expire first.
func (e *Engine) Delete(sessionID string, id uint64) ErrKind {
	res := e.Submit(func() Result {
		e.incrCmd("delete")
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		job, found := e.jobs[id]
		if !found {
			return fail(ErrNotFound)
		}
		t := e.getTube(job.Tube)
		switch job.State {
		case Ready:
			t.removeReady(job)
		case Buried:
			t.removeBuried(job)
		case Reserved:
			if job.Reserver != sess {
				return fail(ErrNotFound)
			}
			delete(sess.Reserved, job.ID)
		default:
			return fail(ErrNotFound)
		}
		t.cmdDelete++
		job.State = Invalid
		delete(e.jobs, id)
		e.persistInvalid(id)
		return ok(nil)
	})
	return res.Err
}

// Release returns a reserved job to ready (or delayed, if delay>0) with
// a possibly new priority.
func (e *Engine) Release(sessionID string, id uint64, priority uint32, delay int64) ErrKind {
	res := e.Submit(func() Result {
		e.incrCmd("release")
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		job, found := e.jobs[id]
		if !found || job.State != Reserved || job.Reserver != sess {
			return fail(ErrNotFound)
		}
		delete(sess.Reserved, id)
		job.Reserver = nil
		job.Priority = priority
		job.Releases++

		t := e.getTube(job.Tube)
		if delay > 0 {
			job.State = Delayed
			job.DeadlineAt = e.now() + delay*1000
			t.pushDelay(job)
		} else {
			job.State = Ready
			job.DeadlineAt = 0
			t.pushReady(job)
		}
		e.persistDelta(job)
		if job.State == Ready {
			e.drainTube(t)
		}
		return ok(nil)
	})
	return res.Err
}

// Bury moves a reserved job to its tube's buried list, outside of every
// priority/delay ordering, until kicked.
func (e *Engine) Bury(sessionID string, id uint64, priority uint32) ErrKind {
	res := e.Submit(func() Result {
		e.incrCmd("bury")
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		job, found := e.jobs[id]
		if !found || job.State != Reserved || job.Reserver != sess {
			return fail(ErrNotFound)
		}
		delete(sess.Reserved, id)
		job.Reserver = nil
		job.Priority = priority
		job.Buries++
		job.State = Buried
		job.DeadlineAt = 0
		e.getTube(job.Tube).pushBuried(job)
		e.persistDelta(job)
		return ok(nil)
	})
	return res.Err
}

// Touch extends a reserved job's TTR deadline from now.
func (e *Engine) Touch(sessionID string, id uint64) ErrKind {
	res := e.Submit(func() Result {
		e.incrCmd("touch")
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		job, found := e.jobs[id]
		if !found || job.State != Reserved || job.Reserver != sess {
			return fail(ErrNotFound)
		}
		if job.TTR == 0 {
			job.DeadlineAt = maxDeadline
		} else {
			job.DeadlineAt = e.now() + job.TTR*1000
		}
		e.persistDelta(job)
		return ok(nil)
	})
	return res.Err
}

// Kick moves up to bound jobs from buried (if any are buried) or else
// from delayed back to ready, and returns how many it moved.
func (e *Engine) Kick(sessionID string, bound int) (int, ErrKind) {
	res := e.Submit(func() Result {
		e.incrCmd("kick")
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		t := e.getTube(sess.Use)
		n := 0
		if t.peekBuried() != nil {
			for n < bound {
				job := t.popBuried()
				if job == nil {
					break
				}
				job.Kicks++
				job.State = Ready
				t.pushReady(job)
				e.persistDelta(job)
				n++
			}
		} else {
			for n < bound {
				job := t.peekDelay()
				if job == nil {
					break
				}
				t.removeDelay(job)
				job.Kicks++
				job.State = Ready
				job.DeadlineAt = 0
				t.pushReady(job)
				e.persistDelta(job)
				n++
			}
		}
		if n > 0 {
			e.drainTube(t)
		}
		return ok(n)
	})
	if res.Err != ErrNone {
		return 0, res.Err
	}
	return res.Value.(int), ErrNone
}

// KickJob kicks a single named job out of buried or delayed, regardless
// of which tube it belongs to.
func (e *Engine) KickJob(sessionID string, id uint64) ErrKind {
	res := e.Submit(func() Result {
		e.incrCmd("kick-job")
		_, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		job, found := e.jobs[id]
		if !found {
			return fail(ErrNotFound)
		}
		t := e.getTube(job.Tube)
		switch job.State {
		case Buried:
			t.removeBuried(job)
		case Delayed:
			t.removeDelay(job)
		default:
			return fail(ErrNotFound)
		}
		job.Kicks++
		job.State = Ready
		job.DeadlineAt = 0
		t.pushReady(job)
		e.persistDelta(job)
		e.drainTube(t)
		return ok(nil)
	})
	return res.Err
}

// PauseTube stops a tube from dispatching for timeoutSeconds.
func (e *Engine) PauseTube(sessionID, tube string, timeoutSeconds int64) ErrKind {
	res := e.Submit(func() Result {
		e.incrCmd("pause-tube")
		_, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		t := e.getTube(tube)
		t.Paused = true
		t.PauseDeadline = e.now() + timeoutSeconds*1000
		t.Pauses++
		t.cmdPauseTube++
		return ok(nil)
	})
	return res.Err
}

// Peek returns the job with the given id, in whatever state it's in.
func (e *Engine) Peek(sessionID string, id uint64) (*Job, ErrKind) {
	res := e.Submit(func() Result {
		e.incrCmd("peek")
		_, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		job, found := e.jobs[id]
		if !found {
			return fail(ErrNotFound)
		}
		return ok(job)
	})
	if res.Err != ErrNone {
		return nil, res.Err
	}
	return res.Value.(*Job), ErrNone
}

func (e *Engine) peekContainer(sessionID, cmdName string, pick func(*Tube) *Job) (*Job, ErrKind) {
	res := e.Submit(func() Result {
		e.incrCmd(cmdName)
		sess, ek := e.lookupSession(sessionID)
		if ek != ErrNone {
			return fail(ek)
		}
		job := pick(e.getTube(sess.Use))
		if job == nil {
			return fail(ErrNotFound)
		}
		return ok(job)
	})
	if res.Err != ErrNone {
		return nil, res.Err
	}
	return res.Value.(*Job), ErrNone
}

// PeekReady returns the head of the session's used tube's ready set.
func (e *Engine) PeekReady(sessionID string) (*Job, ErrKind) {
	return e.peekContainer(sessionID, "peek-ready", (*Tube).peekReady)
}

// PeekDelayed returns the soonest-due job in the session's used tube.
func (e *Engine) PeekDelayed(sessionID string) (*Job, ErrKind) {
	return e.peekContainer(sessionID, "peek-delayed", (*Tube).peekDelay)
}

// PeekBuried returns the oldest buried job in the session's used tube.
func (e *Engine) PeekBuried(sessionID string) (*Job, ErrKind) {
	return e.peekContainer(sessionID, "peek-buried", (*Tube).peekBuried)
}
