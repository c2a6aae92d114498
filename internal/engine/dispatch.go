package engine

import "math"

// maxDeadline is the sentinel used for a TTR=0 reservation, which must
// never be treated as expired by the TTR-expiry sweep.
const maxDeadline = math.MaxInt64

// pendingReserve is returned from the engine transaction when a reserve
// could not be satisfied immediately; the calling goroutine (outside the
// engine loop) waits on sess.waiterCh for the eventual outcome.
type pendingReserve struct {
	sess *Session
}

func lessJob(a, b *Job) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.ID < b.ID
}

// selectTopReady performs a k-way selection: among every watched,
// unpaused tube, take the head of its ready set, then pick the lowest
// of those heads.
func (e *Engine) selectTopReady(sess *Session) *Job {
	var best *Job
	for name := range sess.Watch {
		t, ok := e.tubes[name]
		if !ok || t.Paused {
			continue
		}
		head := t.peekReady()
		if head == nil {
			continue
		}
		if best == nil || lessJob(head, best) {
			best = head
		}
	}
	return best
}

// clearWaiting removes sess from every waiting list it currently sits
// in, wherever that is. It does not change sess.State; callers set the
// state appropriate to why they're clearing it.
func (e *Engine) clearWaiting(sess *Session) {
	for name, elem := range sess.waitingElems {
		if t, ok := e.tubes[name]; ok {
			t.waitingList.Remove(elem)
		}
		delete(sess.waitingElems, name)
	}
}

// reserveJobFor performs the ready/buried/delayed -> reserved transition
// for job on behalf of sess. The caller must already have removed job
// from whatever container held it.
func (e *Engine) reserveJobFor(sess *Session, job *Job) {
	wasWaiting := sess.State == Waiting
	job.State = Reserved
	job.Reserver = sess
	if job.TTR == 0 {
		job.DeadlineAt = maxDeadline
	} else {
		job.DeadlineAt = e.now() + job.TTR*1000
	}
	job.Reserves++

	sess.Reserved[job.ID] = job
	e.clearWaiting(sess)
	sess.State = Working
	sess.IncomingJob = job

	e.persistDelta(job)

	// Only a session parked in a blocking reserve has a goroutine reading
	// waiterCh; an immediate reservation is returned directly instead.
	if wasWaiting && sess.waiterCh != nil {
		select {
		case sess.waiterCh <- waiterResult{job: job}:
		default:
		}
	}
}

// dispatchOnce pairs the head of t's ready set with the head of its
// waiting list, if both are non-empty and t is not paused. It reports
// whether a pairing was made.
func (e *Engine) dispatchOnce(t *Tube) bool {
	if t.Paused {
		return false
	}
	job := t.peekReady()
	if job == nil {
		return false
	}
	elem := t.waitingList.Front()
	if elem == nil {
		return false
	}
	sess := elem.Value.(*Session)
	t.waitingList.Remove(elem)
	delete(sess.waitingElems, t.Name)
	t.removeReady(job)
	e.reserveJobFor(sess, job)
	return true
}

// drainTube pairs waiting sessions with ready jobs until one side runs
// out; used whenever a batch of jobs may have entered ready at once
// (kick, delay expiry sweep, pause expiry) as well as the single-job
// case (put, release, TTR expiry, session close).
func (e *Engine) drainTube(t *Tube) {
	for e.dispatchOnce(t) {
	}
}
