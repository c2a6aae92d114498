package engine

// doReserve implements reserve / reserve-with-timeout inside the engine
// transaction. timeoutMs nil means block forever (plain reserve); a
// pointer to 0 means never block (reserve-with-timeout 0); any other
// value blocks up to that many milliseconds.
//
// On immediate success it returns ok(*Job). When it must block it
// enqueues sess onto every watched tube's waiting list and returns
// ok(pendingReserve{sess}); the caller reads sess.waiterCh outside the
// transaction to learn the outcome.
func (e *Engine) doReserve(sess *Session, timeoutMs *int64) Result {
	if job := e.selectTopReady(sess); job != nil {
		t := e.getTube(job.Tube)
		t.removeReady(job)
		e.reserveJobFor(sess, job)
		return ok(job)
	}

	if timeoutMs != nil && *timeoutMs == 0 {
		return fail(ErrTimedOut)
	}

	sess.State = Waiting
	if timeoutMs == nil {
		sess.HasDeadline = false
	} else {
		sess.HasDeadline = true
		sess.DeadlineAt = e.now() + *timeoutMs
	}
	if sess.waiterCh == nil {
		sess.waiterCh = make(chan waiterResult, 1)
	}
	for name := range sess.Watch {
		t := e.getTube(name)
		sess.waitingElems[name] = t.waitingList.PushBack(sess)
	}
	return ok(pendingReserve{sess: sess})
}
