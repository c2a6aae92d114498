package engine

import "container/list"

// SessionType is informational: the engine never hard-enforces it.
type SessionType int

const (
	Producer SessionType = iota
	Worker
)

// SessionState tracks a session's reserve lifecycle.
type SessionState int

const (
	Idle SessionState = iota
	Waiting
	Working
)

// Session is one client connection, or one embedded caller.
type Session struct {
	ID   string
	Type SessionType

	Use   string
	Watch map[string]bool

	State      SessionState
	DeadlineAt int64 // ms since epoch; only meaningful when HasDeadline
	HasDeadline bool

	IncomingJob *Job
	Reserved    map[uint64]*Job

	// waitingElems tracks, per watched tube, the element holding this
	// session in that tube's waiting list, so a dispatch or cancellation
	// can remove it from every list it sits in without a scan.
	waitingElems map[string]*list.Element

	// waiterCh delivers the outcome of a blocking reserve to the
	// goroutine that issued it, without that goroutine ever touching
	// engine state directly.
	waiterCh chan waiterResult
}

type waiterResult struct {
	job       *Job
	timedOut  bool
	cancelled bool // session was closed out from under a pending reserve
}

func newSession(id string, typ SessionType) *Session {
	return &Session{
		ID:           id,
		Type:         typ,
		Use:          DefaultTube,
		Watch:        map[string]bool{DefaultTube: true},
		State:        Idle,
		Reserved:     make(map[uint64]*Job),
		waitingElems: make(map[string]*list.Element),
	}
}
