// Package engine implements the job-lifecycle core: the in-memory data
// model, the state machine, the priority-ordered ready queue with worker
// dispatch, the time-driven sweeps, and (optionally) the write-ahead log
// that makes the engine crash-recoverable. Each beanstalkd verb is an
// exported Engine method, and every call into engine state is
// serialized through a single engine goroutine.
package engine

import (
	"container/list"
	"time"

	cfclock "code.cloudfoundry.org/clock"
	"github.com/rs/zerolog"

	"github.com/hiveq/hiveq/internal/metrics"
	"github.com/hiveq/hiveq/internal/wal"
)

// Config controls engine construction.
type Config struct {
	Drain       bool
	SweepPeriod time.Duration
	Clock       cfclock.Clock
	Log         zerolog.Logger
	Metrics     *metrics.Collector
	WAL         *wal.Store // nil disables durability
}

type request struct {
	op   func() Result
	resp chan Result
}

// Engine owns all mutable queue state. It is safe for concurrent use:
// every public method submits a closure to the single engine goroutine
// and waits for its result.
type Engine struct {
	clock   cfclock.Clock
	log     zerolog.Logger
	metrics *metrics.Collector
	store   *wal.Store

	requests chan request
	stop     chan struct{}
	stopped  chan struct{}

	jobs     map[uint64]*Job
	tubes    map[string]*Tube
	sessions map[string]*Session
	nextID   uint64

	drain       bool
	startedAt   int64
	cmdCounts   map[string]uint64
	jobTimeouts uint64
	totalJobs   uint64

	sweepPeriod time.Duration
}

// New constructs an engine, replaying the WAL (if configured) before
// accepting commands.
func New(cfg Config) (*Engine, error) {
	if cfg.Clock == nil {
		cfg.Clock = cfclock.NewClock()
	}
	if cfg.SweepPeriod <= 0 {
		cfg.SweepPeriod = 200 * time.Millisecond
	}

	e := &Engine{
		clock:       cfg.Clock,
		log:         cfg.Log,
		metrics:     cfg.Metrics,
		store:       cfg.WAL,
		requests:    make(chan request, 64),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
		jobs:        make(map[uint64]*Job),
		tubes:       make(map[string]*Tube),
		sessions:    make(map[string]*Session),
		nextID:      1,
		drain:       cfg.Drain,
		startedAt:   nowMillis(cfg.Clock),
		cmdCounts:   make(map[string]uint64),
		sweepPeriod: cfg.SweepPeriod,
	}
	e.tubes[DefaultTube] = newTube(DefaultTube)

	if e.store != nil {
		if err := e.recover(); err != nil {
			return nil, err
		}
	}

	go e.run()
	go e.tick()
	return e, nil
}

func nowMillis(c cfclock.Clock) int64 {
	return c.Now().UnixNano() / int64(time.Millisecond)
}

func (e *Engine) now() int64 { return nowMillis(e.clock) }

// Submit runs op on the engine goroutine and returns its result. Safe
// to call from any goroutine.
func (e *Engine) Submit(op func() Result) Result {
	resp := make(chan Result, 1)
	select {
	case e.requests <- request{op: op, resp: resp}:
	case <-e.stopped:
		return fail(ErrInternal)
	}
	select {
	case r := <-resp:
		return r
	case <-e.stopped:
		return fail(ErrInternal)
	}
}

// submitFireAndForget is used by the periodic ticker, which does not
// read a response.
func (e *Engine) submitFireAndForget(op func() Result) {
	select {
	case e.requests <- request{op: op, resp: make(chan Result, 1)}:
	case <-e.stopped:
	}
}

func (e *Engine) run() {
	defer close(e.stopped)
	for {
		select {
		case req := <-e.requests:
			req.resp <- req.op()
		case <-e.stop:
			// Drain anything already queued before exiting so callers
			// blocked in Submit don't hang.
			for {
				select {
				case req := <-e.requests:
					req.resp <- req.op()
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) tick() {
	ticker := e.clock.NewTicker(e.sweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			e.submitFireAndForget(func() Result {
				e.sweep()
				return Result{}
			})
		case <-e.stop:
			return
		}
	}
}

// Close stops the engine's goroutines and, if durability is enabled,
// closes the WAL. Safe to call once.
func (e *Engine) Close() error {
	close(e.stop)
	<-e.stopped
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

func (e *Engine) incrCmd(name string) {
	e.cmdCounts[name]++
	if e.metrics != nil {
		e.metrics.ObserveCommand(name)
	}
}

func (e *Engine) getTube(name string) *Tube {
	t, ok := e.tubes[name]
	if !ok {
		t = newTube(name)
		e.tubes[name] = t
	}
	return t
}

func (e *Engine) allocID() uint64 {
	id := e.nextID
	e.nextID++
	return id
}

// waitingListLen returns, for diagnostics/tests, the number of
// sessions queued on a tube's waiting list.
func waitingListLen(l *list.List) int {
	if l == nil {
		return 0
	}
	return l.Len()
}
