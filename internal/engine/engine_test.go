package engine

import (
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/rs/zerolog"

	"github.com/hiveq/hiveq/internal/wal"
)

func newTestEngine(t *testing.T) (*Engine, *fakeclock.FakeClock) {
	t.Helper()
	fc := fakeclock.NewFakeClock(time.Unix(1000, 0))
	e, err := New(Config{
		Clock:       fc,
		Log:         zerolog.Nop(),
		SweepPeriod: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, fc
}

func mustSession(t *testing.T, e *Engine, typ SessionType) string {
	t.Helper()
	id := NewSessionID()
	e.CreateSession(id, typ)
	return id
}

func TestPutReserveDelete(t *testing.T) {
	e, _ := newTestEngine(t)
	producer := mustSession(t, e, Producer)
	worker := mustSession(t, e, Worker)

	id, ek := e.Put(producer, 10, 0, 60, []byte("hello"))
	if ek != ErrNone {
		t.Fatalf("put: %v", ek)
	}

	job, ek := e.Reserve(worker)
	if ek != ErrNone {
		t.Fatalf("reserve: %v", ek)
	}
	if job.ID != id || string(job.Body) != "hello" {
		t.Fatalf("unexpected job %+v", job)
	}

	if ek := e.Delete(worker, id); ek != ErrNone {
		t.Fatalf("delete: %v", ek)
	}
	if _, ek := e.Peek(worker, id); ek != ErrNotFound {
		t.Fatalf("expected NotFound after delete, got %v", ek)
	}
}

func TestPriorityOrdering(t *testing.T) {
	e, _ := newTestEngine(t)
	producer := mustSession(t, e, Producer)
	worker := mustSession(t, e, Worker)

	lowID, _ := e.Put(producer, 100, 0, 60, []byte("low"))
	highID, _ := e.Put(producer, 10, 0, 60, []byte("high"))

	job, ek := e.Reserve(worker)
	if ek != ErrNone {
		t.Fatalf("reserve: %v", ek)
	}
	if job.ID != highID {
		t.Fatalf("expected urgent job %d first, got %d (low=%d)", highID, job.ID, lowID)
	}
}

func TestPriorityTieBreaksByID(t *testing.T) {
	e, _ := newTestEngine(t)
	producer := mustSession(t, e, Producer)
	worker := mustSession(t, e, Worker)

	firstID, _ := e.Put(producer, 10, 0, 100, []byte("a"))
	e.Put(producer, 10, 0, 100, []byte("b"))

	job, ek := e.Reserve(worker)
	if ek != ErrNone {
		t.Fatalf("reserve: %v", ek)
	}
	if job.ID != firstID || string(job.Body) != "a" {
		t.Fatalf("expected the lower id to win a priority tie, got id=%d body=%q", job.ID, job.Body)
	}
}

func TestKickOnlyTouchesBuriedWhenPresent(t *testing.T) {
	e, _ := newTestEngine(t)
	producer := mustSession(t, e, Producer)
	worker := mustSession(t, e, Worker)

	delayedID, _ := e.Put(producer, 0, 100, 60, []byte("delayed"))
	buriedID, _ := e.Put(producer, 0, 0, 60, []byte("buried"))
	e.Reserve(worker)
	if ek := e.Bury(worker, buriedID, 0); ek != ErrNone {
		t.Fatalf("bury: %v", ek)
	}

	n, ek := e.Kick(producer, 5)
	if ek != ErrNone || n != 1 {
		t.Fatalf("kick: n=%d err=%v", n, ek)
	}
	job, ek := e.ReserveWithTimeout(worker, 0)
	if ek != ErrNone || job.ID != buriedID {
		t.Fatalf("expected only the buried job kicked to ready, got %v err=%v", job, ek)
	}
	if _, ek := e.Peek(producer, delayedID); ek != ErrNone {
		t.Fatalf("delayed job should be untouched by a kick while buried jobs exist: %v", ek)
	}
}

func TestReleaseReturnsJobToReady(t *testing.T) {
	e, _ := newTestEngine(t)
	producer := mustSession(t, e, Producer)
	worker := mustSession(t, e, Worker)

	id, _ := e.Put(producer, 0, 0, 60, []byte("x"))
	job, _ := e.Reserve(worker)
	if job.ID != id {
		t.Fatalf("wrong job reserved")
	}
	if ek := e.Release(worker, id, 5, 0); ek != ErrNone {
		t.Fatalf("release: %v", ek)
	}

	job2, ek := e.Reserve(worker)
	if ek != ErrNone || job2.ID != id {
		t.Fatalf("expected to re-reserve %d, got %v err=%v", id, job2, ek)
	}
	if job2.Priority != 5 {
		t.Fatalf("priority not updated: %d", job2.Priority)
	}
}

func TestBuryAndKick(t *testing.T) {
	e, _ := newTestEngine(t)
	producer := mustSession(t, e, Producer)
	worker := mustSession(t, e, Worker)

	id, _ := e.Put(producer, 0, 0, 60, []byte("x"))
	e.Reserve(worker)
	if ek := e.Bury(worker, id, 0); ek != ErrNone {
		t.Fatalf("bury: %v", ek)
	}
	if _, ek := e.ReserveWithTimeout(worker, 0); ek != ErrTimedOut {
		t.Fatalf("expected no ready jobs while buried, got %v", ek)
	}

	n, ek := e.Kick(producer, 10)
	if ek != ErrNone || n != 1 {
		t.Fatalf("kick: n=%d err=%v", n, ek)
	}
	job, ek := e.ReserveWithTimeout(worker, 0)
	if ek != ErrNone || job.ID != id {
		t.Fatalf("expected kicked job ready, got %v err=%v", job, ek)
	}
}

func TestIgnoreLastWatchedTubeFails(t *testing.T) {
	e, _ := newTestEngine(t)
	worker := mustSession(t, e, Worker)

	if _, ek := e.Ignore(worker, DefaultTube); ek != ErrNotIgnored {
		t.Fatalf("expected NotIgnored, got %v", ek)
	}
	watched, ek := e.ListTubesWatched(worker)
	if ek != ErrNone || len(watched) != 1 || watched[0] != DefaultTube {
		t.Fatalf("watch set should be unchanged: %v", watched)
	}
}

func TestDelayedJobBecomesReadyOnSweep(t *testing.T) {
	e, fc := newTestEngine(t)
	producer := mustSession(t, e, Producer)
	worker := mustSession(t, e, Worker)

	id, _ := e.Put(producer, 0, 5, 60, []byte("x"))
	if _, ek := e.ReserveWithTimeout(worker, 0); ek != ErrTimedOut {
		t.Fatalf("job should still be delayed")
	}

	fc.Increment(6 * time.Second)
	waitForSweep(t, e)

	job, ek := e.ReserveWithTimeout(worker, 0)
	if ek != ErrNone || job.ID != id {
		t.Fatalf("expected delayed job ready after sweep, got %v err=%v", job, ek)
	}
}

func TestTTRExpirySweepReturnsJobToReady(t *testing.T) {
	e, fc := newTestEngine(t)
	producer := mustSession(t, e, Producer)
	worker := mustSession(t, e, Worker)

	id, _ := e.Put(producer, 0, 0, 2, []byte("x"))
	if _, ek := e.Reserve(worker); ek != ErrNone {
		t.Fatalf("reserve: %v", ek)
	}

	fc.Increment(3 * time.Second)
	waitForSweep(t, e)

	job, ek := e.ReserveWithTimeout(worker, 0)
	if ek != ErrNone || job.ID != id {
		t.Fatalf("expected TTR-expired job ready, got %v err=%v", job, ek)
	}
	if job.Timeouts != 1 {
		t.Fatalf("expected one recorded timeout, got %d", job.Timeouts)
	}
}

func TestPauseTubeBlocksThenExpires(t *testing.T) {
	e, fc := newTestEngine(t)
	producer := mustSession(t, e, Producer)
	worker := mustSession(t, e, Worker)

	id, _ := e.Put(producer, 0, 0, 60, []byte("x"))
	if ek := e.PauseTube(producer, DefaultTube, 5); ek != ErrNone {
		t.Fatalf("pause-tube: %v", ek)
	}
	if _, ek := e.ReserveWithTimeout(worker, 0); ek != ErrTimedOut {
		t.Fatalf("expected paused tube to withhold jobs")
	}

	fc.Increment(6 * time.Second)
	waitForSweep(t, e)

	job, ek := e.ReserveWithTimeout(worker, 0)
	if ek != ErrNone || job.ID != id {
		t.Fatalf("expected job ready after pause expiry, got %v err=%v", job, ek)
	}
}

func TestCloseSessionReleasesReservedJobs(t *testing.T) {
	e, _ := newTestEngine(t)
	producer := mustSession(t, e, Producer)
	worker := mustSession(t, e, Worker)

	id, _ := e.Put(producer, 0, 0, 60, []byte("x"))
	if _, ek := e.Reserve(worker); ek != ErrNone {
		t.Fatalf("reserve failed")
	}
	e.CloseSession(worker)

	other := mustSession(t, e, Worker)
	job, ek := e.ReserveWithTimeout(other, 0)
	if ek != ErrNone || job.ID != id {
		t.Fatalf("expected job released back to ready on session close, got %v err=%v", job, ek)
	}
}

func TestDrainModeRejectsPut(t *testing.T) {
	fc := fakeclock.NewFakeClock(time.Unix(1000, 0))
	e, err := New(Config{Clock: fc, Log: zerolog.Nop(), SweepPeriod: time.Millisecond, Drain: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()
	producer := mustSession(t, e, Producer)

	if _, ek := e.Put(producer, 0, 0, 60, []byte("x")); ek != ErrDraining {
		t.Fatalf("expected Draining, got %v", ek)
	}
}

func TestWALReplayIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	fc := fakeclock.NewFakeClock(time.Unix(1000, 0))

	store1, err := wal.Open(dir, 2)
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	e1, err := New(Config{Clock: fc, Log: zerolog.Nop(), SweepPeriod: time.Millisecond, WAL: store1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	producer := mustSession(t, e1, Producer)
	id, ek := e1.Put(producer, 7, 0, 60, []byte("durable"))
	if ek != ErrNone {
		t.Fatalf("put: %v", ek)
	}
	e1.Close()

	store2, err := wal.Open(dir, 2)
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}
	e2, err := New(Config{Clock: fc, Log: zerolog.Nop(), SweepPeriod: time.Millisecond, WAL: store2})
	if err != nil {
		t.Fatalf("New (recover 1): %v", err)
	}
	job, ek := e2.Peek(mustSession(t, e2, Producer), id)
	if ek != ErrNone || string(job.Body) != "durable" || job.Priority != 7 {
		t.Fatalf("expected recovered job after first replay, got %v err=%v", job, ek)
	}
	e2.Close()

	store3, err := wal.Open(dir, 2)
	if err != nil {
		t.Fatalf("reopen wal again: %v", err)
	}
	e3, err := New(Config{Clock: fc, Log: zerolog.Nop(), SweepPeriod: time.Millisecond, WAL: store3})
	if err != nil {
		t.Fatalf("New (recover 2): %v", err)
	}
	defer e3.Close()
	job2, ek := e3.Peek(mustSession(t, e3, Producer), id)
	if ek != ErrNone || string(job2.Body) != "durable" || job2.Priority != 7 {
		t.Fatalf("replaying an unchanged WAL twice should yield the same state, got %v err=%v", job2, ek)
	}
}

func TestReserveWithTimeoutDeliversTimedOut(t *testing.T) {
	e, fc := newTestEngine(t)
	worker := mustSession(t, e, Worker)

	done := make(chan ErrKind, 1)
	go func() {
		_, ek := e.ReserveWithTimeout(worker, 1)
		done <- ek
	}()

	// Give the reserve a moment to register as waiting before the clock
	// advances past its deadline.
	waitForCondition(t, func() bool {
		res := e.Submit(func() Result {
			s, _ := e.lookupSession(worker)
			return ok(s.State == Waiting)
		})
		return res.Value.(bool)
	})

	fc.Increment(2 * time.Second)
	select {
	case ek := <-done:
		if ek != ErrTimedOut {
			t.Fatalf("expected TimedOut, got %v", ek)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reserve-with-timeout never returned")
	}
}

func TestCloseSessionWakesBlockedReserve(t *testing.T) {
	e, _ := newTestEngine(t)
	worker := mustSession(t, e, Worker)

	done := make(chan ErrKind, 1)
	go func() {
		_, ek := e.Reserve(worker)
		done <- ek
	}()

	waitForCondition(t, func() bool {
		res := e.Submit(func() Result {
			s, _ := e.lookupSession(worker)
			return ok(s.State == Waiting)
		})
		return res.Value.(bool)
	})

	e.CloseSession(worker)

	select {
	case ek := <-done:
		if ek != ErrInternal {
			t.Fatalf("expected ErrInternal from a reserve cancelled by session close, got %v", ek)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reserve never woke up after its session closed")
	}
}

func TestQuitIncrementsCmdCounter(t *testing.T) {
	e, _ := newTestEngine(t)
	producer := mustSession(t, e, Producer)
	worker := mustSession(t, e, Worker)

	e.Quit(worker)

	g, ek := e.Stats(producer)
	if ek != ErrNone {
		t.Fatalf("stats failed: %v", ek)
	}
	if g.CmdCounts["quit"] != 1 {
		t.Fatalf("expected cmd-quit=1, got %d", g.CmdCounts["quit"])
	}
}

// waitForSweep runs one sweep pass directly on the engine goroutine,
// rather than racing the background ticker against the fake clock.
func waitForSweep(t *testing.T, e *Engine) {
	t.Helper()
	e.Submit(func() Result {
		e.sweep()
		return Result{}
	})
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}
