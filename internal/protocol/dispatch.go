package protocol

import (
	"strings"

	"github.com/hiveq/hiveq/internal/engine"
)

// dispatch parses one already-split command line and writes its
// response. It returns false when the connection should close (quit, or
// a framing error severe enough that recovery isn't worth it).
func (c *conn) dispatch(fields []string) bool {
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "put":
		return c.cmdPut(args)
	case "use":
		return c.cmdUse(args)
	case "reserve":
		return c.cmdReserve(args)
	case "reserve-with-timeout":
		return c.cmdReserveWithTimeout(args)
	case "delete":
		return c.cmdDelete(args)
	case "release":
		return c.cmdRelease(args)
	case "bury":
		return c.cmdBury(args)
	case "touch":
		return c.cmdTouch(args)
	case "watch":
		return c.cmdWatch(args)
	case "ignore":
		return c.cmdIgnore(args)
	case "peek":
		return c.cmdPeek(args)
	case "peek-ready":
		return c.cmdPeekContainer(args, c.eng.PeekReady)
	case "peek-delayed":
		return c.cmdPeekContainer(args, c.eng.PeekDelayed)
	case "peek-buried":
		return c.cmdPeekContainer(args, c.eng.PeekBuried)
	case "kick":
		return c.cmdKick(args)
	case "kick-job":
		return c.cmdKickJob(args)
	case "pause-tube":
		return c.cmdPauseTube(args)
	case "stats":
		return c.cmdStats(args)
	case "stats-job":
		return c.cmdStatsJob(args)
	case "stats-tube":
		return c.cmdStatsTube(args)
	case "list-tubes":
		return c.cmdListTubes(args)
	case "list-tube-used":
		return c.cmdListTubeUsed(args)
	case "list-tubes-watched":
		return c.cmdListTubesWatched(args)
	case "quit":
		c.eng.Quit(c.sessionID)
		return false
	default:
		c.writeLine(resUnknown)
		return true
	}
}

func (c *conn) cmdPut(args []string) bool {
	if len(args) != 4 {
		c.writeLine(resBadFormat)
		return true
	}
	pri, ok1 := parseUint32(args[0])
	delay, ok2 := parseInt64(args[1])
	ttr, ok3 := parseInt64(args[2])
	size, ok4 := parseInt(args[3])
	if !ok1 || !ok2 || !ok3 || !ok4 || delay < 0 || ttr < 0 || size < 0 {
		c.writeLine(resBadFormat)
		return true
	}
	body, ok := c.readBody(size)
	if !ok {
		c.writeLine(resExpected)
		return false
	}
	id, ek := c.eng.Put(c.sessionID, pri, delay, ttr, append([]byte(nil), body...))
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeLine(resInserted, c.writeUint(id))
	return true
}

func (c *conn) cmdUse(args []string) bool {
	if len(args) != 1 {
		c.writeLine(resBadFormat)
		return true
	}
	if err := CheckName(args[0]); err != nil {
		c.writeLine(resBadFormat)
		return true
	}
	if ek := c.eng.Use(c.sessionID, args[0]); ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeLine(resUsing, []byte(args[0]))
	return true
}

func (c *conn) cmdWatch(args []string) bool {
	if len(args) != 1 {
		c.writeLine(resBadFormat)
		return true
	}
	if err := CheckName(args[0]); err != nil {
		c.writeLine(resBadFormat)
		return true
	}
	n, ek := c.eng.Watch(c.sessionID, args[0])
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeLine(resWatching, c.writeUint(uint64(n)))
	return true
}

func (c *conn) cmdIgnore(args []string) bool {
	if len(args) != 1 {
		c.writeLine(resBadFormat)
		return true
	}
	n, ek := c.eng.Ignore(c.sessionID, args[0])
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeLine(resWatching, c.writeUint(uint64(n)))
	return true
}

func (c *conn) cmdReserve(args []string) bool {
	if len(args) != 0 {
		c.writeLine(resBadFormat)
		return true
	}
	job, ek := c.reserveWithDisconnectWatch(func() (*engine.Job, engine.ErrKind) {
		return c.eng.Reserve(c.sessionID)
	})
	return c.writeReserveResult(job, ek)
}

func (c *conn) cmdReserveWithTimeout(args []string) bool {
	if len(args) != 1 {
		c.writeLine(resBadFormat)
		return true
	}
	timeout, ok := parseInt64(args[0])
	if !ok || timeout < 0 {
		c.writeLine(resBadFormat)
		return true
	}
	job, ek := c.reserveWithDisconnectWatch(func() (*engine.Job, engine.ErrKind) {
		return c.eng.ReserveWithTimeout(c.sessionID, timeout)
	})
	return c.writeReserveResult(job, ek)
}

func (c *conn) writeReserveResult(job *engine.Job, ek engine.ErrKind) bool {
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeBody(job.Body, resReserved, c.writeUint(job.ID))
	return true
}

func (c *conn) cmdDelete(args []string) bool {
	id, ok := c.requireID(args)
	if !ok {
		return true
	}
	if ek := c.eng.Delete(c.sessionID, id); ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeLine(resDeleted)
	return true
}

func (c *conn) cmdRelease(args []string) bool {
	if len(args) != 3 {
		c.writeLine(resBadFormat)
		return true
	}
	id, ok1 := parseUint64(args[0])
	pri, ok2 := parseUint32(args[1])
	delay, ok3 := parseInt64(args[2])
	if !ok1 || !ok2 || !ok3 || delay < 0 {
		c.writeLine(resBadFormat)
		return true
	}
	if ek := c.eng.Release(c.sessionID, id, pri, delay); ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeLine(resReleased)
	return true
}

func (c *conn) cmdBury(args []string) bool {
	if len(args) != 2 {
		c.writeLine(resBadFormat)
		return true
	}
	id, ok1 := parseUint64(args[0])
	pri, ok2 := parseUint32(args[1])
	if !ok1 || !ok2 {
		c.writeLine(resBadFormat)
		return true
	}
	if ek := c.eng.Bury(c.sessionID, id, pri); ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeLine(resBuried)
	return true
}

func (c *conn) cmdTouch(args []string) bool {
	id, ok := c.requireID(args)
	if !ok {
		return true
	}
	if ek := c.eng.Touch(c.sessionID, id); ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeLine(resTouched)
	return true
}

func (c *conn) cmdPeek(args []string) bool {
	id, ok := c.requireID(args)
	if !ok {
		return true
	}
	job, ek := c.eng.Peek(c.sessionID, id)
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeBody(job.Body, resFound, c.writeUint(job.ID))
	return true
}

func (c *conn) cmdPeekContainer(args []string, fn func(string) (*engine.Job, engine.ErrKind)) bool {
	if len(args) != 0 {
		c.writeLine(resBadFormat)
		return true
	}
	job, ek := fn(c.sessionID)
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeBody(job.Body, resFound, c.writeUint(job.ID))
	return true
}

func (c *conn) cmdKick(args []string) bool {
	if len(args) != 1 {
		c.writeLine(resBadFormat)
		return true
	}
	bound, ok := parseInt(args[0])
	if !ok || bound < 0 {
		c.writeLine(resBadFormat)
		return true
	}
	n, ek := c.eng.Kick(c.sessionID, bound)
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeLine(resKicked, c.writeUint(uint64(n)))
	return true
}

func (c *conn) cmdKickJob(args []string) bool {
	id, ok := c.requireID(args)
	if !ok {
		return true
	}
	if ek := c.eng.KickJob(c.sessionID, id); ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeLine(resKicked)
	return true
}

func (c *conn) cmdPauseTube(args []string) bool {
	if len(args) != 2 {
		c.writeLine(resBadFormat)
		return true
	}
	if err := CheckName(args[0]); err != nil {
		c.writeLine(resBadFormat)
		return true
	}
	timeout, ok := parseInt64(args[1])
	if !ok || timeout < 0 {
		c.writeLine(resBadFormat)
		return true
	}
	if ek := c.eng.PauseTube(c.sessionID, args[0], timeout); ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeLine(resPaused)
	return true
}

func (c *conn) cmdStats(args []string) bool {
	if len(args) != 0 {
		c.writeLine(resBadFormat)
		return true
	}
	g, ek := c.eng.Stats(c.sessionID)
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeBody(formatGlobalStats(g), resOK)
	return true
}

func (c *conn) cmdStatsJob(args []string) bool {
	id, ok := c.requireID(args)
	if !ok {
		return true
	}
	j, ek := c.eng.StatsJob(c.sessionID, id)
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeBody(formatJobStats(j), resOK)
	return true
}

func (c *conn) cmdStatsTube(args []string) bool {
	if len(args) != 1 {
		c.writeLine(resBadFormat)
		return true
	}
	t, ek := c.eng.StatsTube(c.sessionID, args[0])
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeBody(formatTubeStats(t), resOK)
	return true
}

func (c *conn) cmdListTubes(args []string) bool {
	if len(args) != 0 {
		c.writeLine(resBadFormat)
		return true
	}
	names, ek := c.eng.ListTubes(c.sessionID)
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeBody(formatList(names), resOK)
	return true
}

func (c *conn) cmdListTubeUsed(args []string) bool {
	if len(args) != 0 {
		c.writeLine(resBadFormat)
		return true
	}
	name, ek := c.eng.ListTubeUsed(c.sessionID)
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeLine(resUsing, []byte(name))
	return true
}

func (c *conn) cmdListTubesWatched(args []string) bool {
	if len(args) != 0 {
		c.writeLine(resBadFormat)
		return true
	}
	names, ek := c.eng.ListTubesWatched(c.sessionID)
	if ek != engine.ErrNone {
		c.writeErr(ek)
		return true
	}
	c.writeBody(formatList(names), resOK)
	return true
}

func (c *conn) requireID(args []string) (uint64, bool) {
	if len(args) != 1 {
		c.writeLine(resBadFormat)
		return 0, false
	}
	id, ok := parseUint64(args[0])
	if !ok {
		c.writeLine(resBadFormat)
		return 0, false
	}
	return id, true
}
