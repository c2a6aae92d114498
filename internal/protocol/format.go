package protocol

import (
	"fmt"
	"strings"

	"github.com/hiveq/hiveq/internal/engine"
)

// formatList renders a YAML sequence of scalars, the format list-tubes,
// list-tubes-watched and similar verbs return in their OK body.
func formatList(names []string) []byte {
	var b strings.Builder
	b.WriteString("---\n")
	for _, n := range names {
		b.WriteString("- ")
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// formatGlobalStats renders the stats verb's OK body.
func formatGlobalStats(g engine.GlobalStats) []byte {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "current-jobs-ready: %d\n", g.JobsReady)
	fmt.Fprintf(&b, "current-jobs-delayed: %d\n", g.JobsDelayed)
	fmt.Fprintf(&b, "current-jobs-reserved: %d\n", g.JobsReserved)
	fmt.Fprintf(&b, "current-jobs-buried: %d\n", g.JobsBuried)
	fmt.Fprintf(&b, "total-jobs: %d\n", g.JobsTotal)
	fmt.Fprintf(&b, "current-tubes: %d\n", g.Tubes)
	fmt.Fprintf(&b, "current-connections: %d\n", g.SessionsTotal)
	fmt.Fprintf(&b, "current-waiting: %d\n", g.SessionsWaiting)
	fmt.Fprintf(&b, "current-workers: %d\n", g.SessionsWorking)
	fmt.Fprintf(&b, "job-timeouts: %d\n", g.JobTimeouts)
	fmt.Fprintf(&b, "uptime: %d\n", g.UptimeSec)
	for _, name := range []string{
		"put", "use", "watch", "ignore", "reserve", "reserve-with-timeout",
		"delete", "release", "bury", "touch", "kick", "kick-job",
		"pause-tube", "peek", "peek-ready", "peek-delayed", "peek-buried",
		"stats", "stats-job", "stats-tube",
		"list-tubes", "list-tube-used", "list-tubes-watched", "quit",
	} {
		fmt.Fprintf(&b, "cmd-%s: %d\n", name, g.CmdCounts[name])
	}
	return []byte(b.String())
}

// formatTubeStats renders the stats-tube verb's OK body.
func formatTubeStats(t engine.TubeStats) []byte {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "name: %s\n", t.Name)
	fmt.Fprintf(&b, "current-jobs-ready: %d\n", t.JobsReady)
	fmt.Fprintf(&b, "current-jobs-delayed: %d\n", t.JobsDelayed)
	fmt.Fprintf(&b, "current-jobs-reserved: %d\n", t.JobsReserved)
	fmt.Fprintf(&b, "current-jobs-buried: %d\n", t.JobsBuried)
	fmt.Fprintf(&b, "total-jobs: %d\n", t.JobsTotal)
	fmt.Fprintf(&b, "current-using: %d\n", t.Using)
	fmt.Fprintf(&b, "current-watching: %d\n", t.Watching)
	fmt.Fprintf(&b, "current-waiting: %d\n", t.Waiting)
	fmt.Fprintf(&b, "cmd-delete: %d\n", t.CmdDelete)
	fmt.Fprintf(&b, "cmd-pause-tube: %d\n", t.CmdPauseTube)
	pause := 0
	if t.Paused {
		pause = 1
	}
	fmt.Fprintf(&b, "pause: %d\n", pause)
	return []byte(b.String())
}

// formatJobStats renders the stats-job verb's OK body.
func formatJobStats(j engine.JobStats) []byte {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: %d\n", j.ID)
	fmt.Fprintf(&b, "tube: %s\n", j.Tube)
	fmt.Fprintf(&b, "state: %s\n", j.State.String())
	fmt.Fprintf(&b, "pri: %d\n", j.Priority)
	fmt.Fprintf(&b, "age: %d\n", j.Age)
	fmt.Fprintf(&b, "delay: %d\n", j.Delay)
	fmt.Fprintf(&b, "ttr: %d\n", j.TTR)
	fmt.Fprintf(&b, "time-left: %d\n", j.TimeLeft)
	fmt.Fprintf(&b, "reserves: %d\n", j.Reserves)
	fmt.Fprintf(&b, "timeouts: %d\n", j.Timeouts)
	fmt.Fprintf(&b, "releases: %d\n", j.Releases)
	fmt.Fprintf(&b, "buries: %d\n", j.Buries)
	fmt.Fprintf(&b, "kicks: %d\n", j.Kicks)
	return []byte(b.String())
}
