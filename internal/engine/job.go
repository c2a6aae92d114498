package engine

import "container/list"

// State is a job's position in the lifecycle state machine.
type State int

const (
	Ready State = iota
	Delayed
	Reserved
	Buried
	Invalid
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Delayed:
		return "delayed"
	case Reserved:
		return "reserved"
	case Buried:
		return "buried"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// UrgentThreshold is the priority boundary below which a job is urgent.
const UrgentThreshold = 1024

// Job is the unit of work tracked by the engine. Every mutation to a Job
// happens inside the engine's single transaction goroutine; nothing else
// may write to it.
type Job struct {
	ID         uint64
	Priority   uint32
	Delay      int64 // seconds
	TTR        int64 // seconds
	CreatedAt  int64 // ms since epoch
	DeadlineAt int64 // ms since epoch; meaning depends on State
	State      State
	Tube       string
	Body       []byte

	Reserver *Session // nil unless State == Reserved

	Reserves uint32
	Timeouts uint32
	Releases uint32
	Buries   uint32
	Kicks    uint32

	// heapIndex is maintained by container/heap for O(log n) removal from
	// whichever of a tube's ready/delay heaps currently holds this job.
	heapIndex int
	// buriedElem is the list element holding this job in its tube's
	// buried list, non-nil only while State == Buried.
	buriedElem *list.Element
}

// Urgent reports whether the job's priority places it in the urgent band.
func (j *Job) Urgent() bool {
	return j.Priority < UrgentThreshold
}
