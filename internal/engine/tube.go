package engine

import (
	"container/heap"
	"container/list"
)

// DefaultTube is the tube that exists from startup.
const DefaultTube = "default"

// readyHeap orders jobs by (priority, id), lower first.
type readyHeap []*Job

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].ID < h[j].ID
}
func (h readyHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *readyHeap) Push(x any) {
	j := x.(*Job)
	j.heapIndex = len(*h)
	*h = append(*h, j)
}
func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.heapIndex = -1
	*h = old[:n-1]
	return j
}

// delayHeap orders jobs by (DeadlineAt, id), lower first.
type delayHeap []*Job

func (h delayHeap) Len() int { return len(h) }
func (h delayHeap) Less(i, j int) bool {
	if h[i].DeadlineAt != h[j].DeadlineAt {
		return h[i].DeadlineAt < h[j].DeadlineAt
	}
	return h[i].ID < h[j].ID
}
func (h delayHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *delayHeap) Push(x any) {
	j := x.(*Job)
	j.heapIndex = len(*h)
	*h = append(*h, j)
}
func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.heapIndex = -1
	*h = old[:n-1]
	return j
}

// Tube is a named, isolated queue.
type Tube struct {
	Name string

	ready readyHeap
	delay delayHeap

	buried      *list.List // of *Job
	waitingList *list.List // of *Session

	Paused        bool
	PauseDeadline int64
	Pauses        uint32

	// per-tube command/job counters, read by stats-tube.
	cmdDelete    uint32
	cmdPauseTube uint32
	totalJobs    uint64
}

func newTube(name string) *Tube {
	t := &Tube{
		Name:        name,
		buried:      list.New(),
		waitingList: list.New(),
	}
	heap.Init(&t.ready)
	heap.Init(&t.delay)
	return t
}

func (t *Tube) pushReady(j *Job) {
	heap.Push(&t.ready, j)
}

func (t *Tube) removeReady(j *Job) {
	if j.heapIndex >= 0 && j.heapIndex < len(t.ready) && t.ready[j.heapIndex] == j {
		heap.Remove(&t.ready, j.heapIndex)
	}
}

func (t *Tube) peekReady() *Job {
	if len(t.ready) == 0 {
		return nil
	}
	return t.ready[0]
}

func (t *Tube) popReady() *Job {
	if len(t.ready) == 0 {
		return nil
	}
	return heap.Pop(&t.ready).(*Job)
}

func (t *Tube) pushDelay(j *Job) {
	heap.Push(&t.delay, j)
}

func (t *Tube) removeDelay(j *Job) {
	if j.heapIndex >= 0 && j.heapIndex < len(t.delay) && t.delay[j.heapIndex] == j {
		heap.Remove(&t.delay, j.heapIndex)
	}
}

func (t *Tube) peekDelay() *Job {
	if len(t.delay) == 0 {
		return nil
	}
	return t.delay[0]
}

func (t *Tube) pushBuried(j *Job) {
	j.buriedElem = t.buried.PushBack(j)
}

func (t *Tube) removeBuried(j *Job) {
	if j.buriedElem != nil {
		t.buried.Remove(j.buriedElem)
		j.buriedElem = nil
	}
}

func (t *Tube) peekBuried() *Job {
	e := t.buried.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*Job)
}

func (t *Tube) popBuried() *Job {
	e := t.buried.Front()
	if e == nil {
		return nil
	}
	t.buried.Remove(e)
	j := e.Value.(*Job)
	j.buriedElem = nil
	return j
}
