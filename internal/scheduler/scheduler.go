package scheduler

import (
	"container/heap"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handle identifies a scheduled job for cancellation. The zero Handle is
// returned when a job was dropped at registration and cancels nothing.
type Handle struct {
	id uuid.UUID
}

// Zero reports whether the handle refers to no job.
func (h Handle) Zero() bool { return h.id == uuid.Nil }

type jobState int

const (
	statePending jobState = iota
	stateFired
	stateCancelled
)

// job is owned exclusively by the loop goroutine.
type job struct {
	id    uuid.UUID
	due   time.Time
	grace time.Duration
	fn    func()
	seq   uint64 // registration order, tie-break for equal due instants
	state jobState
	idx   int // heap index
}

type scheduleReq struct {
	due   time.Time
	grace time.Duration
	fn    func()
	resp  chan Handle
}

type cancelReq struct {
	id   uuid.UUID
	resp chan bool
}

type pendingReq struct {
	resp chan int
}

// Scheduler is an in-memory, time-ordered one-shot job queue. All timing
// state lives in a single loop goroutine; the exported methods talk to it
// over request channels. It holds no durable state: every job is lost on
// process termination and must be re-armed from the notification store.
type Scheduler struct {
	log *zap.Logger

	schedule chan scheduleReq
	cancel   chan cancelReq
	pending  chan pendingReq
	stop     chan chan struct{}

	// loop-owned state
	h   jobHeap
	idx map[uuid.UUID]*job
	t   *time.Timer
	seq uint64
}

// New creates a Scheduler and starts its loop.
func New(log *zap.Logger) *Scheduler {
	s := &Scheduler{
		log:      log,
		schedule: make(chan scheduleReq),
		cancel:   make(chan cancelReq),
		pending:  make(chan pendingReq),
		stop:     make(chan chan struct{}),
		idx:      make(map[uuid.UUID]*job),
	}
	heap.Init(&s.h)
	go s.loop()
	return s
}

// Schedule registers a one-shot job firing at or after due. A due instant
// that already lies more than grace in the past is treated as a missed
// occurrence: the job is dropped and the zero Handle is returned.
func (s *Scheduler) Schedule(due time.Time, grace time.Duration, fn func()) Handle {
	r := scheduleReq{due: due, grace: grace, fn: fn, resp: make(chan Handle, 1)}
	s.schedule <- r
	return <-r.resp
}

// Cancel removes a pending job. Cancelling the zero Handle, an unknown
// handle, or a job that already fired is a no-op; a concurrent fire wins
// over cancellation.
func (s *Scheduler) Cancel(h Handle) bool {
	if h.Zero() {
		return false
	}
	r := cancelReq{id: h.id, resp: make(chan bool, 1)}
	s.cancel <- r
	return <-r.resp
}

// Pending returns the number of jobs waiting to fire.
func (s *Scheduler) Pending() int {
	r := pendingReq{resp: make(chan int, 1)}
	s.pending <- r
	return <-r.resp
}

// Stop terminates the loop. Pending jobs are discarded; already-dispatched
// callbacks run to completion.
func (s *Scheduler) Stop() {
	done := make(chan struct{})
	s.stop <- done
	<-done
}

func (s *Scheduler) loop() {
	for {
		var timerC <-chan time.Time
		if s.t != nil {
			timerC = s.t.C
		}

		select {
		case r := <-s.schedule:
			r.resp <- s.add(r.due, r.grace, r.fn)

		case r := <-s.cancel:
			r.resp <- s.remove(r.id)

		case r := <-s.pending:
			r.resp <- len(s.idx)

		case <-timerC:
			s.t = nil
			s.fireDue()

		case done := <-s.stop:
			if s.t != nil {
				s.t.Stop()
			}
			done <- struct{}{}
			return
		}

		s.armTimer()
	}
}

func (s *Scheduler) add(due time.Time, grace time.Duration, fn func()) Handle {
	now := time.Now()
	if grace >= 0 && now.Sub(due) > grace {
		s.log.Warn("job dropped as misfired",
			zap.Time("due", due),
			zap.Duration("late", now.Sub(due)),
		)
		return Handle{}
	}
	s.seq++
	j := &job{
		id:    uuid.New(),
		due:   due,
		grace: grace,
		fn:    fn,
		seq:   s.seq,
		state: statePending,
	}
	heap.Push(&s.h, j)
	s.idx[j.id] = j
	return Handle{id: j.id}
}

func (s *Scheduler) remove(id uuid.UUID) bool {
	j, ok := s.idx[id]
	if !ok || j.state != statePending {
		return false
	}
	j.state = stateCancelled
	delete(s.idx, id)
	// The heap entry stays behind as a tombstone and is skipped on pop.
	return true
}

func (s *Scheduler) fireDue() {
	now := time.Now()
	var batch []*job
	for s.h.Len() > 0 {
		top := s.h[0]
		if top.state != statePending {
			heap.Pop(&s.h)
			continue
		}
		if top.due.After(now) {
			break
		}
		heap.Pop(&s.h)
		top.state = stateFired
		delete(s.idx, top.id)

		if top.grace >= 0 && now.Sub(top.due) > top.grace {
			s.log.Warn("job dropped at fire time as misfired",
				zap.Time("due", top.due),
				zap.Duration("late", now.Sub(top.due)),
			)
			continue
		}
		batch = append(batch, top)
	}
	if len(batch) == 0 {
		return
	}
	// The whole batch runs in one goroutine so jobs with coinciding due
	// instants execute in registration order, not runtime schedule order.
	go func() {
		for _, j := range batch {
			s.run(j)
		}
	}()
}

// run executes one callback off the loop goroutine. A panicking callback
// must never take the timer loop down with it.
func (s *Scheduler) run(j *job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job callback panicked",
				zap.Any("panic", r),
				zap.Time("due", j.due),
			)
		}
	}()
	j.fn()
}

func (s *Scheduler) armTimer() {
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
	for s.h.Len() > 0 {
		top := s.h[0]
		if top.state != statePending {
			heap.Pop(&s.h)
			continue
		}
		d := time.Until(top.due)
		if d < 0 {
			d = 0
		}
		s.t = time.NewTimer(d)
		return
	}
}

// ----- heap internals -----

type jobHeap []*job

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i]; h[i].idx = i; h[j].idx = j }
func (h *jobHeap) Push(x any)   { *h = append(*h, x.(*job)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	*h = old[:n-1]
	j.idx = -1
	return j
}
