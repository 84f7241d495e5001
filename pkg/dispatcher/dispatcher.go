// Package dispatcher implements the Dispatcher abstraction from the
// device-interaction core: a priority queue of outgoing requests, each
// carrying success/failure continuations, drained one at a time by the
// Device Handler's comm-handling step.
package dispatcher

import (
	"container/heap"

	"github.com/scrutinydebugger/scrutiny-go/pkg/protocol"
)

// Priority orders pending requests. Lower values are more urgent and are
// popped first by Next.
type Priority int

const (
	// PriorityDisconnect is the most urgent: tearing down a session.
	PriorityDisconnect Priority = 0
	// PriorityHeartbeat keeps the link alive.
	PriorityHeartbeat Priority = 1
	// PriorityConnect establishes a session.
	PriorityConnect Priority = 2
	// PriorityPollInfo walks the interrogation sequence.
	PriorityPollInfo Priority = 5
	// PriorityDiscover is the least urgent: broadcasting for a device.
	PriorityDiscover Priority = 10
)

// SuccessFunc is invoked when a request's response is accepted.
type SuccessFunc func(code protocol.ResponseCode, data protocol.ResponseData)

// FailureFunc is invoked when a request times out or the comm link breaks
// before a response arrives.
type FailureFunc func()

// Record is a single pending request plus its continuations. Complete must
// be called exactly once per record, by the Device Handler's comm-handling
// step, whichever outcome occurs.
type Record struct {
	Request  protocol.Request
	Priority Priority

	success SuccessFunc
	failure FailureFunc
	seq     uint64
	done    bool
}

// Complete invokes the matching continuation exactly once. Subsequent
// calls are no-ops - mirroring the source's double-check on
// active_request_record before clearing it.
func (r *Record) Complete(success bool, code protocol.ResponseCode, data protocol.ResponseData) {
	if r.done {
		return
	}
	r.done = true
	if success {
		if r.success != nil {
			r.success(code, data)
		}
		return
	}
	if r.failure != nil {
		r.failure()
	}
}

// IsCompleted reports whether Complete has already run for this record.
func (r *Record) IsCompleted() bool {
	return r.done
}

// Dispatcher is a priority queue of pending requests.
type Dispatcher struct {
	queue recordHeap
	seq   uint64
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	d := &Dispatcher{}
	heap.Init(&d.queue)
	return d
}

// RegisterRequest enqueues a request at the given priority and returns the
// Record the caller should retain to observe completion.
func (d *Dispatcher) RegisterRequest(req protocol.Request, success SuccessFunc, failure FailureFunc, prio Priority) *Record {
	d.seq++
	rec := &Record{
		Request:  req,
		Priority: prio,
		success:  success,
		failure:  failure,
		seq:      d.seq,
	}
	heap.Push(&d.queue, rec)
	return rec
}

// Next pops the highest-priority pending record, or (nil, false) if the
// queue is empty. Ties are broken FIFO by registration order.
func (d *Dispatcher) Next() (*Record, bool) {
	if d.queue.Len() == 0 {
		return nil, false
	}
	rec := heap.Pop(&d.queue).(*Record)
	return rec, true
}

// Len reports the number of pending (not yet popped) records.
func (d *Dispatcher) Len() int {
	return d.queue.Len()
}

// recordHeap implements container/heap.Interface over *Record, ordered by
// Priority ascending (lower = more urgent), then by registration sequence.
type recordHeap []*Record

func (h recordHeap) Len() int { return len(h) }

func (h recordHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h recordHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *recordHeap) Push(x any) {
	*h = append(*h, x.(*Record))
}

func (h *recordHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
