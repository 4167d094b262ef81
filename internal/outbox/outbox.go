// Package outbox serializes optimistic mutations towards the backend, retries transient
// failures and reverts local state when a write is finally rejected.
package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/errs"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("outbox closed")

// Mutation is one persistence request issued after a local optimistic change.
type Mutation struct {
	// EntityID groups mutations for sequencing and revert decisions.
	EntityID uuid.UUID
	// Label names the operation in logs, e.g. "node.move".
	Label string
	// Apply performs the remote write.
	Apply func(ctx context.Context) error
	// Revert restores the last confirmed local value. Optional.
	Revert func()
}

// Failure describes a mutation that was given up.
type Failure struct {
	EntityID uuid.UUID
	Seq      uint64
	Label    string
	Err      error
	Reverted bool
}

// Options tune a Queue. Zero values pick defaults.
type Options struct {
	Logger *zap.Logger
	// Retryer handles transient failures; DefaultBackoff when nil.
	Retryer Retryer
	// Transient classifies errors worth retrying; IsTransient when nil.
	Transient func(error) bool
	// Timeout bounds each attempt; 10s when zero.
	Timeout time.Duration
	// OnFailure is called from the worker after a mutation was given up.
	OnFailure func(Failure)
}

type entry struct {
	m   Mutation
	seq uint64
}

// Queue is a FIFO of mutations drained by a single worker, so writes to one entity reach
// the backend in the order they were issued.
type Queue struct {
	log       *zap.Logger
	retryer   Retryer
	transient func(error) bool
	timeout   time.Duration
	onFailure func(Failure)

	mu        sync.Mutex
	pending   []entry
	busy      bool
	closed    bool
	issued    map[uuid.UUID]uint64
	confirmed map[uuid.UUID]uint64
	waiters   []chan struct{}

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// New starts a queue worker.
func New(opts Options) *Queue {
	q := &Queue{
		log:       opts.Logger,
		retryer:   opts.Retryer,
		transient: opts.Transient,
		timeout:   opts.Timeout,
		onFailure: opts.OnFailure,
		issued:    make(map[uuid.UUID]uint64),
		confirmed: make(map[uuid.UUID]uint64),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if q.log == nil {
		q.log = zap.NewNop()
	}
	if q.retryer == nil {
		q.retryer = DefaultBackoff()
	}
	if q.transient == nil {
		q.transient = IsTransient
	}
	if q.timeout <= 0 {
		q.timeout = 10 * time.Second
	}
	go q.run()
	return q
}

// IsTransient reports errors caused by unavailability, rate limits or timeouts.
func IsTransient(err error) bool {
	return errors.Is(err, errs.ErrUnavailable) ||
		errors.Is(err, errs.ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Enqueue schedules m and returns its per-entity sequence number. It never blocks on I/O.
func (q *Queue) Enqueue(m Mutation) (uint64, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, ErrClosed
	}
	q.issued[m.EntityID]++
	seq := q.issued[m.EntityID]
	q.pending = append(q.pending, entry{m: m, seq: seq})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return seq, nil
}

// Confirmed returns the sequence number of the newest successful mutation of an entity.
func (q *Queue) Confirmed(id uuid.UUID) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.confirmed[id]
}

// Issued returns the newest sequence number handed out for an entity.
func (q *Queue) Issued(id uuid.UUID) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.issued[id]
}

// Len returns the number of mutations not yet finished, including the one in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.busy {
		n++
	}
	return n
}

// Flush blocks until the queue is drained or ctx is done.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if !q.busy && len(q.pending) == 0 {
		q.mu.Unlock()
		return nil
	}
	w := make(chan struct{})
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	select {
	case <-w:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker and waits for it. The mutation in flight finishes its current
// attempt; mutations still queued are dropped without a revert. Flush first to deliver them.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.stop)
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			q.drop()
			return
		default:
		}
		e, ok := q.next()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.stop:
				return
			}
		}
		if !q.process(e) {
			q.drop()
			return
		}
		q.finish()
	}
}

func (q *Queue) drop() {
	q.mu.Lock()
	n := len(q.pending)
	q.pending = nil
	q.busy = false
	q.mu.Unlock()
	if n > 0 {
		q.log.Warn("outbox closed with pending mutations", zap.Int("dropped", n))
	}
}

func (q *Queue) next() (entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		q.busy = false
		q.notifyLocked()
		return entry{}, false
	}
	e := q.pending[0]
	q.pending[0] = entry{}
	q.pending = q.pending[1:]
	q.busy = true
	return e, true
}

func (q *Queue) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.busy = false
	if len(q.pending) == 0 {
		q.notifyLocked()
	}
}

func (q *Queue) notifyLocked() {
	for _, w := range q.waiters {
		close(w)
	}
	q.waiters = nil
}

// process runs one mutation with retries; it returns false when the queue is stopping.
func (q *Queue) process(e entry) bool {
	var err error
	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err = e.m.Apply(ctx)
		cancel()
		if err == nil {
			q.mu.Lock()
			if e.seq > q.confirmed[e.m.EntityID] {
				q.confirmed[e.m.EntityID] = e.seq
			}
			q.mu.Unlock()
			return true
		}
		if !q.transient(err) {
			break
		}
		delay, again := q.retryer.NextDelay(attempt, err)
		if !again {
			break
		}
		q.log.Warn("mutation failed, retrying",
			zap.String("op", e.m.Label),
			zap.Stringer("entity", e.m.EntityID),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-q.stop:
			t.Stop()
			return false
		}
	}

	q.mu.Lock()
	latest := q.issued[e.m.EntityID] == e.seq
	q.mu.Unlock()

	reverted := false
	if latest && e.m.Revert != nil {
		e.m.Revert()
		reverted = true
	}
	q.log.Error("mutation given up",
		zap.String("op", e.m.Label),
		zap.Stringer("entity", e.m.EntityID),
		zap.Uint64("seq", e.seq),
		zap.Bool("reverted", reverted),
		zap.Error(err),
	)
	if q.onFailure != nil {
		q.onFailure(Failure{EntityID: e.m.EntityID, Seq: e.seq, Label: e.m.Label, Err: err, Reverted: reverted})
	}
	return true
}
