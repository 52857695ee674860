package mode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const laneBuffer = 32

var (
	ErrQueueStopped = errors.New("sync queue stopped")
	ErrQueueFull    = errors.New("sync queue full")
)

// Queue runs mode syncs on per-conversation lanes. Each conversation gets
// its own FIFO channel so its syncs reach the backend in the order they
// were made, while the semaphore bounds how many conversations sync at once.
type Queue struct {
	lanes     map[int64]chan *Sync
	semaphore *semaphore.Weighted
	processor func(*Sync) error
	pending   atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewQueue creates a Queue that lets up to maxConcurrent conversations sync
// at the same time.
func NewQueue(maxConcurrent int64) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Queue{
		lanes:     make(map[int64]chan *Sync),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes and waits for their
// goroutines to exit. Syncs still queued are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.cancel != nil {
		q.cancel()
	}
	for _, lane := range q.lanes {
		close(lane)
	}
	q.mu.Unlock()
	q.wg.Wait()
	q.pending.Store(0)
}

// SetProcessor sets the function invoked for each dequeued Sync.
func (q *Queue) SetProcessor(fn func(*Sync) error) {
	q.processor = fn
}

// Enqueue adds a Sync to its conversation's lane, creating the lane and its
// goroutine on first use.
func (q *Queue) Enqueue(s *Sync) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx == nil || q.closed {
		return ErrQueueStopped
	}

	lane, exists := q.lanes[s.ConversationID]
	if !exists {
		lane = make(chan *Sync, laneBuffer)
		q.lanes[s.ConversationID] = lane
		q.wg.Add(1)
		go q.processLane(s.ConversationID, lane)
	}

	q.pending.Add(1)
	select {
	case lane <- s:
		return nil
	default:
		q.pending.Add(-1)
		return fmt.Errorf("conversation %d: %w", s.ConversationID, ErrQueueFull)
	}
}

// processLane drains one conversation lane, holding a semaphore slot while
// the processor runs.
func (q *Queue) processLane(conversationID int64, lane chan *Sync) {
	defer q.wg.Done()
	for {
		select {
		case s, ok := <-lane:
			if !ok {
				return
			}
			q.run(conversationID, s)
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue) run(conversationID int64, s *Sync) {
	defer q.pending.Add(-1)
	if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
		return
	}
	defer q.semaphore.Release(1)

	if q.processor == nil {
		return
	}
	s.Ctx = q.ctx
	if err := q.processor(s); err != nil {
		slog.Warn("mode sync failed",
			"sync_id", s.ID,
			"conversation_id", conversationID,
			"mode", s.Mode,
			"error", err,
		)
	}
}

// Pending returns the number of syncs queued or running.
func (q *Queue) Pending() int64 {
	return q.pending.Load()
}

// WaitIdle blocks until no syncs are queued or running, or the timeout
// expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.pending.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}
