// Package queue holds requests that failed under offline conditions and
// replays them later, in the order they were accepted.
//
// Entry lifecycle: Pending -> Replaying -> removed on success, back to
// Pending (retry count bumped) on a retryable failure, removed plus
// dead-letter callback on a terminal failure.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-go/internal/client/queue/store"
	"github.com/thelarryrutledge/nvlp-go/internal/client/retry"
	"github.com/thelarryrutledge/nvlp-go/internal/logging"
)

// DefaultMaxSize bounds the queue when no explicit limit is configured.
const DefaultMaxSize = 100

// ErrQueueFull is returned by Enqueue under the RejectNew overflow policy.
var ErrQueueFull = errors.New("offline queue full")

// Sender replays one stored request through the regular request path.
type Sender func(ctx context.Context, req store.Request) error

// OverflowPolicy decides what happens when Enqueue hits MaxSize.
type OverflowPolicy int

const (
	// RejectNew refuses the new entry with ErrQueueFull. Default: entries
	// already accepted keep their causal order intact.
	RejectNew OverflowPolicy = iota
	// EvictOldest drops the oldest entry to make room.
	EvictOldest
)

// Options configures a Manager.
type Options struct {
	// Store defaults to the in-memory backend.
	Store store.Store

	// Sender is required.
	Sender Sender

	// MaxSize defaults to DefaultMaxSize.
	MaxSize int

	Overflow OverflowPolicy

	// ContinueOnError makes Process skip past entries that fail retryably
	// instead of halting the drain. Default is to halt, preserving the
	// causal order of queued writes.
	ContinueOnError bool

	// DeadLetter receives entries that failed terminally and were removed.
	DeadLetter func(req store.Request, err error)

	// Retryable classifies replay failures. A retryable failure keeps the
	// entry queued; anything else is terminal. Defaults to
	// retry.DefaultRetryable (network, timeout, 429, 5xx).
	Retryable func(error) bool

	Logger logging.Logger
}

// Manager coordinates the offline queue. One Manager per client instance;
// Process never runs twice concurrently.
type Manager struct {
	store      store.Store
	sender     Sender
	maxSize    int
	overflow   OverflowPolicy
	continueOn bool
	deadLetter func(store.Request, error)
	retryable  func(error) bool
	log        logging.Logger

	enqueueMu sync.Mutex
	draining  atomic.Bool
}

// NewManager constructs a Manager from opts.
func NewManager(opts Options) *Manager {
	st := opts.Store
	if st == nil {
		st = store.NewMemory()
	}
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	retryable := opts.Retryable
	if retryable == nil {
		retryable = retry.DefaultRetryable
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{
		store:      st,
		sender:     opts.Sender,
		maxSize:    maxSize,
		overflow:   opts.Overflow,
		continueOn: opts.ContinueOnError,
		deadLetter: opts.DeadLetter,
		retryable:  retryable,
		log:        log,
	}
}

// Enqueue accepts req for later replay, assigning its ID, sequence number,
// and creation time. At capacity it either rejects with ErrQueueFull or
// evicts the oldest entry, per the configured policy.
func (m *Manager) Enqueue(ctx context.Context, req store.Request) (store.Request, error) {
	m.enqueueMu.Lock()
	defer m.enqueueMu.Unlock()

	entries, err := m.store.List(ctx)
	if err != nil {
		return store.Request{}, err
	}

	if len(entries) >= m.maxSize {
		if m.overflow == RejectNew {
			return store.Request{}, ErrQueueFull
		}
		oldest := entries[0]
		if err := m.store.Remove(ctx, oldest.ID); err != nil {
			return store.Request{}, err
		}
		m.log.Warn(ctx, "offline queue full, evicted oldest entry",
			"evicted_id", oldest.ID, "method", oldest.Method, "path", oldest.Path)
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.Seq = nextSeq(entries)

	if err := m.store.Append(ctx, req); err != nil {
		return store.Request{}, err
	}

	m.log.Info(ctx, "request queued for replay", "id", req.ID, "method", req.Method, "path", req.Path)
	return req, nil
}

// nextSeq continues the stored sequence so entries enqueued after a restart
// still sort behind the persisted ones.
func nextSeq(entries []store.Request) int64 {
	var max int64
	for _, e := range entries {
		if e.Seq > max {
			max = e.Seq
		}
	}
	return max + 1
}

// Process drains the queue in FIFO order, replaying entries strictly one at
// a time. An entry is removed only after its replay succeeded. A retryable
// failure bumps the entry's retry count and, by default, halts the drain;
// with ContinueOnError the drain skips to the next entry. A terminal failure
// removes the entry, hands it to the dead-letter callback, and the drain
// continues.
//
// Calling Process while a previous drain is still running is a no-op and
// returns (0, nil) immediately.
func (m *Manager) Process(ctx context.Context) (replayed int, err error) {
	if !m.draining.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer m.draining.Store(false)

	entries, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return replayed, ctx.Err()
		}

		sendErr := m.sender(ctx, entry)
		if sendErr == nil {
			if err := m.store.Remove(ctx, entry.ID); err != nil {
				return replayed, err
			}
			replayed++
			m.log.Debug(ctx, "queued request replayed", "id", entry.ID)
			continue
		}

		if m.retryable(sendErr) {
			entry.RetryCount++
			if err := m.store.Append(ctx, entry); err != nil {
				return replayed, err
			}
			m.log.Warn(ctx, "queued request failed, keeping it",
				"id", entry.ID, "retry_count", entry.RetryCount, "error", sendErr)
			if m.continueOn {
				continue
			}
			return replayed, sendErr
		}

		if err := m.store.Remove(ctx, entry.ID); err != nil {
			return replayed, err
		}
		m.log.Error(ctx, "queued request failed terminally, dropping it",
			"id", entry.ID, "error", sendErr)
		if m.deadLetter != nil {
			m.deadLetter(entry, sendErr)
		}
	}

	return replayed, nil
}

// Size reports the number of pending entries.
func (m *Manager) Size(ctx context.Context) (int, error) {
	entries, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear removes every pending entry.
func (m *Manager) Clear(ctx context.Context) error {
	return m.store.Clear(ctx)
}
