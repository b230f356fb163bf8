package services

import (
	"context"
	"sync"
	"time"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/backend"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/clock"
)

// SyncPolicy is the debounce and rate-limit policy of a synchronizer.
type SyncPolicy struct {
	Debounce       time.Duration
	MinInterval    time.Duration
	DebounceCap    time.Duration
	MinIntervalCap time.Duration
	BackoffFactor  float64
	// MaxRetries bounds how often a rate-limited state is requeued
	// without a newer schedule call. Zero means the default, negative
	// disables automatic retries.
	MaxRetries int
}

// DefaultSyncPolicy is 3s debounce, 5s floor, x1.5 backoff capped at 5s/10s,
// and at most 10 automatic retries of a rate-limited state.
func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{
		Debounce:       3 * time.Second,
		MinInterval:    5 * time.Second,
		DebounceCap:    5 * time.Second,
		MinIntervalCap: 10 * time.Second,
		BackoffFactor:  1.5,
		MaxRetries:     10,
	}
}

func (p SyncPolicy) normalized() SyncPolicy {
	d := DefaultSyncPolicy()
	if p.Debounce <= 0 {
		p.Debounce = d.Debounce
	}
	if p.MinInterval < 0 {
		p.MinInterval = 0
	}
	if p.DebounceCap < p.Debounce {
		p.DebounceCap = p.Debounce
	}
	if p.MinIntervalCap < p.MinInterval {
		p.MinIntervalCap = p.MinInterval
	}
	if p.BackoffFactor <= 1 {
		p.BackoffFactor = d.BackoffFactor
	}
	switch {
	case p.MaxRetries == 0:
		p.MaxRetries = d.MaxRetries
	case p.MaxRetries < 0:
		p.MaxRetries = 0
	}
	return p
}

// PendingSync is the shared result of one coalesced flush. Every caller
// whose state was folded into the same flush receives the same value.
type PendingSync struct {
	done  chan struct{}
	state *wizard.State
	err   error
}

func newPendingSync() *PendingSync {
	return &PendingSync{done: make(chan struct{})}
}

func (p *PendingSync) resolve(state *wizard.State, err error) {
	p.state, p.err = state, err
	close(p.done)
}

// Done is closed once the flush has completed.
func (p *PendingSync) Done() <-chan struct{} { return p.done }

// Wait blocks until the flush completes or ctx is done. Leaving early
// does not cancel the flush.
func (p *PendingSync) Wait(ctx context.Context) (*wizard.State, error) {
	select {
	case <-p.done:
		return p.state.Clone(), p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// pushFunc sends one state to the backend and returns the reconciled state.
type pushFunc func(ctx context.Context, key string, state *wizard.State) (*wizard.State, error)

// syncer coalesces the sync requests of one storage key: a single pending
// slot, a single shared result, one request in flight.
type syncer struct {
	key    string
	clock  clock.Clock
	policy SyncPolicy
	push   pushFunc
	onDone func(key string, state *wizard.State, err error)

	mu          sync.Mutex
	debounce    time.Duration
	minInterval time.Duration
	pending     *wizard.State
	batch       *PendingSync
	timer       clock.Timer
	gen         uint64
	retries     int
	inFlight    bool
	lastSync    time.Time
	lastUsed    time.Time
	closed      bool
}

func newSyncer(key string, clk clock.Clock, policy SyncPolicy, push pushFunc) *syncer {
	policy = policy.normalized()
	return &syncer{
		key:         key,
		clock:       clk,
		policy:      policy,
		push:        push,
		debounce:    policy.Debounce,
		minInterval: policy.MinInterval,
		lastUsed:    clk.Now(),
	}
}

// schedule replaces the pending state and restarts the debounce window.
func (s *syncer) schedule(state *wizard.State) *PendingSync {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = state.Clone()
	if s.batch == nil {
		s.batch = newPendingSync()
	}
	s.lastUsed = s.clock.Now()
	s.retries = 0
	if !s.inFlight && !s.closed {
		s.armLocked(s.debounce)
	}
	return s.batch
}

// armLocked restarts the timer. A callback of an earlier arm that already
// fired and is waiting on mu sees a stale generation and does nothing.
func (s *syncer) armLocked(d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen) })
}

// fire runs when the debounce window elapses without a further call.
func (s *syncer) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.inFlight || s.pending == nil || s.closed {
		s.mu.Unlock()
		return
	}
	if !s.lastSync.IsZero() {
		if wait := s.minInterval - s.clock.Now().Sub(s.lastSync); wait > 0 {
			s.armLocked(wait)
			s.mu.Unlock()
			return
		}
	}
	state, batch := s.pending, s.batch
	s.pending, s.batch = nil, nil
	s.timer = nil
	s.inFlight = true
	s.mu.Unlock()

	result, err := s.push(context.Background(), s.key, state)

	s.mu.Lock()
	s.inFlight = false
	switch {
	case err == nil:
		s.lastSync = s.clock.Now()
		s.retries = 0
	case backend.IsRateLimited(err):
		s.backoffLocked()
		if result == nil {
			result = state
		}
		if s.pending == nil && !s.closed && s.retries < s.policy.MaxRetries {
			s.retries++
			s.pending = result.Clone()
			s.batch = newPendingSync()
		}
	}
	if s.pending != nil && !s.closed {
		s.armLocked(s.debounce)
	}
	onDone := s.onDone
	s.mu.Unlock()

	batch.resolve(result, err)
	if onDone != nil {
		onDone(s.key, result, err)
	}
}

func (s *syncer) backoffLocked() {
	grow := func(d, limit time.Duration) time.Duration {
		next := time.Duration(float64(d) * s.policy.BackoffFactor)
		if next > limit {
			return limit
		}
		return next
	}
	s.debounce = grow(s.debounce, s.policy.DebounceCap)
	s.minInterval = grow(s.minInterval, s.policy.MinIntervalCap)
}

// intervals returns the current debounce window and minimum interval.
func (s *syncer) intervals() (debounce, minInterval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debounce, s.minInterval
}

// idleSince reports whether nothing is in flight and no caller has
// scheduled a state since cutoff. A retry still queued from before the
// cutoff does not keep the syncer alive.
func (s *syncer) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.inFlight && s.lastUsed.Before(cutoff)
}

// close stops the timer. A queued batch resolves with ErrSyncCancelled.
func (s *syncer) close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	batch := s.batch
	s.pending, s.batch = nil, nil
	s.mu.Unlock()

	if batch != nil {
		batch.resolve(nil, ErrSyncCancelled)
	}
}
