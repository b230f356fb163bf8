package services

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/events"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/backend"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/clock"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/messaging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/performance"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/security"
)

const lockStripes = 64

// SessionBackend is the part of the backend client the state service uses.
type SessionBackend interface {
	CreateSession(ctx context.Context, req backend.CreateSessionRequest) (*wizard.State, error)
	UpdateStep(ctx context.Context, id string, update backend.StepUpdate) (*wizard.State, error)
	GetSessionBySessionID(ctx context.Context, sessionID string) (*wizard.State, error)
	GetActiveSessionByIP(ctx context.Context, ip string) (*wizard.State, error)
	AbandonSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
}

// EventBus publishes wizard events and streams them per storage key.
type EventBus interface {
	messaging.Publisher
	messaging.Subscriber
}

// WizardStateConfig configures the state service.
type WizardStateConfig struct {
	// Timeout is the idle time after which a stored state expires.
	Timeout time.Duration
	Policy  SyncPolicy
	// IPHashKey keys the hash used when client addresses are logged.
	IPHashKey string
}

// ClearMode selects what happens to the backend copy on Clear.
type ClearMode int

const (
	ClearAbandon ClearMode = iota
	ClearDelete
	ClearLocalOnly
)

// WizardStateService is the single source of truth for wizard progress.
// Each storage key has its own stored state and its own synchronizer.
type WizardStateService struct {
	repo    wizard.StateRepository
	backend SessionBackend
	bus     EventBus
	clock   clock.Clock
	logger  *logging.ChanneledLogger
	perf    *performance.Tracker
	cfg     WizardStateConfig

	locks [lockStripes]sync.Mutex

	mu        sync.Mutex
	syncers   map[string]*syncer
	clientIPs map[string]string

	recoveries   singleflight.Group
	newSessionID func() string
}

// NewWizardStateService creates the state service.
func NewWizardStateService(
	repo wizard.StateRepository,
	sessions SessionBackend,
	bus EventBus,
	clk clock.Clock,
	cfg WizardStateConfig,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *WizardStateService {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if perfTracker == nil {
		perfTracker = performance.NewTracker(nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 24 * time.Hour
	}
	cfg.Policy = cfg.Policy.normalized()
	return &WizardStateService{
		repo:         repo,
		backend:      sessions,
		bus:          bus,
		clock:        clk,
		logger:       logger,
		perf:         perfTracker,
		cfg:          cfg,
		syncers:      make(map[string]*syncer),
		clientIPs:    make(map[string]string),
		newSessionID: security.GenerateSessionID,
	}
}

func (s *WizardStateService) lockKey(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &s.locks[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

// loadLocked reads the stored state. Absent, unreadable or expired states
// yield a fresh default; discarded reports whether a stale one was dropped.
func (s *WizardStateService) loadLocked(ctx context.Context, key string) (state *wizard.State, discarded *wizard.State) {
	now := s.clock.Now()
	stored, err := s.repo.Load(ctx, key)
	switch {
	case err == nil && !stored.Expired(now, s.cfg.Timeout):
		if stored.SessionID == "" {
			stored.SessionID = s.newSessionID()
		}
		return stored, nil
	case err == nil:
		s.logger.WithSession(logging.ChannelWizard, key).Info("Discarding expired wizard state",
			"sessionId", stored.SessionID, "idle", now.Sub(time.UnixMilli(stored.LastActivity)))
		discarded = stored
	case !errors.Is(err, wizard.ErrStateNotFound):
		s.logger.LogError(logging.ChannelWizard, "load_state", err, map[string]any{"storageKey": logging.MaskID(key)})
	}
	return wizard.NewState(s.newSessionID(), now), discarded
}

func (s *WizardStateService) persistLocked(ctx context.Context, key string, state *wizard.State) {
	if err := s.repo.Save(ctx, key, state); err != nil {
		s.logger.LogError(logging.ChannelWizard, "save_state", err, map[string]any{
			"storageKey": logging.MaskID(key),
			"sessionId":  state.SessionID,
		})
	}
}

// GetState returns the current state, substituting a fresh default for an
// absent or expired one. It refreshes LastActivity and rewrites storage.
func (s *WizardStateService) GetState(ctx context.Context, key string) *wizard.State {
	unlock := s.lockKey(key)
	state, discarded := s.loadLocked(ctx, key)
	state.Touch(s.clock.Now())
	s.persistLocked(ctx, key, state)
	unlock()

	if discarded != nil {
		s.dropSyncer(key)
		s.publish(ctx, key, state, events.KindStateCleared, map[string]any{"reason": "expired", "previousSessionId": discarded.SessionID})
	}
	return state.Clone()
}

// SaveState merges patch into the stored state and notifies subscribers.
// It never contacts the backend and storage failures are only logged.
func (s *WizardStateService) SaveState(ctx context.Context, key string, patch wizard.Patch) *wizard.State {
	unlock := s.lockKey(key)
	state, discarded := s.loadLocked(ctx, key)
	state.Apply(patch, s.clock.Now())
	s.persistLocked(ctx, key, state)
	unlock()

	if discarded != nil {
		s.dropSyncer(key)
	}
	s.publish(ctx, key, state, events.KindStateChanged, nil)
	return state.Clone()
}

// SaveAndSync saves locally, then syncs under the debounce policy and
// returns the backend-confirmed state.
func (s *WizardStateService) SaveAndSync(ctx context.Context, key string, patch wizard.Patch) (*wizard.State, error) {
	state := s.SaveState(ctx, key, patch)
	return s.SyncWithBackend(ctx, key, state)
}

// ScheduleSync queues state for the next flush of key without blocking.
func (s *WizardStateService) ScheduleSync(key string, state *wizard.State) *PendingSync {
	return s.syncerFor(key).schedule(state)
}

// SyncWithBackend queues state and waits for the coalesced flush. On a
// rate-limit rejection the local state is returned with ErrRateLimited.
func (s *WizardStateService) SyncWithBackend(ctx context.Context, key string, state *wizard.State) (*wizard.State, error) {
	return s.ScheduleSync(key, state).Wait(ctx)
}

// Peek returns the stored state without creating, touching or rewriting
// it. Absent and expired states report false.
func (s *WizardStateService) Peek(ctx context.Context, key string) (*wizard.State, bool) {
	stored, err := s.repo.Load(ctx, key)
	if err != nil || stored.Expired(s.clock.Now(), s.cfg.Timeout) {
		return nil, false
	}
	return stored, true
}

// Touch refreshes LastActivity of an existing, unexpired state.
func (s *WizardStateService) Touch(ctx context.Context, key string) (*wizard.State, bool) {
	unlock := s.lockKey(key)
	defer unlock()

	stored, err := s.repo.Load(ctx, key)
	if err != nil || stored.Expired(s.clock.Now(), s.cfg.Timeout) {
		return nil, false
	}
	stored.Touch(s.clock.Now())
	s.persistLocked(ctx, key, stored)
	return stored.Clone(), true
}

// SessionContext attaches the backend tokens of the stored session to ctx
// for direct backend calls. The returned func writes back tokens the
// client refreshed in the meantime.
func (s *WizardStateService) SessionContext(ctx context.Context, key string) (context.Context, func()) {
	stored, err := s.repo.Load(ctx, key)
	if err != nil || stored == nil {
		stored = &wizard.State{}
	}
	ctx, creds := s.withCredentials(ctx, stored)
	return ctx, func() {
		if !creds.Changed() {
			return
		}
		access, refresh := creds.Tokens()
		unlock := s.lockKey(key)
		defer unlock()
		current, err := s.repo.Load(ctx, key)
		if err != nil || current.SessionID != stored.SessionID {
			return
		}
		current.Tokens = &wizard.Tokens{AccessToken: access, RefreshToken: refresh}
		s.persistLocked(ctx, key, current)
	}
}

// Clear removes the local state and drops its synchronizer. The backend
// copy is abandoned or deleted according to mode; a backend failure is
// returned after the local state is already gone.
func (s *WizardStateService) Clear(ctx context.Context, key string, mode ClearMode) error {
	unlock := s.lockKey(key)
	stored, loadErr := s.repo.Load(ctx, key)
	if err := s.repo.Delete(ctx, key); err != nil {
		s.logger.LogError(logging.ChannelWizard, "delete_state", err, map[string]any{"storageKey": logging.MaskID(key)})
	}
	unlock()

	s.dropSyncer(key)
	s.mu.Lock()
	delete(s.clientIPs, key)
	s.mu.Unlock()

	if loadErr != nil || stored == nil {
		return nil
	}
	s.publish(ctx, key, stored, events.KindStateCleared, map[string]any{"reason": "cleared"})

	if stored.ID == "" || s.backend == nil {
		return nil
	}
	ctx, _ = s.withCredentials(ctx, stored)
	switch mode {
	case ClearAbandon:
		return s.backend.AbandonSession(ctx, stored.ID)
	case ClearDelete:
		return s.backend.DeleteSession(ctx, stored.ID)
	}
	return nil
}

// Subscribe streams the events of key.
func (s *WizardStateService) Subscribe(ctx context.Context, key string) (<-chan events.Event, error) {
	return s.bus.Subscribe(ctx, key)
}

// SyncIntervals exposes the current debounce window and minimum interval
// of key's synchronizer.
func (s *WizardStateService) SyncIntervals(key string) (debounce, minInterval time.Duration) {
	return s.syncerFor(key).intervals()
}

// EvictIdleSyncers drops synchronizers unused since cutoff.
func (s *WizardStateService) EvictIdleSyncers(cutoff time.Time) int {
	s.mu.Lock()
	var idle []*syncer
	for key, sy := range s.syncers {
		if sy.idleSince(cutoff) {
			idle = append(idle, sy)
			delete(s.syncers, key)
		}
	}
	s.mu.Unlock()
	for _, sy := range idle {
		sy.close()
	}
	return len(idle)
}

// PurgeExpired removes stored states idle for longer than the timeout.
func (s *WizardStateService) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.cfg.Timeout)
	n, err := s.repo.PurgeIdle(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.EvictIdleSyncers(cutoff)
	return n, nil
}

// Timeout is the idle expiry of stored states.
func (s *WizardStateService) Timeout() time.Duration { return s.cfg.Timeout }

func (s *WizardStateService) syncerFor(key string) *syncer {
	s.mu.Lock()
	defer s.mu.Unlock()
	sy, ok := s.syncers[key]
	if !ok {
		sy = newSyncer(key, s.clock, s.cfg.Policy, s.push)
		sy.onDone = s.afterSync
		s.syncers[key] = sy
	}
	return sy
}

func (s *WizardStateService) dropSyncer(key string) {
	s.mu.Lock()
	sy, ok := s.syncers[key]
	delete(s.syncers, key)
	s.mu.Unlock()
	if ok {
		sy.close()
	}
}

func (s *WizardStateService) rememberClientIP(key, ip string) {
	if ip == "" {
		return
	}
	s.mu.Lock()
	s.clientIPs[key] = ip
	s.mu.Unlock()
}

func (s *WizardStateService) clientIP(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientIPs[key]
}

func (s *WizardStateService) withCredentials(ctx context.Context, state *wizard.State) (context.Context, *backend.Credentials) {
	var creds *backend.Credentials
	if state.Tokens != nil {
		creds = backend.NewCredentials(state.Tokens.AccessToken, state.Tokens.RefreshToken)
	} else {
		creds = backend.NewCredentials("", "")
	}
	return backend.WithCredentials(ctx, creds), creds
}

// push is the network half of a flush: create the backend session when
// the state has no server id, then PATCH the current step. The response
// is reconciled into local storage.
func (s *WizardStateService) push(ctx context.Context, key string, state *wizard.State) (*wizard.State, error) {
	marker := s.perf.StartOperation("wizard_sync", logging.MaskID(key))
	defer marker.Complete()

	if s.backend == nil {
		marker.SetError(ErrNotConfigured)
		return nil, ErrNotConfigured
	}

	outgoing := state.Clone()
	s.adoptStoredIdentity(ctx, key, outgoing)
	ctx, creds := s.withCredentials(ctx, outgoing)
	log := s.logger.WithSession(logging.ChannelSync, key)

	if outgoing.ID == "" {
		created, err := s.backend.CreateSession(ctx, backend.CreateSessionRequest{
			SessionID:      outgoing.SessionID,
			CurrentStep:    outgoing.CurrentStep,
			CompletedSteps: outgoing.CompletedSteps,
			StepData:       outgoing.StepData,
			Status:         outgoing.Status,
			IPAddress:      s.clientIP(key),
		})
		if err != nil {
			marker.SetError(err)
			log.Warn("Backend session creation failed", "error", err.Error())
			return s.reconcile(ctx, key, outgoing, nil, creds), err
		}
		outgoing.ID = created.ID
		if !created.Tokens.Empty() {
			outgoing.Tokens = created.Tokens
			creds.Set(created.Tokens.AccessToken, created.Tokens.RefreshToken)
		}
		log.Info("Backend session created", "sessionId", outgoing.SessionID, "serverId", created.ID)
	}

	server, err := s.backend.UpdateStep(ctx, outgoing.ID, backend.StepUpdateFrom(outgoing))
	if err != nil {
		marker.SetError(err)
		if backend.IsRateLimited(err) {
			log.Warn("Backend rate limited wizard sync", "step", int(outgoing.CurrentStep))
		} else {
			log.Error("Wizard sync failed", "step", int(outgoing.CurrentStep), "error", err.Error())
		}
		return s.reconcile(ctx, key, outgoing, nil, creds), err
	}
	if server.ID == "" {
		server.ID = outgoing.ID
	}
	if server.Tokens.Empty() && creds.Changed() {
		access, refresh := creds.Tokens()
		server.Tokens = &wizard.Tokens{AccessToken: access, RefreshToken: refresh}
	}

	marker.SetSuccess(true)
	log.Debug("Wizard state synced", "serverId", outgoing.ID, "step", int(server.CurrentStep))
	return s.reconcile(ctx, key, outgoing, server, creds), nil
}

// adoptStoredIdentity fills the server id and tokens of a state queued
// before an earlier flush created the backend session.
func (s *WizardStateService) adoptStoredIdentity(ctx context.Context, key string, outgoing *wizard.State) {
	unlock := s.lockKey(key)
	defer unlock()
	local, err := s.repo.Load(ctx, key)
	if err != nil || local.SessionID != outgoing.SessionID {
		return
	}
	if outgoing.ID == "" {
		outgoing.ID = local.ID
	}
	if outgoing.Tokens.Empty() && !local.Tokens.Empty() {
		outgoing.Tokens = local.Tokens
	}
}

// reconcile writes the outcome of a flush into local storage. The server
// copy overwrites the local one unless a newer state is already queued,
// in which case only the server id and tokens are carried over so the
// queued intent is not regressed. A flush for a session that was replaced
// meanwhile is not written back.
func (s *WizardStateService) reconcile(ctx context.Context, key string, outgoing, server *wizard.State, creds *backend.Credentials) *wizard.State {
	unlock := s.lockKey(key)
	defer unlock()

	local, err := s.repo.Load(ctx, key)
	if err != nil || local.SessionID != outgoing.SessionID {
		if server != nil {
			return server.Clone()
		}
		return outgoing
	}

	if server == nil {
		changed := false
		if local.ID == "" && outgoing.ID != "" {
			local.ID = outgoing.ID
			changed = true
		}
		if creds.Changed() {
			access, refresh := creds.Tokens()
			if access == "" && refresh == "" {
				local.Tokens = nil
			} else {
				local.Tokens = &wizard.Tokens{AccessToken: access, RefreshToken: refresh}
			}
			changed = true
		}
		if changed {
			s.persistLocked(ctx, key, local)
		}
		return local
	}

	if s.hasQueued(key) {
		local.ID = server.ID
		if !server.Tokens.Empty() {
			local.Tokens = server.Tokens
		}
		local.CompleteSteps(server.CompletedSteps...)
	} else {
		local.AdoptServer(server)
	}
	s.persistLocked(ctx, key, local)
	return local.Clone()
}

func (s *WizardStateService) hasQueued(key string) bool {
	s.mu.Lock()
	sy, ok := s.syncers[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	sy.mu.Lock()
	defer sy.mu.Unlock()
	return sy.pending != nil
}

func (s *WizardStateService) afterSync(key string, state *wizard.State, err error) {
	ctx := context.Background()
	if err != nil {
		data := map[string]any{"error": err.Error()}
		if backend.IsRateLimited(err) {
			data["rateLimited"] = true
		}
		if state == nil {
			state = &wizard.State{}
		}
		s.publish(ctx, key, state, events.KindSyncFailed, data)
		return
	}
	s.publish(ctx, key, state, events.KindStateSynced, map[string]any{"serverId": state.ID})
}

func (s *WizardStateService) publish(ctx context.Context, key string, state *wizard.State, kind events.Kind, data map[string]any) {
	if s.bus == nil || state == nil {
		return
	}
	ev := events.Event{
		Kind:       kind,
		StorageKey: key,
		SessionID:  state.SessionID,
		Step:       int(state.CurrentStep),
		At:         s.clock.Now(),
		Data:       data,
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.Wizard().Warn("Failed to publish wizard event", "kind", kind, "error", err.Error())
	}
}
