package services

import (
	"context"
	"errors"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/events"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/backend"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/security"
)

// RecoverySource tells where a recovered session came from.
type RecoverySource string

const (
	RecoveredLocal   RecoverySource = "local"
	RecoveredFromURL RecoverySource = "url"
	RecoveredByIP    RecoverySource = "ip"
	RecoveredNew     RecoverySource = "new"
)

type recovery struct {
	state  *wizard.State
	source RecoverySource
}

// Recover resolves the session a page load continues. A session id in the
// URL wins, then the stored state of this browser, then the active backend
// session of the client's address, and finally a brand-new session.
// Concurrent loads for one storage key share a single recovery.
func (s *WizardStateService) Recover(ctx context.Context, key, urlSessionID, clientIP string) (*wizard.State, RecoverySource, error) {
	s.rememberClientIP(key, clientIP)

	v, err, _ := s.recoveries.Do(key+"|"+urlSessionID, func() (any, error) {
		return s.recover(ctx, key, urlSessionID, clientIP)
	})
	if err != nil {
		return nil, "", err
	}
	r := v.(recovery)
	return r.state.Clone(), r.source, nil
}

func (s *WizardStateService) recover(ctx context.Context, key, urlSessionID, clientIP string) (recovery, error) {
	marker := s.perf.StartOperation("wizard_recover", logging.MaskID(key))
	defer marker.Complete()

	log := s.logger.WithSession(logging.ChannelWizard, key).With(
		"client", security.HashClientIP(clientIP, s.cfg.IPHashKey))

	local, hasLocal := s.Touch(ctx, key)

	// The URL names this browser's own session: nothing to fetch.
	if hasLocal && (urlSessionID == "" || urlSessionID == local.SessionID) {
		marker.SetSuccess(true)
		return recovery{state: local, source: RecoveredLocal}, nil
	}

	if urlSessionID != "" && s.backend != nil {
		server, err := s.backend.GetSessionBySessionID(ctx, urlSessionID)
		switch {
		case err == nil && server.SessionID != "":
			state := s.adoptRecovered(ctx, key, server)
			log.Info("Recovered wizard session from URL", "sessionId", state.SessionID, "step", int(state.CurrentStep))
			s.publish(ctx, key, state, events.KindSessionRecovered, map[string]any{"source": string(RecoveredFromURL)})
			marker.SetSuccess(true)
			return recovery{state: state, source: RecoveredFromURL}, nil
		case err == nil, errors.Is(err, backend.ErrNotFound):
			log.Info("URL session not found, falling back", "sessionId", urlSessionID)
		default:
			log.Warn("URL session lookup failed, falling back", "sessionId", urlSessionID, "error", err.Error())
		}
	}

	if hasLocal {
		marker.SetSuccess(true)
		return recovery{state: local, source: RecoveredLocal}, nil
	}

	if clientIP != "" && s.backend != nil {
		server, err := s.backend.GetActiveSessionByIP(ctx, clientIP)
		switch {
		case err == nil && server.SessionID != "":
			state := s.adoptRecovered(ctx, key, server)
			log.Info("Recovered active wizard session by address", "sessionId", state.SessionID, "step", int(state.CurrentStep))
			s.publish(ctx, key, state, events.KindSessionRecovered, map[string]any{"source": string(RecoveredByIP)})
			marker.SetSuccess(true)
			return recovery{state: state, source: RecoveredByIP}, nil
		case err == nil, errors.Is(err, backend.ErrNotFound):
			log.Debug("No active session for client address")
		default:
			log.Warn("Active session lookup failed, starting new session", "error", err.Error())
		}
	}

	state := s.GetState(ctx, key)
	if s.backend != nil {
		s.ScheduleSync(key, state)
	}
	log.Info("Started new wizard session", "sessionId", state.SessionID)
	s.publish(ctx, key, state, events.KindSessionRecovered, map[string]any{"source": string(RecoveredNew)})
	marker.SetSuccess(true)
	return recovery{state: state, source: RecoveredNew}, nil
}

// adoptRecovered replaces the stored state of key with a server session.
// A session recovered from the backend does not inherit the synchronizer
// of whatever this browser held before.
func (s *WizardStateService) adoptRecovered(ctx context.Context, key string, server *wizard.State) *wizard.State {
	now := s.clock.Now()
	s.dropSyncer(key)

	unlock := s.lockKey(key)
	defer unlock()

	state := wizard.NewState(server.SessionID, now)
	state.AdoptServer(server)
	if !state.Status.Valid() || state.Status == wizard.StatusExpired {
		state.Status = wizard.StatusActive
	}
	state.Touch(now)
	s.persistLocked(ctx, key, state)
	return state.Clone()
}
