package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/scythe504/hotseat-backend/internal"
	"github.com/scythe504/hotseat-backend/internal/metrics"
	"github.com/scythe504/hotseat-backend/internal/store"
	"github.com/scythe504/hotseat-backend/internal/utils"
)

// ErrClosed is returned once the manager, or the session being addressed, has
// been torn down.
var ErrClosed = errors.New("session engine closed")

const (
	maxCodeAttempts    = 5
	defaultResultsPath = "/results/"
)

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns the live session engines of this process, keyed by join code.
// Sessions are loaded from the store on first use and keep their round timer
// until the session is evicted or the manager is closed.
type Manager struct {
	store       Store
	broadcaster Broadcaster
	clock       clockwork.Clock
	metrics     *metrics.EngineMetrics
	newCode     func() string
	resultsPath string

	mu       sync.RWMutex
	sessions map[string]*session
	rounds   map[uuid.UUID]string
	closed   bool

	loads singleflight.Group
}

type Option func(*Manager)

func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

func WithMetrics(em *metrics.EngineMetrics) Option {
	return func(m *Manager) { m.metrics = em }
}

// WithCodeGenerator replaces the random join code generator.
func WithCodeGenerator(fn func() string) Option {
	return func(m *Manager) { m.newCode = fn }
}

// WithResultsPath sets the prefix of the redirect URL sent after a session
// finishes. The session code is appended to it.
func WithResultsPath(path string) Option {
	return func(m *Manager) { m.resultsPath = path }
}

func NewManager(st Store, broadcaster Broadcaster, opts ...Option) *Manager {
	m := &Manager{
		store:       st,
		broadcaster: broadcaster,
		clock:       clockwork.NewRealClock(),
		newCode:     utils.GenerateCode,
		resultsPath: defaultResultsPath,
		sessions:    make(map[string]*session),
		rounds:      make(map[uuid.UUID]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.NewEngineMetrics(prometheus.NewRegistry())
	}
	return m
}

// CreateSession persists a new LOBBY session under a fresh join code.
func (m *Manager) CreateSession(ctx context.Context, title string) (internal.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return internal.Session{}, fmt.Errorf("%w: title is required", internal.ErrInvalidCommand)
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		info := internal.Session{
			ID:        uuid.New(),
			Code:      m.newCode(),
			Title:     title,
			Status:    internal.StatusLobby,
			CreatedAt: m.clock.Now(),
		}

		err := m.store.CreateSession(ctx, info)
		if errors.Is(err, store.ErrConflict) {
			log.Debug().Str("session_code", info.Code).Int("attempt", attempt).Msg("[CreateSession] code collision, retrying")
			continue
		}
		if err != nil {
			m.metrics.PersistenceErrors.WithLabelValues("create_session").Inc()
			return internal.Session{}, fmt.Errorf("create session: %w", err)
		}

		if err := m.register(newSession(m, info)); err != nil {
			return internal.Session{}, err
		}
		m.metrics.SessionsCreated.Inc()
		log.Info().Str("session_code", info.Code).Str("title", title).Msg("[CreateSession] session created")
		return info, nil
	}
	return internal.Session{}, fmt.Errorf("create session: no free join code after %d attempts", maxCodeAttempts)
}

func (m *Manager) register(s *session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.sessions[s.info.Code] = s
	for _, r := range s.rounds {
		m.rounds[r.ID] = s.info.Code
	}
	m.metrics.LiveSessions.Inc()
	return nil
}

func (m *Manager) indexRound(roundID uuid.UUID, code string) {
	m.mu.Lock()
	m.rounds[roundID] = code
	m.mu.Unlock()
}

// lookup returns the live session for code, loading it from the store if this
// process has not seen it yet. Concurrent loads of one code are collapsed.
func (m *Manager) lookup(ctx context.Context, code string) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[code]
	closed := m.closed
	m.mu.RUnlock()
	if ok {
		return s, nil
	}
	if closed {
		return nil, ErrClosed
	}

	v, err, _ := m.loads.Do(code, func() (any, error) {
		m.mu.RLock()
		s, ok := m.sessions[code]
		m.mu.RUnlock()
		if ok {
			return s, nil
		}

		s, err := m.load(ctx, code)
		if err != nil {
			return nil, err
		}
		if err := m.register(s); err != nil {
			return nil, err
		}
		s.resume()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session), nil
}

func (m *Manager) load(ctx context.Context, code string) (*session, error) {
	info, err := m.store.SessionByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, internal.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", code, err)
	}

	s := newSession(m, info)

	participants, err := m.store.Participants(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("load participants of %s: %w", code, err)
	}
	s.participants = participants

	rounds, err := m.store.Rounds(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("load rounds of %s: %w", code, err)
	}
	s.rounds = rounds

	for _, r := range rounds {
		votes, err := m.store.Votes(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("load votes of round %s: %w", r.ID, err)
		}
		for _, v := range votes {
			s.ledger.Record(v.RoundID, v.ParticipantID, v.Score)
		}
	}

	log.Info().
		Str("session_code", code).
		Int("participants", len(participants)).
		Int("rounds", len(rounds)).
		Msg("[lookup] session loaded from store")
	return s, nil
}

// sessionForRound resolves the live session that owns roundID.
func (m *Manager) sessionForRound(ctx context.Context, roundID uuid.UUID) (*session, error) {
	m.mu.RLock()
	code, ok := m.rounds[roundID]
	m.mu.RUnlock()

	if !ok {
		round, err := m.store.Round(ctx, roundID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, internal.ErrRoundNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load round %s: %w", roundID, err)
		}
		info, err := m.store.SessionByID(ctx, round.SessionID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, internal.ErrRoundNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load session of round %s: %w", roundID, err)
		}
		code = info.Code
	}

	s, err := m.lookup(ctx, code)
	if errors.Is(err, internal.ErrSessionNotFound) {
		return nil, internal.ErrRoundNotFound
	}
	return s, err
}

// Evict tears down one session: its round timer stops and the next access
// reloads it from the store.
func (m *Manager) Evict(code string) {
	m.mu.Lock()
	s, ok := m.sessions[code]
	if ok {
		m.forget(s)
	}
	m.mu.Unlock()

	if ok {
		s.teardown()
		log.Info().Str("session_code", code).Msg("[Evict] session evicted")
	}
}

// Close tears down every session and waits for all round timers to exit.
// The manager rejects further work afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	for _, s := range sessions {
		m.forget(s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.teardown()
	}
	log.Info().Int("sessions", len(sessions)).Msg("[Close] session engine stopped")
}

// forget drops s from the indexes. Caller holds m.mu.
func (m *Manager) forget(s *session) {
	delete(m.sessions, s.info.Code)
	for id, code := range m.rounds {
		if code == s.info.Code {
			delete(m.rounds, id)
		}
	}
	m.metrics.LiveSessions.Dec()
}
