package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datasen-project/datasen/internal/backend"
	"github.com/datasen-project/datasen/internal/dataset"
	"github.com/datasen-project/datasen/internal/memory"
	"github.com/datasen-project/datasen/internal/metrics"
	"github.com/datasen-project/datasen/internal/prompt"
)

// TurnSink receives every successfully recorded turn, e.g. for mirroring to
// redis or archiving to postgres. Sinks must tolerate failure without
// affecting the conversation.
type TurnSink func(sessionID string, turn memory.Turn)

// Manager owns the live sessions of one service process.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	asm               *prompt.Assembler
	invoker           backend.Invoker
	maxTurns          int
	inactivityTimeout time.Duration
	sink              TurnSink
	onExpire          func(*Session)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Assembler         *prompt.Assembler
	Invoker           backend.Invoker
	MaxTurns          int
	InactivityTimeout time.Duration
	Sink              TurnSink
}

// NewManager creates an empty session registry.
func NewManager(opts ManagerOptions) *Manager {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 10
	}
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		asm:               opts.Assembler,
		invoker:           opts.Invoker,
		maxTurns:          opts.MaxTurns,
		inactivityTimeout: opts.InactivityTimeout,
		sink:              opts.Sink,
	}
}

// SetExpireHook registers a callback invoked for each session the janitor
// evicts.
func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create starts a new session grounded on the given summary.
func (m *Manager) Create(summary *dataset.Summary) *Session {
	return m.register(uuid.NewString(), summary, nil)
}

// Resume starts a session under a known ID, seeding its buffer with
// previously mirrored turns (oldest first). Used after a restart. If the ID
// is already live the existing session is returned untouched; replacing it
// would discard its buffer and race any in-flight ask.
func (m *Manager) Resume(id string, summary *dataset.Summary, turns []memory.Turn) *Session {
	return m.register(id, summary, turns)
}

func (m *Manager) register(id string, summary *dataset.Summary, turns []memory.Turn) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[id]; ok {
		return existing
	}

	now := time.Now().UTC()
	s := &Session{
		ID:             id,
		summary:        summary,
		mem:            memory.NewBuffer(m.maxTurns),
		asm:            m.asm,
		invoker:        m.invoker,
		createdAt:      now,
		lastActivityAt: now,
	}
	if len(turns) > 0 {
		s.mem.Restore(turns)
	}
	if m.sink != nil {
		sink := m.sink
		s.onTurn = func(t memory.Turn) { sink(id, t) }
	}

	m.sessions[id] = s
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	return s
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// End removes the session from the registry. Its buffer is dropped; any
// external mirror expires on its own TTL.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartJanitor evicts sessions idle longer than the inactivity timeout until
// ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *Manager) sweep() {
	cutoff := time.Now().UTC().Add(-m.inactivityTimeout)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastActivityAt().Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	hook := m.onExpire
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range expired {
		slog.Info("session expired", "session_id", s.ID, "last_activity", s.LastActivityAt())
		if hook != nil {
			hook(s)
		}
	}
}
