package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/feedsync/internal/bus"
	"github.com/roach88/feedsync/internal/poison"
)

// AccountRemover is implemented by repositories that can wipe an account.
type AccountRemover interface {
	RemoveAccount(accountID string) error
}

// Manager owns the sessions of every open scope and the shared poisoning
// detector. Sessions run on goroutines tied to the context given to
// NewManager.
type Manager struct {
	ctx      context.Context
	repo     Repository
	updates  *bus.Bus
	detector *poison.Detector
	ui       *Dispatcher
	opts     []Option

	mu       sync.Mutex
	sessions map[Scope]*Session
	wg       sync.WaitGroup
}

// NewManager creates a manager. opts apply to every session it opens.
func NewManager(ctx context.Context, repo Repository, updates *bus.Bus, detector *poison.Detector, ui *Dispatcher, opts ...Option) *Manager {
	if detector == nil {
		detector = poison.NewDetector()
	}
	return &Manager{
		ctx:      ctx,
		repo:     repo,
		updates:  updates,
		detector: detector,
		ui:       ui,
		opts:     opts,
		sessions: make(map[Scope]*Session),
	}
}

// Detector returns the detector shared by all sessions.
func (m *Manager) Detector() *poison.Detector {
	return m.detector
}

// Open returns the running session for scope, starting one if needed.
func (m *Manager) Open(scope Scope, delegate Delegate) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[scope]; ok {
		return s
	}

	opts := m.opts
	if m.ui != nil {
		opts = append(append([]Option{}, m.opts...), WithDispatcher(m.ui))
	}
	s := New(scope, m.repo, m.updates, m.detector, delegate, opts...)
	m.sessions[scope] = s

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = s.Run(m.ctx)
	}()

	slog.Debug("session opened", "session_id", s.ID(), "scope", scope.String())
	return s
}

// Get returns the open session for scope.
func (m *Manager) Get(scope Scope) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[scope]
	return s, ok
}

// Sessions returns every open session.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Close cleans and forgets the session for scope.
func (m *Manager) Close(scope Scope) {
	m.mu.Lock()
	s, ok := m.sessions[scope]
	delete(m.sessions, scope)
	m.mu.Unlock()

	if ok {
		s.Clean()
	}
}

// RemoveAccount closes the account's sessions, clears its detector cache
// and wipes it from the repository when supported.
func (m *Manager) RemoveAccount(accountID string) error {
	m.mu.Lock()
	var closing []*Session
	for scope, s := range m.sessions {
		if scope.AccountID == accountID {
			closing = append(closing, s)
			delete(m.sessions, scope)
		}
	}
	m.mu.Unlock()

	for _, s := range closing {
		s.Clean()
	}
	m.detector.RemoveAccount(accountID)

	if r, ok := m.repo.(AccountRemover); ok {
		return r.RemoveAccount(accountID)
	}
	return nil
}

// Shutdown cleans every session and waits for their loops to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[Scope]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Clean()
	}
	m.wg.Wait()
}
