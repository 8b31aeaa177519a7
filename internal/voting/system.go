package voting

import (
	"fmt"
	"sync"

	"github.com/gosuda/agentfleet/internal/errs"
)

// System is the VotingSystem component: a registry of sessions keyed by
// session ID, guarded by its own lock (the fine-grained per-map lock
// spec.md §5 requires for in-memory state).
type System struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSystem constructs an empty VotingSystem.
func NewSystem() *System {
	return &System{sessions: make(map[string]*Session)}
}

// Open creates and registers a new session from cfg, starting its deadline
// timer.
func (s *System) Open(cfg Config) *Session {
	sess := NewSession(cfg)
	s.mu.Lock()
	s.sessions[cfg.SessionID] = sess
	s.mu.Unlock()
	sess.StartTimer()
	return sess
}

// Get looks up a session by ID.
func (s *System) Get(sessionID string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.KindVoteNotFound, "voting.System.Get", fmt.Errorf("no such session %q", sessionID))
	}
	return sess, nil
}

// CastVote ingests b into the named session.
func (s *System) CastVote(sessionID string, b Ballot) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	return sess.CastVote(b)
}

// Close closes the named session explicitly (as opposed to via its
// deadline timer).
func (s *System) Close(sessionID string) (Results, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return Results{}, err
	}
	return sess.Close()
}

// Results returns the named session's results, classified as VoteNotFound
// if the session does not exist.
func (s *System) Results(sessionID string) (Results, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return Results{}, err
	}
	if r, ok := sess.Results(); ok {
		return r, nil
	}
	return Results{}, errs.New(errs.KindVoteNotFound, "voting.System.Results",
		fmt.Errorf("session %q has not closed", sessionID))
}
