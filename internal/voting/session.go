package voting

import (
	"fmt"
	"sync"
	"time"

	"github.com/gosuda/agentfleet/internal/errs"
)

// Session is one VotingSession: a single logical writer guarded by a mutex,
// matching spec.md §5's "mutations are serialized per session" requirement.
// All mutation methods hold the lock only across synchronous, non-suspending
// work, never across a suspension point.
type Session struct {
	cfg Config

	mu      sync.Mutex
	status  Status
	ballots map[string]Ballot
	results *Results

	timer     *time.Timer
	timerOnce sync.Once

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewSession opens a session from cfg. The caller is responsible for
// arranging for Close to be called at cfg.Deadline (e.g. via StartTimer).
func NewSession(cfg Config) *Session {
	return &Session{
		cfg:     cfg,
		status:  StatusOpen,
		ballots: make(map[string]Ballot),
		closeCh: make(chan struct{}),
	}
}

// Done returns a channel that is closed once the session transitions out
// of StatusOpen, letting callers (e.g. the engine's GetResults) block until
// a deadline-driven or explicit Close without polling.
func (s *Session) Done() <-chan struct{} { return s.closeCh }

// StartTimer arms a timer that closes the session at cfg.Deadline. It is
// idempotent; only the first call arms a timer.
func (s *Session) StartTimer() {
	s.timerOnce.Do(func() {
		d := time.Until(s.cfg.Deadline)
		if d < 0 {
			d = 0
		}
		s.timer = time.AfterFunc(d, func() { s.Close() })
	})
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.cfg.SessionID }

// Status reports the session's current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CastVote ingests a ballot, replacing any previous ballot from the same
// agent (last write wins, including for tie-break timestamp purposes, per
// the spec's resolved open question).
func (s *Session) CastVote(b Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusOpen {
		return errs.New(errs.KindVoteSessionClosed, "voting.Session.CastVote",
			fmt.Errorf("session %q is %s", s.cfg.SessionID, s.status))
	}
	if !time.Now().Before(s.cfg.Deadline) {
		return errs.New(errs.KindVoteDeadlinePassed, "voting.Session.CastVote",
			fmt.Errorf("session %q deadline has passed", s.cfg.SessionID))
	}
	if err := validateBallot(s.cfg, &b); err != nil {
		return err
	}

	s.ballots[b.AgentID] = b
	return nil
}

// Close transitions the session out of StatusOpen, computing results.
// Idempotent: calling Close on an already-closed session returns its
// existing results without recomputation.
func (s *Session) Close() (Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusOpen {
		if s.results != nil {
			return *s.results, nil
		}
		return Results{}, errs.New(errs.KindVoteSessionClosed, "voting.Session.Close",
			fmt.Errorf("session %q already closed with no recorded results", s.cfg.SessionID))
	}

	detail, ok := checkQuorum(s.cfg.Quorum, s.ballots)
	if !ok {
		s.status = StatusClosedQuorumFailed
		s.results = &Results{
			Status:       StatusClosedQuorumFailed,
			Algorithm:    s.cfg.Algorithm,
			QuorumDetail: &detail,
		}
		if s.timer != nil {
			s.timer.Stop()
		}
		s.closeOnce.Do(func() { close(s.closeCh) })
		return *s.results, nil
	}

	results := tally(s.cfg, s.ballots)
	results.QuorumDetail = &detail
	s.status = StatusClosedSuccess
	s.results = &results
	if s.timer != nil {
		s.timer.Stop()
	}
	s.closeOnce.Do(func() { close(s.closeCh) })
	return *s.results, nil
}

// Results returns the session's results if it has closed.
func (s *Session) Results() (Results, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return Results{}, false
	}
	return *s.results, true
}

// BallotCount reports how many ballots have been accepted so far.
func (s *Session) BallotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ballots)
}
