package orchestration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/agentfleet/internal/broker"
	"github.com/gosuda/agentfleet/internal/envelope"
	"github.com/gosuda/agentfleet/internal/errs"
)

// BrainstormResponse is one ordered entry in a collected brainstorm
// session.
type BrainstormResponse struct {
	AgentID    string
	Suggestion string
	TS         int64
}

// brainstormSession tracks one in-flight session on the initiator side. A
// single logical writer (its own mutex) serializes every mutation, per
// spec.md §5.
type brainstormSession struct {
	mu        sync.Mutex
	sessionID string
	deadline  time.Time
	responses []BrainstormResponse
	closed    bool
}

func (s *brainstormSession) addResponse(r BrainstormResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || time.Now().After(s.deadline) {
		return
	}
	s.responses = append(s.responses, r)
}

func (s *brainstormSession) close() []BrainstormResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	out := append([]BrainstormResponse(nil), s.responses...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return out
}

// brainstormTable is the engine's table of active brainstorm sessions
// keyed by id, per spec.md §3 ownership rules.
type brainstormTable struct {
	mu       sync.RWMutex
	sessions map[string]*brainstormSession
}

func newBrainstormTable() *brainstormTable {
	return &brainstormTable{sessions: make(map[string]*brainstormSession)}
}

func (t *brainstormTable) put(s *brainstormSession) {
	t.mu.Lock()
	t.sessions[s.sessionID] = s
	t.mu.Unlock()
}

func (t *brainstormTable) get(id string) (*brainstormSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

// StartBrainstorm publishes a brainstorm_start message to the fanout
// exchange and registers a local session to collect responses. Leader-role
// only.
func (e *Engine) StartBrainstorm(ctx context.Context, topic, question string, duration time.Duration) (string, error) {
	if err := Check(e.cfg.Role, CapInitiateBrainstorm); err != nil {
		return "", errs.New(errs.KindConfig, "orchestration.Engine.StartBrainstorm", err)
	}

	sessionID := uuid.NewString()
	deadline := time.Now().Add(duration)

	sess := &brainstormSession{sessionID: sessionID, deadline: deadline}
	e.brainstorms.put(sess)

	if err := e.broker.AssertTaskQueue(brainstormResultsQueue(sessionID), broker.QueueOpts{AutoDelete: true}); err != nil {
		return "", err
	}

	payload, err := envelope.EncodePayload(envelope.BrainstormStartPayload{
		SessionID: sessionID,
		Topic:     topic,
		Question:  question,
		Deadline:  deadline.UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	env := envelope.Envelope{
		ID:      uuid.NewString(),
		Type:    envelope.TypeBrainstormStart,
		From:    e.cfg.AgentID,
		TS:      time.Now().UnixMilli(),
		Payload: payload,
	}
	wire, err := envelope.Marshal(env)
	if err != nil {
		return "", err
	}
	if err := e.broker.PublishToExchange(ctx, ExchangeBrainstorm, "", wire); err != nil {
		return "", err
	}
	e.stats.brainstormStarted.Add(1)
	return sessionID, nil
}

// CollectBrainstorm blocks until sessionID's deadline, consuming the
// initiator's aggregator queue, then returns the ordered responses.
// Leader-role only.
func (e *Engine) CollectBrainstorm(ctx context.Context, sessionID string) ([]BrainstormResponse, error) {
	if err := Check(e.cfg.Role, CapInitiateBrainstorm); err != nil {
		return nil, errs.New(errs.KindConfig, "orchestration.Engine.CollectBrainstorm", err)
	}
	sess, ok := e.brainstorms.get(sessionID)
	if !ok {
		return nil, errs.New(errs.KindConfig, "orchestration.Engine.CollectBrainstorm", fmt.Errorf("no such brainstorm session %q", sessionID))
	}

	queue := brainstormResultsQueue(sessionID)

	collectCtx, cancel := context.WithDeadline(ctx, sess.deadline)
	defer cancel()

	err := e.broker.Consume(collectCtx, queue, func(dctx context.Context, d broker.Delivery) broker.Action {
		env, err := envelope.Unmarshal(d.Body)
		if err != nil {
			return broker.ActionRejectNoRequeue
		}
		var resp envelope.BrainstormResponsePayload
		if err := envelope.DecodePayload(env, &resp); err != nil {
			return broker.ActionRejectNoRequeue
		}
		if resp.SessionID == sessionID {
			sess.addResponse(BrainstormResponse{AgentID: env.From, Suggestion: resp.Suggestion, TS: env.TS})
			e.stats.brainstormResponses.Add(1)
		}
		return broker.ActionAck
	})
	if err != nil && collectCtx.Err() == nil {
		return nil, err
	}

	e.stats.brainstormClosed.Add(1)
	return sess.close(), nil
}

// ParticipateBrainstorm consumes brainstorm_start announcements on an
// exclusive queue bound to the fanout exchange, invoking respond for each
// and routing its suggestion back to the initiator. Worker/collaborator
// only.
func (e *Engine) ParticipateBrainstorm(ctx context.Context, respond func(topic, question string) (string, bool)) error {
	if err := Check(e.cfg.Role, CapParticipateBrainstorm); err != nil {
		return errs.New(errs.KindConfig, "orchestration.Engine.ParticipateBrainstorm", err)
	}

	queue, err := e.broker.AssertExclusiveQueue()
	if err != nil {
		return err
	}
	if err := e.broker.Bind(queue, ExchangeBrainstorm, ""); err != nil {
		return err
	}

	return e.broker.Consume(ctx, queue, func(dctx context.Context, d broker.Delivery) broker.Action {
		env, err := envelope.Unmarshal(d.Body)
		if err != nil {
			return broker.ActionRejectNoRequeue
		}
		var start envelope.BrainstormStartPayload
		if err := envelope.DecodePayload(env, &start); err != nil {
			return broker.ActionRejectNoRequeue
		}

		suggestion, ok := respond(start.Topic, start.Question)
		if !ok {
			return broker.ActionAck
		}
		e.replyBrainstorm(dctx, start.SessionID, suggestion)
		return broker.ActionAck
	})
}

// brainstormResultsQueue is the per-session queue responses are routed to
// directly (via the default exchange), analogous to voting's
// voting.results.<initiator_id> pattern but keyed by session rather than
// by initiator so concurrent sessions from the same leader never cross-talk.
func brainstormResultsQueue(sessionID string) string {
	return "agent.brainstorm.results." + sessionID
}

func (e *Engine) replyBrainstorm(ctx context.Context, sessionID, suggestion string) {
	payload, err := envelope.EncodePayload(envelope.BrainstormResponsePayload{SessionID: sessionID, Suggestion: suggestion})
	if err != nil {
		return
	}
	env := envelope.Envelope{
		ID:      uuid.NewString(),
		Type:    envelope.TypeBrainstormReply,
		From:    e.cfg.AgentID,
		TS:      time.Now().UnixMilli(),
		Payload: payload,
	}
	wire, err := envelope.Marshal(env)
	if err != nil {
		return
	}
	_ = e.broker.PublishToQueue(ctx, brainstormResultsQueue(sessionID), wire)
}
