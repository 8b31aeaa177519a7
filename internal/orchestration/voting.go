package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentfleet/internal/broker"
	"github.com/gosuda/agentfleet/internal/envelope"
	"github.com/gosuda/agentfleet/internal/errs"
	"github.com/gosuda/agentfleet/internal/voting"
)

// voteInitiatorTable remembers, for each voting session a ParticipateVote
// loop has observed, which agent announced it — so a later CastVote call
// knows which private results queue to route the ballot to without the
// caller having to thread the initiator id through by hand.
type voteInitiatorTable struct {
	mu   sync.RWMutex
	byID map[string]string
}

func newVoteInitiatorTable() *voteInitiatorTable {
	return &voteInitiatorTable{byID: make(map[string]string)}
}

func (t *voteInitiatorTable) put(sessionID, initiatorAgentID string) {
	t.mu.Lock()
	t.byID[sessionID] = initiatorAgentID
	t.mu.Unlock()
}

func (t *voteInitiatorTable) get(sessionID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byID[sessionID]
	return id, ok
}

// InitiateVote publishes a voting_start announcement to the voting fanout
// exchange, opens a local VotingSystem session, and starts a background
// collector that ingests ballots from this agent's private results queue
// until the session's deadline. Leader-role only.
func (e *Engine) InitiateVote(ctx context.Context, cfg voting.Config) (string, error) {
	if err := Check(e.cfg.Role, CapInitiateVote); err != nil {
		return "", errs.New(errs.KindConfig, "orchestration.Engine.InitiateVote", err)
	}

	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	queue := votingResultsQueue(e.cfg.AgentID)
	if err := e.broker.AssertTaskQueue(queue, broker.QueueOpts{Durable: true}); err != nil {
		return "", err
	}
	if err := e.broker.Bind(queue, ExchangeVotingResults, e.cfg.AgentID); err != nil {
		return "", err
	}

	sess := e.votes.Open(cfg)

	payload, err := envelope.EncodePayload(envelope.VotingStartPayload{
		SessionID: cfg.SessionID,
		Topic:     cfg.Topic,
		Question:  cfg.Question,
		Options:   cfg.Options,
		Deadline:  cfg.Deadline.UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	env := envelope.Envelope{
		ID:      uuid.NewString(),
		Type:    envelope.TypeVotingStart,
		From:    e.cfg.AgentID,
		TS:      time.Now().UnixMilli(),
		Payload: payload,
	}
	wire, err := envelope.Marshal(env)
	if err != nil {
		return "", err
	}
	if err := e.broker.PublishToExchange(ctx, ExchangeVoting, "", wire); err != nil {
		return "", err
	}
	e.stats.votingOpened.Add(1)

	e.consumerWG.Add(1)
	go func() {
		defer e.consumerWG.Done()
		e.collectVotes(sess, queue, cfg.Deadline)
	}()

	return cfg.SessionID, nil
}

// collectVotes consumes the initiator's private results queue until
// deadline, ingesting each ballot into sess and appending an audit record
// for every accepted one.
func (e *Engine) collectVotes(sess *voting.Session, queue string, deadline time.Time) {
	collectCtx, cancel := context.WithDeadline(e.ctx, deadline)
	defer cancel()

	err := e.broker.Consume(collectCtx, queue, func(dctx context.Context, d broker.Delivery) broker.Action {
		env, err := envelope.Unmarshal(d.Body)
		if err != nil {
			return broker.ActionRejectNoRequeue
		}
		var vote envelope.VotePayload
		if err := envelope.DecodePayload(env, &vote); err != nil {
			return broker.ActionRejectNoRequeue
		}
		if vote.SessionID != sess.ID() {
			return broker.ActionAck
		}

		ballot := voting.Ballot{
			AgentID:    env.From,
			AgentLevel: vote.AgentLevel,
			Timestamp:  time.UnixMilli(env.TS),
			Choice:     vote.Choice,
			Allocation: vote.Allocation,
			Rankings:   vote.Rankings,
		}
		if vote.Confidence != nil {
			ballot.Confidence = *vote.Confidence
		}

		if err := sess.CastVote(ballot); err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID()).Str("agent_id", env.From).
				Msg("orchestration.Engine: rejected ballot")
			e.stats.ballotsRejected.Add(1)
			return broker.ActionAck
		}

		e.stats.ballotsAccepted.Add(1)
		e.audit.Append(uuid.NewString(), sess.ID(), env.From, string(d.Body), ballot.Timestamp)
		return broker.ActionAck
	})
	if err != nil && collectCtx.Err() == nil {
		log.Error().Err(err).Str("session_id", sess.ID()).Msg("orchestration.Engine: vote collection consumer failed")
	}

	sess.Close()
	e.stats.votingClosed.Add(1)
}

// GetResults blocks until sessionID closes (by deadline or explicit Close),
// then returns its tally. Only the initiating agent holds the session
// locally, so this must be called on the same Engine that called
// InitiateVote.
func (e *Engine) GetResults(ctx context.Context, sessionID string) (voting.Results, error) {
	sess, err := e.votes.Get(sessionID)
	if err != nil {
		return voting.Results{}, err
	}

	select {
	case <-sess.Done():
	case <-ctx.Done():
		return voting.Results{}, errs.New(errs.KindCancelled, "orchestration.Engine.GetResults", ctx.Err())
	}

	return e.votes.Results(sessionID)
}

// ParticipateVote consumes voting_start announcements on an exclusive
// queue bound to the voting fanout exchange. For each, it remembers the
// announcing agent as the session's initiator and invokes propose; if
// propose returns ok, the resulting ballot is routed back to the
// initiator's private results queue. Worker/collaborator only.
func (e *Engine) ParticipateVote(ctx context.Context, propose func(topic, question string, options []string) (voting.Ballot, bool)) error {
	if err := Check(e.cfg.Role, CapParticipateVote); err != nil {
		return errs.New(errs.KindConfig, "orchestration.Engine.ParticipateVote", err)
	}

	queue, err := e.broker.AssertExclusiveQueue()
	if err != nil {
		return err
	}
	if err := e.broker.Bind(queue, ExchangeVoting, ""); err != nil {
		return err
	}

	return e.broker.Consume(ctx, queue, func(dctx context.Context, d broker.Delivery) broker.Action {
		env, err := envelope.Unmarshal(d.Body)
		if err != nil {
			return broker.ActionRejectNoRequeue
		}
		var start envelope.VotingStartPayload
		if err := envelope.DecodePayload(env, &start); err != nil {
			return broker.ActionRejectNoRequeue
		}
		e.voteInits.put(start.SessionID, env.From)

		ballot, ok := propose(start.Topic, start.Question, start.Options)
		if !ok {
			return broker.ActionAck
		}
		ballot.AgentID = e.cfg.AgentID
		if err := e.CastVote(dctx, start.SessionID, ballot); err != nil {
			log.Error().Err(err).Str("session_id", start.SessionID).Msg("orchestration.Engine: failed to cast vote")
		}
		return broker.ActionAck
	})
}

// CastVote publishes ballot to sessionID's initiator, as previously
// observed via ParticipateVote. Worker/collaborator only.
func (e *Engine) CastVote(ctx context.Context, sessionID string, ballot voting.Ballot) error {
	if err := Check(e.cfg.Role, CapParticipateVote); err != nil {
		return errs.New(errs.KindConfig, "orchestration.Engine.CastVote", err)
	}

	initiatorAgentID, ok := e.voteInits.get(sessionID)
	if !ok {
		return errs.New(errs.KindVoteNotFound, "orchestration.Engine.CastVote",
			fmt.Errorf("no known initiator for voting session %q; did ParticipateVote observe it?", sessionID))
	}

	var confidence *float64
	if ballot.Choice != "" {
		c := ballot.Confidence
		confidence = &c
	}
	payload, err := envelope.EncodePayload(envelope.VotePayload{
		SessionID:  sessionID,
		Choice:     ballot.Choice,
		Confidence: confidence,
		Allocation: ballot.Allocation,
		Rankings:   ballot.Rankings,
		AgentLevel: ballot.AgentLevel,
	})
	if err != nil {
		return err
	}
	env := envelope.Envelope{
		ID:      uuid.NewString(),
		Type:    envelope.TypeVotingVote,
		From:    e.cfg.AgentID,
		TS:      time.Now().UnixMilli(),
		Payload: payload,
	}
	wire, err := envelope.Marshal(env)
	if err != nil {
		return err
	}

	return e.broker.PublishToExchange(ctx, ExchangeVotingResults, initiatorAgentID, wire)
}
