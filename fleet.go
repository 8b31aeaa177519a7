package agentfleet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/agentfleet/internal/audit"
	"github.com/gosuda/agentfleet/internal/broker"
	"github.com/gosuda/agentfleet/internal/errs"
	"github.com/gosuda/agentfleet/internal/orchestration"
)

// Fleet is the top-level embeddable runtime: one AMQP connection shared by
// every agent registered against it. Construct one per process with New,
// register agents with RegisterAgent, and before exiting call Shutdown on
// each Agent and then Close on the Fleet.
type Fleet struct {
	cfg    Config
	broker *broker.Client
	audit  *audit.Log
}

// New connects to the broker named by cfg.BrokerURL and returns a Fleet
// ready to register agents on. The connection is shared by every agent
// registered against the returned Fleet, per spec.md §3's single-owner rule
// for the broker connection.
func New(ctx context.Context, cfg Config) (*Fleet, error) {
	cfg = cfg.withDefaults()
	if cfg.BrokerURL == "" {
		return nil, errs.New(errs.KindConfig, "agentfleet.New", errors.New("BrokerURL is required"))
	}

	c := broker.New(broker.Config{
		URL:            cfg.BrokerURL,
		BackoffBaseMS:  cfg.ReconnectBaseMS,
		BackoffCapMS:   cfg.ReconnectCapMS,
		ConfirmTimeout: cfg.publishConfirmTimeout(),
		Prefetch:       cfg.Prefetch,
		MaxAttempts:    cfg.ReconnectMaxAttempts,
	})
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	return &Fleet{cfg: cfg, broker: c, audit: audit.New()}, nil
}

// RegisterAgent asserts topology and registers a new agent with the given
// role, returning a handle scoped to that agent. name defaults to a
// generated id if empty; level defaults to 0 (non-expert, per spec.md §4.3's
// agent_level >= 4 expert threshold).
func (f *Fleet) RegisterAgent(role orchestration.Role, name string, level int) (*Agent, error) {
	if name == "" {
		name = uuid.NewString()
	}

	engine, err := orchestration.New(f.broker, orchestration.Config{
		AgentID:           name,
		Role:              role,
		MaxRetries:        f.cfg.MaxRetries,
		Prefetch:          f.cfg.Prefetch,
		HeartbeatInterval: f.cfg.heartbeatInterval(),
		AuditLog:          f.audit,
	})
	if err != nil {
		return nil, err
	}

	return &Agent{ID: name, Role: role, Level: level, fleet: f, engine: engine}, nil
}

// Fatal returns a channel that receives exactly one error if the broker
// supervisor exhausts its reconnect attempts, per spec.md §4.1. An embedder
// should select on this alongside its own lifecycle signals.
func (f *Fleet) Fatal() <-chan error {
	return f.broker.Fatal()
}

// Close tears down the broker connection after sleeping for the full drain
// duration; in-flight publishes are not tracked. Call this only after every
// registered Agent has been shut down.
func (f *Fleet) Close(drain time.Duration) error {
	return f.broker.Close(drain)
}
