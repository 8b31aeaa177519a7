package broker

import (
	"fmt"

	"github.com/gosuda/agentfleet/internal/errs"
)

// AssertTaskQueue declares a durable queue with the given options,
// idempotently: a repeat call with identical opts is a no-op, a repeat call
// with different opts returns a TopologyError instead of attempting a
// conflicting redeclare.
func (c *Client) AssertTaskQueue(name string, opts QueueOpts) error {
	d := declaration{kind: "queue", opts: opts}
	if err := c.topology.check(name, d); err != nil {
		return errs.New(errs.KindTopology, "broker.Client.AssertTaskQueue", err)
	}

	ch, err := c.channel()
	if err != nil {
		return err
	}
	if err := declareOne(ch, name, d); err != nil {
		return errs.New(errs.KindTopology, "broker.Client.AssertTaskQueue", err)
	}
	return nil
}

// AssertFanout declares a fanout exchange, used for brainstorm broadcast and
// voting session broadcast.
func (c *Client) AssertFanout(name string) error {
	return c.assertExchange(name, "fanout", "broker.Client.AssertFanout")
}

// AssertTopic declares a topic exchange, used for the status/heartbeat
// protocol.
func (c *Client) AssertTopic(name string) error {
	return c.assertExchange(name, "topic", "broker.Client.AssertTopic")
}

// AssertDirect declares a direct exchange, used to route voting ballots to
// an initiator's private results queue keyed by agent id.
func (c *Client) AssertDirect(name string) error {
	return c.assertExchange(name, "direct", "broker.Client.AssertDirect")
}

func (c *Client) assertExchange(name, kind, op string) error {
	d := declaration{kind: kind}
	if err := c.topology.check(name, d); err != nil {
		return errs.New(errs.KindTopology, op, err)
	}

	ch, err := c.channel()
	if err != nil {
		return err
	}
	if err := declareOne(ch, name, d); err != nil {
		return errs.New(errs.KindTopology, op, err)
	}
	return nil
}

// AssertExclusiveQueue declares a server-named, exclusive, auto-delete
// queue, used for a single agent's brainstorm/voting response inbox. The
// assigned name is returned; exclusive queues are not replayed across
// reconnects since they are scoped to this connection's lifetime.
func (c *Client) AssertExclusiveQueue() (string, error) {
	ch, err := c.channel()
	if err != nil {
		return "", err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", errs.New(errs.KindTopology, "broker.Client.AssertExclusiveQueue", err)
	}
	return q.Name, nil
}

// Bind binds queue to exchange under routingKey ("" for fanout exchanges).
func (c *Client) Bind(queue, exchange, routingKey string) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}
	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return errs.New(errs.KindTopology, "broker.Client.Bind",
			fmt.Errorf("bind %q to %q (%q): %w", queue, exchange, routingKey, err))
	}
	c.topology.recordBind(bindMemo{queue: queue, exchange: exchange, routingKey: routingKey})
	return nil
}
