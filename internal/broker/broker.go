// Package broker implements the connection and channel supervisor
// (spec.md §4.1) on top of RabbitMQ's AMQP 0-9-1 client. It owns exactly one
// TCP connection and one publishing channel, reconnecting with exponential
// backoff and re-asserting topology on every reconnect, the way
// dihedron-rabbit's Rabbit type watches its NotifyClose channel and rebuilds
// channels on the other side of a drop.
package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentfleet/internal/errs"
)

// Config configures a Client.
type Config struct {
	URL string

	// BackoffBase and BackoffCap bound the reconnect delay schedule (ms):
	// min(BackoffBase * 2^(n-1), BackoffCap).
	BackoffBaseMS int64
	BackoffCapMS  int64

	// ConfirmTimeout bounds how long Publish waits for a broker confirm.
	ConfirmTimeout time.Duration

	// Prefetch is applied as the channel's QoS prefetch count.
	Prefetch int

	// MaxAttempts bounds consecutive reconnect failures before the
	// supervisor surfaces a fatal error to the embedder (spec.md §4.1).
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.BackoffBaseMS <= 0 {
		c.BackoffBaseMS = 200
	}
	if c.BackoffCapMS <= 0 {
		c.BackoffCapMS = 30_000
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 5 * time.Second
	}
	if c.Prefetch <= 0 {
		c.Prefetch = 16
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	return c
}

// Client is the connection and channel supervisor. It is safe for
// concurrent use; Publish/Consume/Assert* calls fail immediately with a
// KindConnect error while the client is not connected (including while a
// reconnect is in progress).
type Client struct {
	cfg Config

	mu    sync.RWMutex
	state State
	conn  *amqp.Connection
	ch    *amqp.Channel

	pubMu    sync.Mutex
	confirms chan amqp.Confirmation
	closeNC  chan *amqp.Error

	topology *topologyMemo

	reconnectAttempts atomic.Int64

	fatalOnce sync.Once
	fatal     chan error

	closeOnce sync.Once
	done      chan struct{}
}

// New constructs a Client. Call Connect to open the connection.
func New(cfg Config) *Client {
	return &Client{
		cfg:      cfg.withDefaults(),
		state:    StateDisconnected,
		topology: newTopologyMemo(),
		fatal:    make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// ReconnectAttempts reports the cumulative number of reconnect attempts
// made since the client was constructed, for the embedder's stats snapshot.
func (c *Client) ReconnectAttempts() int64 { return c.reconnectAttempts.Load() }

// Fatal returns a channel that receives exactly one error if the reconnect
// supervisor exhausts MaxAttempts consecutive failures. The embedder is
// expected to select on this alongside its own lifecycle and treat receipt
// as a signal to shut down, per spec.md §4.1: "After max_attempts
// consecutive failures, surface a fatal error to the embedder."
func (c *Client) Fatal() <-chan error { return c.fatal }

func (c *Client) surfaceFatal(err error) {
	c.fatalOnce.Do(func() {
		c.fatal <- err
		close(c.fatal)
	})
}

// State reports the client's current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Connect dials the broker, opens the publishing channel, and starts the
// background watcher that reconnects on an unexpected close.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(StateConnecting)
	if err := c.dial(); err != nil {
		c.setState(StateDisconnected)
		return errs.New(errs.KindConnect, "broker.Client.Connect", err)
	}
	c.setState(StateConnected)
	go c.watch()
	return nil
}

func (c *Client) dial() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("enable confirms: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.ch = ch
	c.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	c.closeNC = conn.NotifyClose(make(chan *amqp.Error, 1))
	c.mu.Unlock()

	return c.replayTopology(ch)
}

func (c *Client) replayTopology(ch *amqp.Channel) error {
	names, entries, binds := c.topology.snapshot()
	for _, name := range names {
		d := entries[name]
		if err := declareOne(ch, name, d); err != nil {
			return fmt.Errorf("replay topology for %q: %w", name, err)
		}
	}
	for _, b := range binds {
		if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("replay binding %q -> %q: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

func declareOne(ch *amqp.Channel, name string, d declaration) error {
	switch d.kind {
	case "queue":
		_, err := ch.QueueDeclare(name, d.opts.Durable, d.opts.AutoDelete, d.opts.Exclusive, false, d.opts.args())
		return err
	case "fanout":
		return ch.ExchangeDeclare(name, "fanout", true, false, false, false, nil)
	case "topic":
		return ch.ExchangeDeclare(name, "topic", true, false, false, false, nil)
	case "direct":
		return ch.ExchangeDeclare(name, "direct", true, false, false, false, nil)
	default:
		return fmt.Errorf("unknown topology kind %q", d.kind)
	}
}

// watch runs for the lifetime of the client, reconnecting with exponential
// backoff whenever the connection closes unexpectedly.
func (c *Client) watch() {
	for {
		select {
		case <-c.done:
			return
		case err, ok := <-c.closeNC:
			if !ok {
				return
			}
			if c.State() == StateClosing {
				return
			}
			log.Error().Err(err).Msg("broker.Client: connection closed, reconnecting")
			c.reconnectLoop()
		}
	}
}

func (c *Client) reconnectLoop() {
	c.setState(StateReconnecting)
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		delay := backoffDelay(attempt, c.cfg.BackoffBaseMS, c.cfg.BackoffCapMS)
		time.Sleep(time.Duration(delay) * time.Millisecond)

		c.reconnectAttempts.Add(1)
		if err := c.dial(); err != nil {
			log.Error().Err(err).Int("attempt", attempt).Msg("broker.Client: reconnect attempt failed")
			continue
		}
		c.setState(StateConnected)
		log.Info().Int("attempt", attempt).Msg("broker.Client: reconnected")
		return
	}

	c.setState(StateDisconnected)
	err := errs.New(errs.KindConnect, "broker.Client.reconnectLoop",
		fmt.Errorf("exhausted %d reconnect attempts", c.cfg.MaxAttempts))
	log.Error().Err(err).Msg("broker.Client: reconnect attempts exhausted, surfacing fatal error")
	c.surfaceFatal(err)
}

// Close stops the watcher, sleeps for the full drain duration, then closes
// the channel and connection. In-flight publishes are not tracked: Close
// does not return early when they settle and does not wait past drain.
func (c *Client) Close(drain time.Duration) error {
	c.setState(StateClosing)
	c.closeOnce.Do(func() { close(c.done) })

	if drain > 0 {
		time.Sleep(drain)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.state = StateDisconnected
	if firstErr != nil {
		return errs.New(errs.KindConnect, "broker.Client.Close", firstErr)
	}
	return nil
}

func (c *Client) channel() (*amqp.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected || c.ch == nil {
		return nil, errs.New(errs.KindConnect, "broker.Client", fmt.Errorf("not connected (state=%s)", c.state))
	}
	return c.ch, nil
}
