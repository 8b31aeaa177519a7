package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentfleet/internal/errs"
)

// Action is the disposition a Handler returns for a delivered message,
// matching the task lifecycle's three terminal transitions (spec.md §4.2).
type Action int

const (
	ActionAck Action = iota
	ActionNackRequeue
	ActionRejectNoRequeue
)

// Delivery is the subset of an AMQP delivery exposed to handlers.
type Delivery struct {
	Body       []byte
	Headers    map[string]any
	RoutingKey string
}

// Handler processes one delivered message and returns its disposition.
type Handler func(ctx context.Context, d Delivery) Action

// Consume starts a consumer on queue and blocks, dispatching each delivery
// to handler, until ctx is cancelled or the channel closes. It is meant to
// be run in its own goroutine per queue, one per priority tier for the
// orchestration engine's worker pool.
func (c *Client) Consume(ctx context.Context, queue string, handler Handler) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return errs.New(errs.KindTopology, "broker.Client.Consume", fmt.Errorf("consume %q: %w", queue, err))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errs.New(errs.KindConnect, "broker.Client.Consume", fmt.Errorf("delivery channel for %q closed", queue))
			}
			dispatch(ctx, d, handler)
		}
	}
}

func dispatch(ctx context.Context, d amqp.Delivery, handler Handler) {
	headers := make(map[string]any, len(d.Headers))
	for k, v := range d.Headers {
		headers[k] = v
	}

	action := handler(ctx, Delivery{Body: d.Body, Headers: headers, RoutingKey: d.RoutingKey})

	var err error
	switch action {
	case ActionAck:
		err = d.Ack(false)
	case ActionNackRequeue:
		err = d.Nack(false, true)
	case ActionRejectNoRequeue:
		err = d.Reject(false)
	}
	if err != nil {
		log.Error().Err(err).Str("queue", d.RoutingKey).Msg("broker.Client: failed to settle delivery")
	}
}
