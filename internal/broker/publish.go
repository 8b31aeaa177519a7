package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gosuda/agentfleet/internal/errs"
)

// publish serializes against the single shared confirms channel, the way
// bryk-io-pkg's session pairs each Publish with the next notifyConfirm
// delivery on that channel.
func (c *Client) publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	confirms := c.confirms

	err = ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return errs.New(errs.KindPublish, "broker.Client.publish", fmt.Errorf("publish to %q/%q: %w", exchange, routingKey, err))
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()

	select {
	case conf, ok := <-confirms:
		if !ok {
			return errs.New(errs.KindPublish, "broker.Client.publish", fmt.Errorf("confirm channel closed"))
		}
		if !conf.Ack {
			return errs.New(errs.KindPublish, "broker.Client.publish", fmt.Errorf("broker nacked publish (delivery tag %d)", conf.DeliveryTag))
		}
		return nil
	case <-waitCtx.Done():
		return errs.New(errs.KindPublish, "broker.Client.publish", fmt.Errorf("confirm timeout: %w", waitCtx.Err()))
	}
}

// PublishToQueue publishes body to the default exchange with routingKey set
// to queue, i.e. a direct publish to a named queue.
func (c *Client) PublishToQueue(ctx context.Context, queue string, body []byte) error {
	return c.publish(ctx, "", queue, body)
}

// PublishToExchange publishes body to exchange under routingKey.
func (c *Client) PublishToExchange(ctx context.Context, exchange, routingKey string, body []byte) error {
	return c.publish(ctx, exchange, routingKey, body)
}
