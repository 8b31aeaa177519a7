package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{URL: "amqp://localhost"}.withDefaults()

	assert.Equal(t, int64(200), cfg.BackoffBaseMS)
	assert.Equal(t, int64(30_000), cfg.BackoffCapMS)
	assert.Equal(t, 5*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 16, cfg.Prefetch)
	assert.Equal(t, 10, cfg.MaxAttempts)
}

func TestConfig_WithDefaults_PreservesExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		URL:            "amqp://localhost",
		BackoffBaseMS:  50,
		BackoffCapMS:   1000,
		ConfirmTimeout: time.Second,
		Prefetch:       4,
	}.withDefaults()

	assert.Equal(t, int64(50), cfg.BackoffBaseMS)
	assert.Equal(t, int64(1000), cfg.BackoffCapMS)
	assert.Equal(t, time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 4, cfg.Prefetch)
}

func TestNew_StartsDisconnected(t *testing.T) {
	t.Parallel()

	c := New(Config{URL: "amqp://localhost"})
	assert.Equal(t, StateDisconnected, c.State())
}

func TestChannel_NotConnectedReturnsClassifiedError(t *testing.T) {
	t.Parallel()

	c := New(Config{URL: "amqp://localhost"})
	_, err := c.channel()
	require.Error(t, err)
}

func TestFatal_SurfacedAfterMaxAttemptsExhausted(t *testing.T) {
	t.Parallel()

	c := New(Config{URL: "amqp://localhost:1", BackoffBaseMS: 1, BackoffCapMS: 1, MaxAttempts: 2})
	c.setState(StateReconnecting)
	c.reconnectLoop()

	select {
	case err := <-c.Fatal():
		require.Error(t, err)
		assert.Equal(t, StateDisconnected, c.State())
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fatal error after exhausting reconnect attempts")
	}
	assert.Equal(t, int64(2), c.ReconnectAttempts())
}

// Exercising Connect/Publish/Consume end to end against a live broker is
// integration-level and out of scope for unit tests; they are grounded in
// the state machine, topology, and backoff tests in this package instead.
