package agentfleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iconfig "github.com/gosuda/agentfleet/internal/config"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{BrokerURL: "amqp://localhost"}.withDefaults()

	assert.Equal(t, 30, cfg.HeartbeatSeconds)
	assert.Equal(t, 1, cfg.Prefetch)
	assert.Equal(t, int64(1000), cfg.RetryBaseMS)
	assert.Equal(t, int64(60_000), cfg.RetryMaxMS)
	assert.Equal(t, int64(10_000), cfg.PublishConfirmTimeoutMS)
	assert.Equal(t, int64(30_000), cfg.HeartbeatIntervalMS)
	assert.Equal(t, 10, cfg.ReconnectMaxAttempts)
	assert.Equal(t, int64(1000), cfg.ReconnectBaseMS)
	assert.Equal(t, int64(30_000), cfg.ReconnectCapMS)
	assert.Equal(t, int64(30_000), cfg.ShutdownDrainMS)
}

func TestConfig_WithDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{
		BrokerURL: "amqp://localhost",
		Prefetch:  64,
		MaxRetries: 7,
	}.withDefaults()

	assert.Equal(t, 64, cfg.Prefetch)
	assert.Equal(t, 7, cfg.MaxRetries)
}

func TestFromInternal_CarriesEveryField(t *testing.T) {
	ic := &iconfig.Config{
		BrokerURL:               "amqp://broker",
		HeartbeatSeconds:        45,
		Prefetch:                8,
		MaxRetries:              5,
		RetryBaseMS:             2000,
		RetryMaxMS:              90_000,
		PublishConfirmTimeoutMS: 8000,
		HeartbeatIntervalMS:     20_000,
		ReconnectMaxAttempts:    15,
		ReconnectBaseMS:         750,
		ReconnectCapMS:          45_000,
		ShutdownDrainMS:         12_000,
		VotingDefaultQuorum: iconfig.QuorumDefaults{
			MinParticipation: 0.6,
			MinConfidence:    0.3,
			MinExperts:       1,
		},
	}

	cfg := fromInternal(ic)

	assert.Equal(t, "amqp://broker", cfg.BrokerURL)
	assert.Equal(t, 45, cfg.HeartbeatSeconds)
	assert.Equal(t, 8, cfg.Prefetch)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, int64(2000), cfg.RetryBaseMS)
	assert.Equal(t, int64(90_000), cfg.RetryMaxMS)
	assert.Equal(t, int64(8000), cfg.PublishConfirmTimeoutMS)
	assert.Equal(t, int64(20_000), cfg.HeartbeatIntervalMS)
	assert.Equal(t, 15, cfg.ReconnectMaxAttempts)
	assert.Equal(t, int64(750), cfg.ReconnectBaseMS)
	assert.Equal(t, int64(45_000), cfg.ReconnectCapMS)
	assert.Equal(t, int64(12_000), cfg.ShutdownDrainMS)
	assert.Equal(t, 0.6, cfg.VotingDefaultQuorum.MinParticipation)
	assert.Equal(t, 0.3, cfg.VotingDefaultQuorum.MinConfidence)
	assert.Equal(t, 1, cfg.VotingDefaultQuorum.MinExperts)
}

func TestConfigFromEnv_RequiresBrokerURL(t *testing.T) {
	_, err := ConfigFromEnv()
	require.Error(t, err)
}

func TestConfigFromEnv_Succeeds(t *testing.T) {
	t.Setenv("AGENTFLEET_BROKER_URL", "amqp://localhost")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "amqp://localhost", cfg.BrokerURL)
}

func TestConfig_DurationHelpers(t *testing.T) {
	cfg := Config{
		HeartbeatIntervalMS:     5000,
		ShutdownDrainMS:         2000,
		PublishConfirmTimeoutMS: 3000,
	}
	assert.Equal(t, 5000, int(cfg.heartbeatInterval().Milliseconds()))
	assert.Equal(t, 2000, int(cfg.shutdownDrain().Milliseconds()))
	assert.Equal(t, 3000, int(cfg.publishConfirmTimeout().Milliseconds()))
}
