package agentfleet

import (
	"time"

	iconfig "github.com/gosuda/agentfleet/internal/config"
	"github.com/gosuda/agentfleet/internal/voting"
)

// Config configures a Fleet. It mirrors every option in spec.md §6's
// configuration table; a caller either builds one directly (for
// programmatic embedding) or obtains one via ConfigFromEnv (for a process
// entrypoint reading AGENTFLEET_* environment variables, the way the
// teacher's cmd/aira loaded internal/config.Load()).
type Config struct {
	BrokerURL string

	HeartbeatSeconds int
	Prefetch         int

	MaxRetries  int
	RetryBaseMS int64
	RetryMaxMS  int64

	PublishConfirmTimeoutMS int64
	HeartbeatIntervalMS     int64

	ReconnectMaxAttempts int
	ReconnectBaseMS      int64
	ReconnectCapMS       int64

	ShutdownDrainMS int64

	// VotingDefaultQuorum supplies quorum values for InitiateVote calls
	// whose voting.Config.Quorum is left zero-valued.
	VotingDefaultQuorum voting.Quorum
}

// ConfigFromEnv loads a Config from AGENTFLEET_* environment variables,
// applying the spec.md §6 defaults for anything unset.
func ConfigFromEnv() (Config, error) {
	ic, err := iconfig.Load()
	if err != nil {
		return Config{}, err
	}
	return fromInternal(ic), nil
}

func fromInternal(ic *iconfig.Config) Config {
	return Config{
		BrokerURL:               ic.BrokerURL,
		HeartbeatSeconds:        ic.HeartbeatSeconds,
		Prefetch:                ic.Prefetch,
		MaxRetries:              ic.MaxRetries,
		RetryBaseMS:             ic.RetryBaseMS,
		RetryMaxMS:              ic.RetryMaxMS,
		PublishConfirmTimeoutMS: ic.PublishConfirmTimeoutMS,
		HeartbeatIntervalMS:     ic.HeartbeatIntervalMS,
		ReconnectMaxAttempts:    ic.ReconnectMaxAttempts,
		ReconnectBaseMS:         ic.ReconnectBaseMS,
		ReconnectCapMS:          ic.ReconnectCapMS,
		ShutdownDrainMS:         ic.ShutdownDrainMS,
		VotingDefaultQuorum: voting.Quorum{
			MinParticipation: ic.VotingDefaultQuorum.MinParticipation,
			MinConfidence:    ic.VotingDefaultQuorum.MinConfidence,
			MinExperts:       ic.VotingDefaultQuorum.MinExperts,
		},
	}
}

func (c Config) withDefaults() Config {
	if c.HeartbeatSeconds <= 0 {
		c.HeartbeatSeconds = 30
	}
	if c.Prefetch <= 0 {
		c.Prefetch = 1
	}
	if c.RetryBaseMS <= 0 {
		c.RetryBaseMS = 1000
	}
	if c.RetryMaxMS <= 0 {
		c.RetryMaxMS = 60_000
	}
	if c.PublishConfirmTimeoutMS <= 0 {
		c.PublishConfirmTimeoutMS = 10_000
	}
	if c.HeartbeatIntervalMS <= 0 {
		c.HeartbeatIntervalMS = 30_000
	}
	if c.ReconnectMaxAttempts <= 0 {
		c.ReconnectMaxAttempts = 10
	}
	if c.ReconnectBaseMS <= 0 {
		c.ReconnectBaseMS = 1000
	}
	if c.ReconnectCapMS <= 0 {
		c.ReconnectCapMS = 30_000
	}
	if c.ShutdownDrainMS <= 0 {
		c.ShutdownDrainMS = 30_000
	}
	return c
}

func (c Config) heartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

func (c Config) shutdownDrain() time.Duration {
	return time.Duration(c.ShutdownDrainMS) * time.Millisecond
}

func (c Config) publishConfirmTimeout() time.Duration {
	return time.Duration(c.PublishConfirmTimeoutMS) * time.Millisecond
}
