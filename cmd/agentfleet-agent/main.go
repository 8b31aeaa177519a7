// Command agentfleet-agent is a thin process entrypoint: it loads
// configuration from the environment, connects one Fleet, registers a
// single agent under the configured role, runs its heartbeat, and blocks
// until a termination signal or a fatal broker error arrives. It carries no
// task/brainstorm/voting handler logic of its own; wiring real handlers is
// the embedder's job (see the root agentfleet package), not this binary's.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentfleet"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("agentfleet-agent: startup failed")
	}
}

func run() error {
	configureLogging()

	cfg, err := agentfleet.ConfigFromEnv()
	if err != nil {
		return err
	}

	role, err := parseRole(os.Getenv("AGENTFLEET_ROLE"))
	if err != nil {
		return err
	}
	name := os.Getenv("AGENTFLEET_AGENT_NAME")
	level, err := parseLevel(os.Getenv("AGENTFLEET_AGENT_LEVEL"))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fleet, err := agentfleet.New(ctx, cfg)
	if err != nil {
		return err
	}

	agent, err := fleet.RegisterAgent(role, name, level)
	if err != nil {
		return err
	}
	log.Info().Str("agent_id", agent.ID).Str("role", string(role)).Msg("agentfleet-agent: registered")

	go agent.StartHeartbeat(ctx)

	select {
	case <-ctx.Done():
		log.Info().Msg("agentfleet-agent: shutdown signal received")
	case err := <-fleet.Fatal():
		log.Error().Err(err).Msg("agentfleet-agent: fatal broker error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	drain := time.Duration(cfg.ShutdownDrainMS) * time.Millisecond
	agent.Shutdown(shutdownCtx, drain)
	if err := fleet.Close(drain); err != nil {
		return err
	}

	log.Info().Msg("agentfleet-agent: stopped")
	return nil
}

func configureLogging() {
	level := zerolog.InfoLevel
	switch strings.ToLower(os.Getenv("AGENTFLEET_LOG_LEVEL")) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.ToLower(os.Getenv("AGENTFLEET_LOG_FORMAT")) == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

func parseRole(v string) (agentfleet.Role, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case string(agentfleet.RoleLeader):
		return agentfleet.RoleLeader, nil
	case string(agentfleet.RoleWorker):
		return agentfleet.RoleWorker, nil
	case string(agentfleet.RoleCollaborator):
		return agentfleet.RoleCollaborator, nil
	case string(agentfleet.RoleMonitor):
		return agentfleet.RoleMonitor, nil
	default:
		return "", errInvalidRole(v)
	}
}

type errInvalidRole string

func (e errInvalidRole) Error() string {
	return "AGENTFLEET_ROLE must be one of leader, worker, collaborator, monitor; got " + strconv.Quote(string(e))
}

func parseLevel(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
