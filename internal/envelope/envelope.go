// Package envelope implements the canonical JSON wire wrapper around every
// inter-agent message (spec.md §6). Duck-typed payloads are replaced with
// explicit typed variants on Type; an unrecognized Type is a validation
// error, never silently coerced.
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/gosuda/agentfleet/internal/errs"
)

// Type discriminates the envelope's payload shape.
type Type string

const (
	TypeTask            Type = "task"
	TypeResult          Type = "result"
	TypeBrainstormStart Type = "brainstorm_start"
	TypeBrainstormReply Type = "brainstorm_response"
	TypeVotingStart     Type = "voting_start"
	TypeVotingVote      Type = "voting_vote"
	TypeVotingResult    Type = "voting_result"
	TypeStatus          Type = "status"
)

// knownTypes is consulted by Unmarshal to reject unrecognized Type values.
var knownTypes = map[Type]bool{
	TypeTask:            true,
	TypeResult:          true,
	TypeBrainstormStart: true,
	TypeBrainstormReply: true,
	TypeVotingStart:     true,
	TypeVotingVote:      true,
	TypeVotingResult:    true,
	TypeStatus:          true,
}

// Envelope is the single top-level object wrapping any inter-agent message.
// Payload is kept as raw JSON so callers decode it into the concrete type
// matching Type (TaskPayload, ResultPayload, VotePayload, ...).
type Envelope struct {
	ID               string          `json:"id"`
	Type             Type            `json:"type"`
	From             string          `json:"from"`
	To               string          `json:"to,omitempty"`
	TS               int64           `json:"ts"`
	Payload          json.RawMessage `json:"payload"`
	RetriesRemaining *int            `json:"retries_remaining,omitempty"`
}

// Marshal encodes env to its wire JSON form.
func Marshal(env Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, errs.New(errs.KindDeliveryValidation, "envelope.Marshal", err)
	}
	return b, nil
}

// Unmarshal decodes the wire JSON form, rejecting unknown Type values.
// Unknown fields in the top-level object are ignored, per spec.md §6.
func Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, errs.New(errs.KindDeliveryValidation, "envelope.Unmarshal", err)
	}
	if !knownTypes[env.Type] {
		return Envelope{}, errs.New(errs.KindDeliveryValidation, "envelope.Unmarshal",
			fmt.Errorf("unrecognized envelope type %q", env.Type))
	}
	return env, nil
}

// DecodePayload unmarshals env.Payload into dst (a pointer to a concrete
// payload type).
func DecodePayload(env Envelope, dst any) error {
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return errs.New(errs.KindDeliveryValidation, "envelope.DecodePayload", err)
	}
	return nil
}

// EncodePayload marshals a concrete payload value into a json.RawMessage
// suitable for Envelope.Payload.
func EncodePayload(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errs.New(errs.KindDeliveryValidation, "envelope.EncodePayload", err)
	}
	return b, nil
}
