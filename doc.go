// Package agentfleet is the embeddable control plane for a multi-agent
// orchestration runtime built on AMQP 0-9-1. A process constructs one Fleet,
// registers one or more agents against it (each bound to a role), and uses
// the returned Agent handles to dispatch tasks, run brainstorm and voting
// sessions, publish/subscribe status events, and query counters.
//
// All broker plumbing, task retry/dead-letter handling, voting tallying and
// quorum enforcement, and audit trail bookkeeping live under internal/ and
// are not exported; this package composes them behind a small surface meant
// for direct embedding, not HTTP/RPC wrapping.
package agentfleet
