package broker

import (
	"fmt"
	"reflect"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueOpts configures a declared queue. Zero value is a non-durable,
// non-exclusive, non-auto-delete queue with no TTL/length limits and no
// dead-lettering.
type QueueOpts struct {
	Durable       bool
	Exclusive     bool
	AutoDelete    bool
	MaxPriority   int
	MessageTTLMS  int64
	MaxLength     int64
	DeadLetter    string // exchange name; "" means the default exchange, not "no DLX"
	DeadLetterKey string
	UseDeadLetter bool // set true to dead-letter via DeadLetter/DeadLetterKey; required because DeadLetter=="" is a valid (default-exchange) value
}

func (o QueueOpts) args() amqp.Table {
	t := amqp.Table{}
	if o.MaxPriority > 0 {
		t["x-max-priority"] = o.MaxPriority
	}
	if o.MessageTTLMS > 0 {
		t["x-message-ttl"] = o.MessageTTLMS
	}
	if o.MaxLength > 0 {
		t["x-max-length"] = o.MaxLength
	}
	if o.UseDeadLetter {
		// x-dead-letter-exchange must be emitted even when DeadLetter is ""
		// (the default exchange): an absent argument disables dead-lettering
		// entirely on TTL expiry rather than routing via the default
		// exchange, so the two are not interchangeable.
		t["x-dead-letter-exchange"] = o.DeadLetter
		if o.DeadLetterKey != "" {
			t["x-dead-letter-routing-key"] = o.DeadLetterKey
		}
	}
	return t
}

// declaration is the topology a name was last declared with, kept so a
// repeat Assert call can be checked for idempotency instead of blindly
// re-declaring (spec.md §5 supplemented: a changed declaration for the same
// name is a programming error, not a silent redeclare).
type declaration struct {
	kind string // "queue", "fanout", "topic", "direct"
	opts QueueOpts
}

// topologyMemo tracks every queue/exchange this client has declared, so
// reconnects can replay it and repeat Assert calls can be checked for
// idempotency.
type topologyMemo struct {
	mu      sync.Mutex
	entries map[string]declaration
	order   []string
	binds   []bindMemo
}

type bindMemo struct {
	queue      string
	exchange   string
	routingKey string
}

func newTopologyMemo() *topologyMemo {
	return &topologyMemo{entries: make(map[string]declaration)}
}

// check reports a mismatch error if name was previously declared with a
// different shape, and otherwise records the new declaration.
func (m *topologyMemo) check(name string, d declaration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[name]; ok {
		if existing.kind != d.kind || !reflect.DeepEqual(existing.opts, d.opts) {
			return fmt.Errorf("name %q already declared as %s with different arguments", name, existing.kind)
		}
		return nil
	}
	m.entries[name] = d
	m.order = append(m.order, name)
	return nil
}

func (m *topologyMemo) recordBind(b bindMemo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.binds = append(m.binds, b)
}

// snapshot returns the declarations and bindings in declaration order, for
// replay against a fresh channel after a reconnect.
func (m *topologyMemo) snapshot() ([]string, map[string]declaration, []bindMemo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := append([]string(nil), m.order...)
	entries := make(map[string]declaration, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	binds := append([]bindMemo(nil), m.binds...)
	return names, entries, binds
}
