// Package audit implements the append-only, per-session signed audit trail
// over accepted votes (spec.md §4.4). Each record's signature covers only
// that record's own fields; records are not chained to one another. Signatures use crypto/sha256,
// the same stdlib hashing primitive the teacher's API key store uses for
// its own deterministic digests (internal/auth/apikey.go); no third-party
// hashing library in the example pack offers anything sha256 doesn't.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gosuda/agentfleet/internal/errs"
)

// Record is one immutable AuditRecord. Signature deterministically binds
// SessionID, AgentID, VoteSerialized and Timestamp.
type Record struct {
	RecordID       string
	SessionID      string
	AgentID        string
	VoteSerialized string
	Timestamp      time.Time
	Signature      string
}

// Sign computes the deterministic signature for a record's fields.
func Sign(sessionID, agentID, voteSerialized string, ts time.Time) string {
	h := sha256.New()
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write([]byte(agentID))
	h.Write([]byte{0})
	h.Write([]byte(voteSerialized))
	h.Write([]byte{0})
	h.Write([]byte(ts.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}

// Log is the AuditLog component: one signed, append-only record list per
// session.
type Log struct {
	mu      sync.Mutex
	records map[string][]Record // session_id -> append-ordered records
}

// New constructs an empty AuditLog.
func New() *Log {
	return &Log{records: make(map[string][]Record)}
}

// Append adds an AuditRecord for one accepted ballot, computing and
// attaching its signature. recordID should be unique per call (a UUID is
// the expected source); append order within a session is total.
func (l *Log) Append(recordID, sessionID, agentID, voteSerialized string, ts time.Time) Record {
	rec := Record{
		RecordID:       recordID,
		SessionID:      sessionID,
		AgentID:        agentID,
		VoteSerialized: voteSerialized,
		Timestamp:      ts,
		Signature:      Sign(sessionID, agentID, voteSerialized, ts),
	}

	l.mu.Lock()
	l.records[sessionID] = append(l.records[sessionID], rec)
	l.mu.Unlock()
	return rec
}

// Records returns a session's records in append order.
func (l *Log) Records(sessionID string) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records[sessionID]))
	copy(out, l.records[sessionID])
	return out
}

// SessionDigest computes the deterministic digest over the lexicographically
// sorted set of a session's member signatures, per spec.md §4.4.
func SessionDigest(records []Record) string {
	sigs := make([]string, len(records))
	for i, r := range records {
		sigs[i] = r.Signature
	}
	sort.Strings(sigs)

	h := sha256.New()
	for _, s := range sigs {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns the session digest for sessionID's current records.
func (l *Log) Digest(sessionID string) string {
	return SessionDigest(l.Records(sessionID))
}

// VerifyIntegrity recomputes every record's signature from its fields and
// confirms equality; any single mismatch fails integrity for the whole
// session. Returns a classified error describing which record failed, or
// nil if the session is intact.
func (l *Log) VerifyIntegrity(sessionID string) error {
	records := l.Records(sessionID)
	for _, r := range records {
		want := Sign(r.SessionID, r.AgentID, r.VoteSerialized, r.Timestamp)
		if want != r.Signature {
			return errs.New(errs.KindIntegrity, "audit.Log.VerifyIntegrity",
				fmt.Errorf("record %q: signature mismatch", r.RecordID))
		}
	}
	return nil
}
