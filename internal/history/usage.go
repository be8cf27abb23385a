// Package history keeps the bounded usage log and the append-only learning
// records, and derives patterns, optimisation hints, analytics and exports
// from them.
package history

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// DefaultMaxRecords bounds the usage log.
const DefaultMaxRecords = 1000

// Digest returns the hex BLAKE2b-256 digest of input.
func Digest(input string) string {
	sum := blake2b.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// NewUsageRecord builds the log entry for an invocation of t.
func NewUsageRecord(t *tool.Tool, input string, conv tool.ConversationContext, temporal *tool.TemporalContext, at time.Time) tool.UsageRecord {
	return tool.UsageRecord{
		InvocationID: uuid.New().String(),
		ToolID:       t.ID,
		ToolName:     t.Name,
		Context: tool.ContextSnapshot{
			Input:        input,
			InputDigest:  Digest(input),
			Workspace:    conv.Workspace.Normalize(),
			MessageCount: len(conv.RecentMessages),
		},
		Timestamp: at,
		Temporal:  temporal,
	}
}

// UsageLog is a FIFO of usage records. Once full, appending evicts the
// oldest record.
type UsageLog struct {
	mu      sync.RWMutex
	max     int
	records []tool.UsageRecord // ring buffer
	start   int
	size    int
}

// NewUsageLog creates a log holding at most max records.
func NewUsageLog(max int) *UsageLog {
	if max <= 0 {
		max = DefaultMaxRecords
	}
	return &UsageLog{max: max, records: make([]tool.UsageRecord, max)}
}

// Append adds rec, evicting the oldest record when the log is full.
func (l *UsageLog) Append(rec tool.UsageRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.size < l.max {
		l.records[(l.start+l.size)%l.max] = rec
		l.size++
		return
	}
	l.records[l.start] = rec
	l.start = (l.start + 1) % l.max
}

// Len returns the number of records held.
func (l *UsageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Cap returns the bound.
func (l *UsageLog) Cap() int {
	return l.max
}

// Records returns a copy of every record, oldest first.
func (l *UsageLog) Records() []tool.UsageRecord {
	return l.Recent(-1)
}

// Recent returns a copy of the newest n records, oldest first. A negative
// n returns everything.
func (l *UsageLog) Recent(n int) []tool.UsageRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n < 0 || n > l.size {
		n = l.size
	}
	out := make([]tool.UsageRecord, n)
	first := l.size - n
	for i := 0; i < n; i++ {
		out[i] = l.records[(l.start+first+i)%l.max]
	}
	return out
}

// Reset drops every record.
func (l *UsageLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make([]tool.UsageRecord, l.max)
	l.start = 0
	l.size = 0
}
