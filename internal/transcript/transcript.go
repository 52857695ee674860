// Package transcript holds the append-only, in-memory message sequence of
// the conversation currently on screen. Nothing is persisted; switching
// conversations starts a fresh sequence.
package transcript

import (
	"sync"
	"time"

	"github.com/1-kabir/cfm/internal/types"
)

// Transcript is an append-only entry log with auto-incremented sequence numbers.
type Transcript struct {
	mu        sync.Mutex
	entries   []types.Entry
	seq       int64
	listeners []func()
}

var _ types.Transcript = (*Transcript)(nil)

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// OnChange registers a callback invoked after every append or reset.
// Callbacks run outside the transcript lock.
func (t *Transcript) OnChange(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Append adds an entry, assigning its ID, sequence number and timestamp
// when unset. The caller's entry is updated in place.
func (t *Transcript) Append(entry *types.Entry) {
	t.AppendIf(nil, entry)
}

// AppendIf adds entry only if ok reports true. ok runs under the
// transcript lock, so a Reset cannot land between the check and the append.
// A nil ok always appends.
func (t *Transcript) AppendIf(ok func() bool, entry *types.Entry) bool {
	t.mu.Lock()
	if ok != nil && !ok() {
		t.mu.Unlock()
		return false
	}
	if entry.ID == "" {
		entry.ID = types.NewEntryID()
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	if entry.Kind == "" {
		entry.Kind = types.KindText
	}
	t.seq++
	entry.Seq = t.seq
	t.entries = append(t.entries, *entry)
	listeners := t.listeners
	t.mu.Unlock()

	notify(listeners)
	return true
}

// Entries returns a copy of all entries in order.
func (t *Transcript) Entries() []types.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]types.Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Tail returns the last N entries.
func (t *Transcript) Tail(limit int) []types.Entry {
	entries := t.Entries()
	if limit >= 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Reset drops all entries. Sequence numbers keep increasing across resets
// so stale references never collide with new entries.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.entries = nil
	listeners := t.listeners
	t.mu.Unlock()

	notify(listeners)
}

func notify(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}
