// Package memtable implements the in-memory, ordered key-value table
// that absorbs recent writes and serves reads ahead of any SSTable.
package memtable

import (
	"bytes"
	"sort"

	"github.com/devkarn/lsmkv/kv"
)

// perEntryOverhead is the implementation-chosen constant capturing
// container bookkeeping per entry. The exact value is not part of the
// contract (spec.md §4.2, §9 open question) — only that size_bytes
// monotonically tracks live content and is used to trigger flush. 48
// bytes matches the reference implementation's own heuristic.
const perEntryOverhead = 48

// tombstoneValueBytes is the constant charged against size accounting
// for a tombstone's "value" component, since it carries no value
// bytes on the wire but still occupies a slot.
const tombstoneValueBytes = 4

// entry is one (key, value-or-tombstone) pair held in sorted order.
type entry struct {
	key   []byte
	value kv.Value
}

func (e entry) sizeBytes() int {
	return len(e.key) + e.valueBytes() + perEntryOverhead
}

func (e entry) valueBytes() int {
	if e.value.IsTombstone() {
		return tombstoneValueBytes
	}
	return e.value.Len()
}

// Memtable is an ordered map of key to value-or-tombstone, with a
// tracked byte-size budget. It assumes exclusive access by one
// goroutine at a time.
type Memtable struct {
	entries     []entry
	sizeBytes   int
	maxSizeBytes int
}

// DefaultMaxSizeBytes is the default flush threshold, 4 MiB.
const DefaultMaxSizeBytes = 4 * 1024 * 1024

// New creates an empty memtable with the given size budget. A
// maxSizeBytes of zero or less uses DefaultMaxSizeBytes.
func New(maxSizeBytes int) *Memtable {
	if maxSizeBytes <= 0 {
		maxSizeBytes = DefaultMaxSizeBytes
	}
	return &Memtable{maxSizeBytes: maxSizeBytes}
}

func (m *Memtable) search(key []byte) int {
	return sort.Search(len(m.entries), func(i int) bool {
		return bytes.Compare(m.entries[i].key, key) >= 0
	})
}

// Put inserts or overwrites key with a live value. The empty value is
// legal and distinct from a tombstone.
func (m *Memtable) Put(key, value []byte) error {
	if len(key) == 0 {
		return kv.NewTypeError("memtable: key must be a non-empty byte string")
	}
	m.upsert(key, kv.Live(value))
	return nil
}

// Delete inserts or overwrites key with a tombstone marker. Deleting a
// key absent from the memtable still inserts a tombstone, so the
// deletion can shadow an older value living in a previously flushed
// SSTable.
func (m *Memtable) Delete(key []byte) error {
	if len(key) == 0 {
		return kv.NewTypeError("memtable: key must be a non-empty byte string")
	}
	m.upsert(key, kv.Tombstone())
	return nil
}

func (m *Memtable) upsert(key []byte, value kv.Value) {
	idx := m.search(key)
	newEntry := entry{key: append([]byte(nil), key...), value: value}

	if idx < len(m.entries) && bytes.Equal(m.entries[idx].key, key) {
		old := m.entries[idx]
		m.sizeBytes += newEntry.sizeBytes() - old.sizeBytes()
		m.entries[idx] = newEntry
		return
	}

	m.entries = append(m.entries, entry{})
	copy(m.entries[idx+1:], m.entries[idx:])
	m.entries[idx] = newEntry
	m.sizeBytes += newEntry.sizeBytes()
}

// Result is the outcome of a Get: exactly one of Found, Tombstone, or
// Absent is true.
type Result struct {
	value     []byte
	found     bool
	tombstone bool
}

// Found reports whether the key is present with a live value.
func (r Result) Found() bool { return r.found && !r.tombstone }

// IsTombstone reports whether the key is present but deleted.
func (r Result) IsTombstone() bool { return r.tombstone }

// Absent reports whether the key is not present at all (not even as
// a tombstone). Callers that only want "present in store" semantics
// should treat IsTombstone the same as Absent.
func (r Result) Absent() bool { return !r.found }

// Value returns the live value. Only meaningful when Found is true.
func (r Result) Value() []byte { return r.value }

// Get looks up key and reports whether it is live, a tombstone, or
// absent entirely.
func (m *Memtable) Get(key []byte) Result {
	idx := m.search(key)
	if idx < len(m.entries) && bytes.Equal(m.entries[idx].key, key) {
		e := m.entries[idx]
		if e.value.IsTombstone() {
			return Result{found: true, tombstone: true}
		}
		return Result{found: true, value: e.value.Bytes()}
	}
	return Result{}
}

// Entry is one (key, value-or-tombstone) pair yielded by Iter.
type Entry struct {
	Key   []byte
	Value kv.Value
}

// Iter returns a snapshot of all entries in strictly increasing key
// order, as of the moment Iter is called. Later mutations to the
// memtable do not affect the returned slice.
func (m *Memtable) Iter() []Entry {
	out := make([]Entry, len(m.entries))
	for i, e := range m.entries {
		out[i] = Entry{Key: e.key, Value: e.value}
	}
	return out
}

// SizeBytes returns the current accumulated byte estimate.
func (m *Memtable) SizeBytes() int {
	return m.sizeBytes
}

// IsFull reports whether SizeBytes has reached the configured budget.
func (m *Memtable) IsFull() bool {
	return m.sizeBytes >= m.maxSizeBytes
}

// NumEntries returns the number of distinct keys currently held
// (including tombstones).
func (m *Memtable) NumEntries() int {
	return len(m.entries)
}

// Clear resets the memtable to empty and zero size.
func (m *Memtable) Clear() {
	m.entries = nil
	m.sizeBytes = 0
}
