package lamp

import (
	"sort"
	"sync"

	"github.com/danmuck/lampd/internal/store"
)

// History mirrors the persistence service's full transition history for
// display. It is replaced wholesale on refresh and never patched; reads
// sort a copy, the cached slice itself is never reordered.
type History struct {
	mu      sync.RWMutex
	records []store.Record
}

func NewHistory() *History {
	return &History{
		records: make([]store.Record, 0),
	}
}

// Replace swaps in the full history as fetched from the gateway.
func (h *History) Replace(records []store.Record) {
	copied := make([]store.Record, len(records))
	copy(copied, records)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = copied
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Latest returns the most recent record under the display ordering.
func (h *History) Latest() (store.Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return LatestRecord(h.records)
}

// Page returns one most-recent-first slice of the mirrored history.
// Requesting the same (offset, limit) twice without an intervening
// Replace yields identical results.
func (h *History) Page(offset, limit int) []store.Record {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return []store.Record{}
	}
	snapshot := h.sortedSnapshot()
	if offset >= len(snapshot) {
		return []store.Record{}
	}
	end := offset + limit
	if end > len(snapshot) {
		end = len(snapshot)
	}
	return snapshot[offset:end]
}

func (h *History) sortedSnapshot() []store.Record {
	h.mu.RLock()
	out := make([]store.Record, len(h.records))
	copy(out, h.records)
	h.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return moreRecent(out[i], out[j])
	})
	return out
}

// moreRecent orders records newest-first by timestamp, breaking equal
// timestamps by descending id so the ordering is deterministic.
func moreRecent(a, b store.Record) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.After(b.Time)
	}
	return a.ID > b.ID
}

// LatestRecord picks the most recent record from an unsorted history
// fetch, using the same ordering as the display projection.
func LatestRecord(records []store.Record) (store.Record, bool) {
	if len(records) == 0 {
		return store.Record{}, false
	}
	latest := records[0]
	for _, rec := range records[1:] {
		if moreRecent(rec, latest) {
			latest = rec
		}
	}
	return latest, true
}
