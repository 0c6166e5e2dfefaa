package store

import (
	"sync"

	"github.com/seantiz/esgqa/internal/model"
)

// DefaultHistorySize is the number of answers kept by the recent answers history.
const DefaultHistorySize = 10

// History is a bounded, most-recent-first buffer of answer records. Eviction
// is purely by insertion order.
type History struct {
	mu      sync.Mutex
	size    int
	records []model.AnswerRecord
}

// NewHistory creates a History holding at most size records.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size, records: make([]model.AnswerRecord, 0, size+1)}
}

// Add inserts r at the front and drops the oldest record if over capacity.
func (h *History) Add(r model.AnswerRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, model.AnswerRecord{})
	copy(h.records[1:], h.records)
	h.records[0] = r
	if len(h.records) > h.size {
		h.records = h.records[:h.size]
	}
}

// List returns a copy of the records, most recent first.
func (h *History) List() []model.AnswerRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]model.AnswerRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Len returns the number of records held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
