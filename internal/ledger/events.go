package ledger

import (
	"sync"
	"time"

	"visitmap/internal/core"
)

// Kind names a ledger or registry mutation.
type Kind string

const (
	KindVisitSaved      Kind = "visit.saved"
	KindVisitDeleted    Kind = "visit.deleted"
	KindVisitUpdated    Kind = "visit.updated"
	KindVisitsImported  Kind = "visits.imported"
	KindCategoryAdded   Kind = "category.added"
	KindCategoryUpdated Kind = "category.updated"
	KindCategoryDeleted Kind = "category.deleted"
)

// Event describes one committed mutation. Only the fields relevant to Kind are set.
type Event struct {
	Kind     Kind           `json:"kind"`
	City     string         `json:"city,omitempty"`
	Date     core.YearMonth `json:"date,omitempty"`
	Purpose  string         `json:"purpose,omitempty"`
	Category string         `json:"category,omitempty"`
	Count    int            `json:"count,omitempty"`
	At       time.Time      `json:"at"`
}

// Listener receives events synchronously, after the mutation has committed.
type Listener func(Event)

type subscription struct {
	id int
	fn Listener
}

// Hub fans events out to listeners in subscription order.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers l and returns a function that removes it.
func (h *Hub) Subscribe(l Listener) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscription{id: id, fn: l})

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, s := range h.subs {
				if s.id == id {
					h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	subs := make([]subscription, len(h.subs))
	copy(subs, h.subs)
	h.mu.RUnlock()

	for _, s := range subs {
		s.fn(e)
	}
}

// Len returns the number of active listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
