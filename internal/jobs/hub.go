package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one progress update pushed to subscribers when a job completes
// a state-machine transition.
type Event struct {
	JobID     uuid.UUID `json:"job_id"`
	Status    Status    `json:"status"`
	Page      *int      `json:"page_number,omitempty"`
	Message   string    `json:"message,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// subscriberBuffer bounds how many undelivered events a subscriber may
// hold before intermediate events are dropped. Terminal state is still
// observable because SSE handlers reconcile against the Store.
const subscriberBuffer = 16

// Hub fans progress events out to per-job subscriber sets. Publishing
// never blocks on a slow subscriber.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[chan Event]struct{})}
}

// Subscribe registers a listener for one job's events. The returned cancel
// function must be called when the subscriber goes away; it is safe to
// call more than once.
func (h *Hub) Subscribe(jobID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[jobID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[jobID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[jobID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, jobID)
				}
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber attached to the job.
// Subscribers whose buffers are full miss the event.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[event.JobID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// CloseJob tears down the subscriber set for a job after its terminal
// event has been published, closing every remaining channel.
func (h *Hub) CloseJob(jobID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[jobID] {
		close(ch)
	}
	delete(h.subs, jobID)
}

// SubscriberCount returns how many listeners a job currently has.
func (h *Hub) SubscriberCount(jobID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jobID])
}
