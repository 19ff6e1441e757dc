package server

import "sync"

// Event is one progress update for a render job.
type Event struct {
	Job      string  `json:"job"`
	Fraction float64 `json:"fraction"`
	Message  string  `json:"message"`
	Done     bool    `json:"done,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Hub fans progress events out to websocket subscribers keyed by job id.
// Slow subscribers lose intermediate events rather than stalling a render.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan Event]struct{}{}}
}

// Subscribe registers for events of job. The returned cancel func must be
// called to release the subscription.
func (h *Hub) Subscribe(job string) (<-chan Event, func()) {
	ch := make(chan Event, 32)
	h.mu.Lock()
	if h.subs[job] == nil {
		h.subs[job] = map[chan Event]struct{}{}
	}
	h.subs[job][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[job], ch)
			if len(h.subs[job]) == 0 {
				delete(h.subs, job)
			}
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.Job] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports how many listeners job has.
func (h *Hub) Subscribers(job string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[job])
}
