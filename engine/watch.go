package engine

import (
	"sync"

	"github.com/hupe1980/proposalmesh/core"
)

// watchHub fans run events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full loses its oldest event to make room for
// the newest one.
type watchHub struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan core.RunEvent
	nextID int
	buffer int
}

func newWatchHub(buffer int) *watchHub {
	if buffer < 1 {
		buffer = 1
	}
	return &watchHub{
		subs:   make(map[string]map[int]chan core.RunEvent),
		buffer: buffer,
	}
}

// subscribe registers a watcher for the given run. The returned cancel is
// idempotent and safe to call concurrently with publish and finish.
func (h *watchHub) subscribe(runID string) (<-chan core.RunEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan core.RunEvent, h.buffer)
	byID, ok := h.subs[runID]
	if !ok {
		byID = make(map[int]chan core.RunEvent)
		h.subs[runID] = byID
	}
	id := h.nextID
	h.nextID++
	byID[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if byID, ok := h.subs[runID]; ok {
			if ch, ok := byID[id]; ok {
				delete(byID, id)
				close(ch)
				if len(byID) == 0 {
					delete(h.subs, runID)
				}
			}
		}
	}
	return ch, cancel
}

// publish delivers the event to every subscriber of its run, dropping the
// oldest buffered event for watchers that cannot keep up.
func (h *watchHub) publish(ev core.RunEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// finish closes all subscriber channels for a run after its terminal event
// has been published.
func (h *watchHub) finish(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[runID] {
		close(ch)
	}
	delete(h.subs, runID)
}
