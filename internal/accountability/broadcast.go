package accountability

import (
	"sync"
	"time"

	"github.com/bekzatkhan/supply-accountability/internal/model"
)

// ItemEvent is the full-state snapshot of an accountability item
// after a committed transition. Consumers overwrite their local view
// of the item with the payload; duplicates and cross-item reordering
// are therefore harmless.
type ItemEvent struct {
	Item       model.AccountabilityItem `json:"item"`
	OccurredAt time.Time                `json:"occurred_at"`
}

// Filter decides whether a subscriber receives an event. The
// authority subscribes to all items of its session; a holder
// subscribes to items where it is the snapshot holder.
type Filter func(ItemEvent) bool

// SessionFilter matches every item of one session.
func SessionFilter(sessionID uint64) Filter {
	return func(ev ItemEvent) bool { return ev.Item.SessionID == sessionID }
}

// HolderFilter matches items whose snapshot holder is the given actor.
func HolderFilter(holderID uint64) Filter {
	return func(ev ItemEvent) bool { return ev.Item.HolderID == holderID }
}

// Hub fans committed item transitions out to subscribers. Delivery
// per subscriber is decoupled from Publish by a pending buffer: when
// a slow consumer falls behind, a newer state for the same item
// overwrites the older pending one instead of queueing behind it.
// That keeps per-item ordering intact (an item is only ever replaced
// by its own newer state) while bounding the buffer to one entry per
// item.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	filter Filter

	mu      sync.Mutex
	pending []ItemEvent          // delivery order
	byItem  map[uint64]int       // item ID -> index into pending
	wake    chan struct{}        // signals the pump that events arrived
	out     chan ItemEvent
	done    chan struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a consumer. The returned channel delivers
// events matching the filter; the returned function unsubscribes and
// closes the channel. Unsubscribe is safe to call more than once.
func (h *Hub) Subscribe(filter Filter) (<-chan ItemEvent, func()) {
	sub := &subscriber{
		filter: filter,
		byItem: make(map[uint64]int),
		wake:   make(chan struct{}, 1),
		out:    make(chan ItemEvent),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go sub.pump()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.done)
		})
	}
	return sub.out, unsubscribe
}

// Publish hands the event to every matching subscriber. It never
// blocks on consumers.
func (h *Hub) Publish(ev ItemEvent) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if s.filter != nil && !s.filter(ev) {
			continue
		}
		s.enqueue(ev)
	}
}

func (s *subscriber) enqueue(ev ItemEvent) {
	s.mu.Lock()
	if idx, ok := s.byItem[ev.Item.ID]; ok {
		// A newer state for this item is already waiting; overwrite
		// it in place so only the latest snapshot is delivered.
		s.pending[idx] = ev
	} else {
		s.byItem[ev.Item.ID] = len(s.pending)
		s.pending = append(s.pending, ev)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump delivers pending events to the out channel in arrival order
// until the subscriber is torn down.
func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		var (
			ev   ItemEvent
			have bool
		)
		if len(s.pending) > 0 {
			ev = s.pending[0]
			s.pending = s.pending[1:]
			delete(s.byItem, ev.Item.ID)
			// Remaining entries shifted down by one.
			for id, idx := range s.byItem {
				s.byItem[id] = idx - 1
			}
			have = true
		}
		s.mu.Unlock()

		if !have {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
