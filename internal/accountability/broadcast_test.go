package accountability

import (
	"testing"
	"time"

	"github.com/bekzatkhan/supply-accountability/internal/model"
)

func event(itemID, sessionID, holderID, version uint64, status string) ItemEvent {
	return ItemEvent{
		Item: model.AccountabilityItem{
			ID:        itemID,
			SessionID: sessionID,
			HolderID:  holderID,
			Status:    status,
			Version:   version,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func recv(t *testing.T, ch <-chan ItemEvent) ItemEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ItemEvent{}
}

func TestHubDeliversMatchingEvents(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe(SessionFilter(1))
	defer unsubscribe()

	hub.Publish(event(10, 1, 7, 2, model.ItemStatusAccountedFor))
	hub.Publish(event(11, 2, 7, 2, model.ItemStatusAccountedFor)) // other session, filtered out
	hub.Publish(event(12, 1, 8, 2, model.ItemStatusVerificationPending))

	first := recv(t, ch)
	if first.Item.ID != 10 {
		t.Errorf("expected item 10 first, got %d", first.Item.ID)
	}
	second := recv(t, ch)
	if second.Item.ID != 12 {
		t.Errorf("expected item 12 second, got %d", second.Item.ID)
	}
}

func TestHolderFilter(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe(HolderFilter(7))
	defer unsubscribe()

	hub.Publish(event(10, 1, 8, 2, model.ItemStatusAccountedFor)) // other holder
	hub.Publish(event(11, 1, 7, 2, model.ItemStatusAccountedFor))

	got := recv(t, ch)
	if got.Item.ID != 11 {
		t.Errorf("expected item 11, got %d", got.Item.ID)
	}
}

// A slow consumer must only ever see an item's states in order, and a
// newer state may replace an older undelivered one for the same item.
func TestHubOverwritesStalePendingState(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe(nil)
	defer unsubscribe()

	// The pump takes the first event off the buffer and blocks
	// handing it over; give it a moment so the later versions pile
	// up behind it.
	hub.Publish(event(10, 1, 7, 1, model.ItemStatusNotAccountedFor))
	time.Sleep(50 * time.Millisecond)
	hub.Publish(event(10, 1, 7, 2, model.ItemStatusVerificationPending))
	hub.Publish(event(10, 1, 7, 3, model.ItemStatusAccountedFor))

	first := recv(t, ch)
	second := recv(t, ch)
	if second.Item.Version <= first.Item.Version {
		t.Errorf("per-item order violated: %d then %d", first.Item.Version, second.Item.Version)
	}
	if second.Item.Version != 3 {
		t.Errorf("expected latest state (version 3) after overwrite, got %d", second.Item.Version)
	}

	select {
	case ev := <-ch:
		t.Errorf("expected overwritten state to be dropped, got version %d", ev.Item.Version)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubInterleavesDistinctItems(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe(nil)
	defer unsubscribe()

	hub.Publish(event(10, 1, 7, 1, model.ItemStatusNotAccountedFor))
	time.Sleep(50 * time.Millisecond)
	hub.Publish(event(20, 1, 7, 1, model.ItemStatusNotAccountedFor))
	hub.Publish(event(10, 1, 7, 2, model.ItemStatusAccountedFor))
	hub.Publish(event(20, 1, 7, 2, model.ItemStatusAccountedFor))

	// Drain until the hub goes quiet. Depending on pump timing the
	// first state of item 20 may be overwritten, so either 3 or 4
	// deliveries are legal.
	perItem := map[uint64][]uint64{}
	for {
		select {
		case ev := <-ch:
			perItem[ev.Item.ID] = append(perItem[ev.Item.ID], ev.Item.Version)
			continue
		case <-time.After(200 * time.Millisecond):
		}
		break
	}
	for id, versions := range perItem {
		for i := 1; i < len(versions); i++ {
			if versions[i] <= versions[i-1] {
				t.Errorf("item %d delivered out of order: %v", id, versions)
			}
		}
		if len(versions) == 0 || versions[len(versions)-1] != 2 {
			t.Errorf("item %d: expected final version 2, got %v", id, versions)
		}
	}
	if len(perItem) != 2 {
		t.Errorf("expected events for both items, got %v", perItem)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe(nil)

	unsubscribe()
	unsubscribe() // safe to call twice

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after unsubscribe")
		}
	case <-time.After(2 * time.Second):
		t.Error("channel not closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic or block.
	hub.Publish(event(10, 1, 7, 1, model.ItemStatusNotAccountedFor))
}
