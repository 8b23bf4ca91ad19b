package ledger

import (
	"reflect"
	"testing"
)

func TestHubPublishesInSubscriptionOrder(t *testing.T) {
	h := NewHub()
	var got []string
	h.Subscribe(func(e Event) { got = append(got, "first:"+string(e.Kind)) })
	unsubscribe := h.Subscribe(func(e Event) { got = append(got, "second:"+string(e.Kind)) })
	h.Subscribe(func(e Event) { got = append(got, "third:"+string(e.Kind)) })

	h.Publish(Event{Kind: KindVisitSaved})
	unsubscribe()
	unsubscribe()
	h.Publish(Event{Kind: KindVisitDeleted})

	want := []string{
		"first:visit.saved", "second:visit.saved", "third:visit.saved",
		"first:visit.deleted", "third:visit.deleted",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2", h.Len())
	}
}
