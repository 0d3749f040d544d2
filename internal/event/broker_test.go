package event

import (
	"testing"
	"time"

	"github.com/lumina-live/lumina/internal/session"
)

func TestBroker_FanOut(t *testing.T) {
	b := NewBroker(nil)

	ch1, cancel1 := b.Subscribe(4)
	ch2, cancel2 := b.Subscribe(4)
	defer cancel1()
	defer cancel2()

	b.Publish(Event{Type: TypeQuestionStatus, QuestionID: "q1", Status: session.StatusRelevant})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != TypeQuestionStatus || ev.QuestionID != "q1" {
				t.Errorf("subscriber %d got %+v", i, ev)
			}
			if ev.Time.IsZero() {
				t.Errorf("subscriber %d event has zero timestamp", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestBroker_SlowSubscriberNeverBlocks(t *testing.T) {
	var dropped []Type
	b := NewBroker(func(tp Type) { dropped = append(dropped, tp) })

	// Subscriber with a one-slot buffer that is never drained.
	_, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			b.Publish(Event{Type: TypeTranscriptChunk, Chunk: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	if len(dropped) != 9 {
		t.Errorf("dropped %d events, want 9", len(dropped))
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker(nil)
	ch, cancel := b.Subscribe(0)

	if got := b.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}

	cancel()
	cancel() // second cancel must be a no-op

	if got := b.SubscriberCount(); got != 0 {
		t.Fatalf("SubscriberCount after cancel = %d, want 0", got)
	}
	if _, open := <-ch; open {
		t.Error("channel not closed on cancel")
	}

	// Publishing with no subscribers must not panic or block.
	b.Publish(Event{Type: TypeSessionReset})
}
