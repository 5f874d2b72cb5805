package eventbus

import (
	"testing"
	"time"
)

func TestPublishDelivers(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: EventCountdownStarted})

	select {
	case e := <-ch:
		if e.Type != EventCountdownStarted {
			t.Fatalf("type = %q", e.Type)
		}
		if e.Time.IsZero() {
			t.Fatalf("publish did not stamp time")
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: EventMonitorChecked})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on a full subscriber")
	}
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	_ = ch
	unsub()
	unsub() // idempotent

	// Publishing after unsubscribe must not panic (closed channel).
	b.Publish(Event{Type: EventCountdownStopped})
}

func TestMultipleSubscribers(t *testing.T) {
	b := New()
	ch1, un1 := b.Subscribe(4)
	ch2, un2 := b.Subscribe(4)
	defer un1()
	defer un2()

	b.Publish(Event{Type: EventNotifySent})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != EventNotifySent {
				t.Fatalf("type = %q", e.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber missed fanout")
		}
	}
}
