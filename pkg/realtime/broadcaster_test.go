package realtime

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type event struct {
	room string
	body string
}

func eventKey(e event) (string, bool) {
	return e.room, e.room != ""
}

func newTestBroker() *Broker[string, event] {
	return NewBroker(eventKey)
}

func TestNewBroker(t *testing.T) {
	b := newTestBroker()
	if b == nil {
		t.Fatal("NewBroker returned nil")
	}
	if b.Keys() != 0 {
		t.Errorf("Keys() = %d, want 0", b.Keys())
	}
}

func TestBroker_SubscribeUnsubscribeLeavesNoEntry(t *testing.T) {
	b := newTestBroker()
	q := b.Subscribe("r1")
	if q == nil {
		t.Fatal("Subscribe returned nil queue")
	}
	if got := b.Subscribers("r1"); got != 1 {
		t.Errorf("Subscribers = %d, want 1", got)
	}
	b.Unsubscribe("r1", q)
	if b.Keys() != 0 {
		t.Errorf("Keys() = %d after unsubscribe, want 0", b.Keys())
	}
}

func TestBroker_UnsubscribeTwiceIsNoop(t *testing.T) {
	b := newTestBroker()
	q := b.Subscribe("r1")
	b.Unsubscribe("r1", q)
	b.Unsubscribe("r1", q)
	b.Unsubscribe("unknown", q)
	if b.Keys() != 0 {
		t.Errorf("Keys() = %d, want 0", b.Keys())
	}
}

func TestBroker_SubscribeReturnsIndependentQueues(t *testing.T) {
	b := newTestBroker()
	q1 := b.Subscribe("r1")
	q2 := b.Subscribe("r1")
	defer b.Unsubscribe("r1", q1)
	defer b.Unsubscribe("r1", q2)

	if q1 == q2 {
		t.Fatal("expected distinct queues for the same key")
	}
	if got := b.Subscribers("r1"); got != 2 {
		t.Errorf("Subscribers = %d, want 2", got)
	}
}

func TestBroker_PublishDeliversInOrder(t *testing.T) {
	b := newTestBroker()
	q := b.Subscribe("r1")
	defer b.Unsubscribe("r1", q)

	for _, body := range []string{"a", "b", "c"} {
		if n := b.Publish(event{room: "r1", body: body}); n != 1 {
			t.Fatalf("Publish reached %d queues, want 1", n)
		}
	}

	var got []string
	for {
		e, ok := q.TryPop()
		if !ok {
			break
		}
		got = append(got, e.body)
	}
	if strings.Join(got, "") != "abc" {
		t.Errorf("got %v, want [a b c]", got)
	}
}

func TestBroker_PublishOnlyReachesMatchingKey(t *testing.T) {
	b := newTestBroker()
	q1 := b.Subscribe("r1")
	q2 := b.Subscribe("r2")
	defer b.Unsubscribe("r1", q1)
	defer b.Unsubscribe("r2", q2)

	b.Publish(event{room: "r1", body: "hello"})
	if q1.Len() != 1 {
		t.Errorf("q1 has %d items, want 1", q1.Len())
	}
	if q2.Len() != 0 {
		t.Errorf("q2 has %d items, want 0", q2.Len())
	}
}

func TestBroker_PublishWithoutKeyIsDropped(t *testing.T) {
	b := newTestBroker()
	q := b.Subscribe("")
	defer b.Unsubscribe("", q)

	if n := b.Publish(event{body: "orphan"}); n != 0 {
		t.Errorf("Publish reached %d queues, want 0", n)
	}
	if q.Len() != 0 {
		t.Error("keyless event should not be delivered")
	}
}

func TestBroker_UnsubscribeRemovesFromDelivery(t *testing.T) {
	b := newTestBroker()
	q1 := b.Subscribe("r1")
	q2 := b.Subscribe("r1")

	b.Publish(event{room: "r1", body: "first"})
	if q1.Len() != 1 || q2.Len() != 1 {
		t.Fatalf("fan-out lengths = %d/%d, want 1/1", q1.Len(), q2.Len())
	}

	b.Unsubscribe("r1", q1)
	b.Publish(event{room: "r1", body: "second"})
	if q1.Len() != 1 {
		t.Errorf("q1 has %d items, want 1", q1.Len())
	}
	if q2.Len() != 2 {
		t.Errorf("q2 has %d items, want 2", q2.Len())
	}
	b.Unsubscribe("r1", q2)
}

func TestBroker_ConcurrentSubscribePublish(t *testing.T) {
	b := newTestBroker()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			q := b.Subscribe("r1")
			b.Unsubscribe("r1", q)
		}()
		go func() {
			defer wg.Done()
			b.Publish(event{room: "r1", body: "x"})
		}()
	}
	wg.Wait()
	if b.Keys() != 0 {
		t.Errorf("Keys() = %d, want 0", b.Keys())
	}
}

func TestBroker_PublishWakesWaiter(t *testing.T) {
	b := newTestBroker()
	q := b.Subscribe("r1")
	defer b.Unsubscribe("r1", q)

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Publish(event{room: "r1", body: "late"})
	}()

	e, ok := q.Wait(t.Context(), time.Second)
	if !ok {
		t.Fatal("Wait timed out")
	}
	if e.body != "late" {
		t.Errorf("got %q, want late", e.body)
	}
}
