package engine_test

import (
	"sync"
	"testing"
	"time"

	"github.com/seantiz/esgqa/internal/engine"
	"github.com/seantiz/esgqa/internal/model"
)

func update(id, status string) model.JobUpdate {
	return model.JobUpdate{JobID: id, Status: status, Timestamp: time.Now().UTC()}
}

func TestBrokerSingleSubscriber(t *testing.T) {
	b := engine.NewBroker()
	sub := engine.NewSubscriber()
	b.Subscribe("alice", sub)

	b.Publish(update("j1", model.StatusRunning))
	b.Publish(update("j1", model.StatusDone))

	got := drain(sub)
	if len(got) != 2 {
		t.Fatalf("got %d updates, want 2", len(got))
	}
	if got[0].Status != model.StatusRunning || got[1].Status != model.StatusDone {
		t.Errorf("got %+v, want running then done", got)
	}
}

func TestBrokerMultipleIdentities(t *testing.T) {
	b := engine.NewBroker()
	sub1 := engine.NewSubscriber()
	sub2 := engine.NewSubscriber()
	b.Subscribe("alice", sub1)
	b.Subscribe("bob", sub2)

	b.Publish(update("j1", model.StatusRunning))

	for _, sub := range []*engine.Subscriber{sub1, sub2} {
		got := drain(sub)
		if len(got) != 1 || got[0].JobID != "j1" {
			t.Errorf("subscriber %s got %+v, want one update for j1", sub.ID(), got)
		}
	}
}

func TestBrokerSubscribeReplaces(t *testing.T) {
	b := engine.NewBroker()
	old := engine.NewSubscriber()
	fresh := engine.NewSubscriber()
	b.Subscribe("alice", old)
	b.Subscribe("alice", fresh)

	if b.Len() != 1 {
		t.Errorf("Len = %d, want 1", b.Len())
	}

	b.Publish(update("j1", model.StatusRunning))

	if n := len(drain(old)); n != 0 {
		t.Errorf("replaced subscriber got %d updates, want 0", n)
	}
	if n := len(drain(fresh)); n != 1 {
		t.Errorf("new subscriber got %d updates, want 1", n)
	}
}

func TestBrokerStaleUnsubscribeKeepsNewer(t *testing.T) {
	b := engine.NewBroker()
	old := engine.NewSubscriber()
	fresh := engine.NewSubscriber()
	b.Subscribe("alice", old)
	b.Subscribe("alice", fresh)

	if b.Unsubscribe("alice", old) {
		t.Error("Unsubscribe with stale subscriber reported removal")
	}

	b.Publish(update("j1", model.StatusRunning))
	if n := len(drain(fresh)); n != 1 {
		t.Errorf("new subscriber got %d updates after stale close, want 1", n)
	}

	if !b.Unsubscribe("alice", fresh) {
		t.Error("Unsubscribe with current subscriber did not remove it")
	}
	if b.Len() != 0 {
		t.Errorf("Len = %d, want 0", b.Len())
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := engine.NewBroker()
	sub := engine.NewSubscriber()
	b.Subscribe("alice", sub)
	b.Unsubscribe("alice", sub)

	b.Publish(update("j1", model.StatusRunning))

	if n := len(drain(sub)); n != 0 {
		t.Errorf("got %d updates after unsubscribe, want 0", n)
	}
}

func TestBrokerSlowSubscriberDoesNotBlock(t *testing.T) {
	b := engine.NewBroker()
	slow := engine.NewSubscriber()
	fast := engine.NewSubscriber()
	b.Subscribe("slow", slow)
	b.Subscribe("fast", fast)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			b.Publish(update("j1", model.StatusRunning))
			// Keep the fast subscriber drained so only the slow one fills up.
			drain(fast)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestBrokerPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := engine.NewBroker()
	// Should not panic.
	b.Publish(update("j1", model.StatusRunning))
	if b.Unsubscribe("nobody", engine.NewSubscriber()) {
		t.Error("Unsubscribe of unknown identity reported removal")
	}
}

func TestBrokerConcurrentAccess(t *testing.T) {
	b := engine.NewBroker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := engine.NewSubscriber()
			b.Subscribe("alice", sub)
			b.Unsubscribe("alice", sub)
		}()
		go func() {
			defer wg.Done()
			b.Publish(update("j1", model.StatusRunning))
		}()
	}
	wg.Wait()
}

func TestSubscriberIDsAreUnique(t *testing.T) {
	a, b := engine.NewSubscriber(), engine.NewSubscriber()
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("subscriber ids %q and %q should be distinct and non-empty", a.ID(), b.ID())
	}
}
