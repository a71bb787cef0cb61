package events

import (
	"testing"
	"time"
)

func TestMemoryPublisherDeliversToSubscriber(t *testing.T) {
	p := NewMemoryPublisher()
	defer p.Close()

	ch := p.Subscribe("attempt-1")
	p.Publish(NewEvent(EventProcessStarted, "attempt-1", ProcessStartedData{ProcessID: "proc-1", ProcessType: "CodingAgent"}))

	select {
	case ev := <-ch:
		data, ok := ev.Data.(ProcessStartedData)
		if !ok || data.ProcessID != "proc-1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestMemoryPublisherIsolatesAttempts(t *testing.T) {
	p := NewMemoryPublisher()
	defer p.Close()

	chA := p.Subscribe("attempt-a")
	chB := p.Subscribe("attempt-b")

	p.Publish(NewEvent(EventAttemptState, "attempt-a", AttemptStateData{State: "Idle"}))

	select {
	case <-chA:
	case <-time.After(time.Second):
		t.Fatal("attempt-a subscriber should have received its event")
	}

	select {
	case ev := <-chB:
		t.Fatalf("attempt-b subscriber should not receive attempt-a's event, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryPublisherGlobalSubscriberReceivesAll(t *testing.T) {
	p := NewMemoryPublisher()
	defer p.Close()

	global := p.Subscribe(GlobalAttemptID)
	p.Publish(NewEvent(EventAttemptState, "attempt-x", AttemptStateData{State: "MainRunning"}))

	select {
	case ev := <-global:
		if ev.AttemptID != "attempt-x" {
			t.Fatalf("unexpected attempt id: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("global subscriber should receive events for all attempts")
	}
}

func TestMemoryPublisherNonBlockingOnFullBuffer(t *testing.T) {
	p := NewMemoryPublisher(WithBufferSize(1))
	defer p.Close()

	_ = p.Subscribe("attempt-1")
	// Fill the buffer, then publish again; the second publish must not block.
	done := make(chan struct{})
	go func() {
		p.Publish(NewEvent(EventProcessLog, "attempt-1", ProcessLogData{ProcessID: "p", Stream: "stdout", Chunk: "a"}))
		p.Publish(NewEvent(EventProcessLog, "attempt-1", ProcessLogData{ProcessID: "p", Stream: "stdout", Chunk: "b"}))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish should never block even with a full subscriber buffer")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	p := NewMemoryPublisher()
	defer p.Close()

	ch := p.Subscribe("attempt-1")
	p.Unsubscribe("attempt-1", ch)

	_, open := <-ch
	if open {
		t.Fatal("expected channel to be closed after Unsubscribe")
	}
	if p.SubscriberCount("attempt-1") != 0 {
		t.Fatal("expected subscriber count to be zero after Unsubscribe")
	}
}

func TestNopPublisherIsSafe(t *testing.T) {
	p := NewNopPublisher()
	p.Publish(NewEvent(EventAttemptState, "attempt-1", AttemptStateData{State: "Idle"}))
	ch := p.Subscribe("attempt-1")
	if _, open := <-ch; open {
		t.Fatal("NopPublisher's Subscribe should return a closed channel")
	}
	p.Close()
}
