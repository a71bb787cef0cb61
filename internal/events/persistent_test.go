package events

import (
	"context"
	"testing"
	"time"

	"github.com/randalmurphal/orc/internal/store"
	"github.com/randalmurphal/orc/internal/store/driver"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(context.Background(), driver.DialectSQLite, dir+"/attempts.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPersistentPublisherBroadcastsLive(t *testing.T) {
	db := newTestDB(t)
	p := NewPersistentPublisher(db, "test", nil)
	defer p.Close()

	ch := p.Subscribe("attempt-1")
	p.Publish(NewEvent(EventAttemptState, "attempt-1", AttemptStateData{State: "Idle"}))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected live broadcast regardless of persistence")
	}
}

func TestPersistentPublisherFlushesAtThreshold(t *testing.T) {
	db := newTestDB(t)
	p := NewPersistentPublisher(db, "test", nil)
	defer p.Close()

	for i := 0; i < bufferSizeThreshold; i++ {
		p.Publish(NewEvent(EventProcessLog, "attempt-1", ProcessLogData{ProcessID: "proc-1", Stream: "stdout", Chunk: "x"}))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rows, err := db.FindEventsByAttempt(context.Background(), "attempt-1")
		if err != nil {
			t.Fatalf("FindEventsByAttempt: %v", err)
		}
		if len(rows) == bufferSizeThreshold {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected buffered events to flush once the threshold was reached")
}

func TestPersistentPublisherFlushesOnClose(t *testing.T) {
	db := newTestDB(t)
	p := NewPersistentPublisher(db, "test", nil)

	p.Publish(NewEvent(EventAttemptState, "attempt-2", AttemptStateData{State: "Idle"}))
	p.Close()

	rows, err := db.FindEventsByAttempt(context.Background(), "attempt-2")
	if err != nil {
		t.Fatalf("FindEventsByAttempt: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 persisted event after Close, got %d", len(rows))
	}
	if rows[0].Source != "test" {
		t.Errorf("source = %q, want test", rows[0].Source)
	}
}
