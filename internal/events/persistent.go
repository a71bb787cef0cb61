package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/orc/internal/store"
)

const (
	// Buffer flushes when it reaches this size
	bufferSizeThreshold = 10
	// Buffer flushes automatically every 5 seconds
	flushInterval = 5 * time.Second
)

// PersistentPublisher wraps MemoryPublisher and adds database persistence.
// It maintains live broadcast behavior while writing events to the
// event_log table, so a subscriber that wasn't listening can replay
// history via store.FindEventsByAttempt.
type PersistentPublisher struct {
	inner       *MemoryPublisher
	db          *store.DB
	source      string
	buffer      []*store.EventLog
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	logger      *slog.Logger
	stopCh      chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// NewPersistentPublisher creates a new persistent event publisher.
// source identifies where events originate (e.g. "coordinator",
// "supervisor").
func NewPersistentPublisher(db *store.DB, source string, logger *slog.Logger, opts ...PublisherOption) *PersistentPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	p := &PersistentPublisher{
		inner:  NewMemoryPublisher(opts...),
		db:     db,
		source: source,
		buffer: make([]*store.EventLog, 0, bufferSizeThreshold),
		logger: logger,
		stopCh: make(chan struct{}),
	}

	p.flushTicker = time.NewTicker(flushInterval)
	p.wg.Add(1)
	go p.flushLoop()

	return p
}

// Publish sends an event to subscribers and persists it to the database.
func (p *PersistentPublisher) Publish(event Event) {
	p.inner.Publish(event)

	if p.db == nil {
		return
	}

	p.bufferMu.Lock()
	p.buffer = append(p.buffer, p.eventToLog(event))
	shouldFlush := len(p.buffer) >= bufferSizeThreshold
	p.bufferMu.Unlock()

	if shouldFlush {
		p.flush()
	}
}

// Subscribe returns a channel that receives events for the given attempt.
func (p *PersistentPublisher) Subscribe(attemptID string) <-chan Event {
	return p.inner.Subscribe(attemptID)
}

// Unsubscribe removes a subscription channel.
func (p *PersistentPublisher) Unsubscribe(attemptID string, ch <-chan Event) {
	p.inner.Unsubscribe(attemptID, ch)
}

// Close shuts down the publisher, flushes remaining events, and releases
// resources. Idempotent.
func (p *PersistentPublisher) Close() {
	p.closeOnce.Do(func() {
		close(p.stopCh)
		p.flushTicker.Stop()
		p.wg.Wait()
		p.flush()
		p.inner.Close()
	})
}

// flushLoop runs in the background and flushes the buffer periodically.
func (p *PersistentPublisher) flushLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.flushTicker.C:
			p.flush()
		case <-p.stopCh:
			return
		}
	}
}

// flush writes buffered events to the database in a single batch.
func (p *PersistentPublisher) flush() {
	p.bufferMu.Lock()
	if len(p.buffer) == 0 {
		p.bufferMu.Unlock()
		return
	}
	toFlush := p.buffer
	p.buffer = make([]*store.EventLog, 0, bufferSizeThreshold)
	p.bufferMu.Unlock()

	if err := p.db.SaveEvents(context.Background(), toFlush); err != nil {
		p.logger.Error("failed to persist events", "error", err, "count", len(toFlush))
	}
}

// eventToLog converts an Event to an EventLog row for database storage.
func (p *PersistentPublisher) eventToLog(e Event) *store.EventLog {
	var processID string
	switch data := e.Data.(type) {
	case ProcessStartedData:
		processID = data.ProcessID
	case ProcessLogData:
		processID = data.ProcessID
	case ProcessCompleteData:
		processID = data.ProcessID
	case PlanReadyData:
		processID = data.ProcessID
	}

	payload, err := json.Marshal(e.Data)
	if err != nil {
		p.logger.Warn("failed to marshal event payload", "error", err, "type", e.Type)
		payload = []byte("{}")
	}

	return &store.EventLog{
		ID:        uuid.NewString(),
		AttemptID: e.AttemptID,
		ProcessID: processID,
		EventType: string(e.Type),
		Data:      string(payload),
		Source:    p.source,
		CreatedAt: e.Time,
	}
}
