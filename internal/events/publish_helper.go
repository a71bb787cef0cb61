package events

// PublishHelper wraps event publishing with nil-safety and convenience
// methods scoped to the attempt/process lifecycle. All methods are safe
// to call even when the underlying publisher is nil.
//
// Thread-safe: all methods can be called concurrently.
type PublishHelper struct {
	publisher Publisher
}

// NewPublishHelper creates a new PublishHelper wrapping the given
// publisher. If p is nil, all publish operations become no-ops.
func NewPublishHelper(p Publisher) *PublishHelper {
	return &PublishHelper{publisher: p}
}

// Publish sends an event to the underlying publisher. Safe to call with
// a nil publisher (no-op).
func (h *PublishHelper) Publish(ev Event) {
	if h == nil || h.publisher == nil {
		return
	}
	h.publisher.Publish(ev)
}

// AttemptState publishes a Coordinator state transition (§4.5).
func (h *PublishHelper) AttemptState(attemptID, state string) {
	h.Publish(NewEvent(EventAttemptState, attemptID, AttemptStateData{State: state}))
}

// ProcessStarted publishes a process-spawn event.
func (h *PublishHelper) ProcessStarted(attemptID, processID, processType string) {
	h.Publish(NewEvent(EventProcessStarted, attemptID, ProcessStartedData{
		ProcessID:   processID,
		ProcessType: processType,
	}))
}

// ProcessLog publishes a stdout/stderr chunk as it is persisted.
func (h *PublishHelper) ProcessLog(attemptID, processID, stream, chunk string) {
	h.Publish(NewEvent(EventProcessLog, attemptID, ProcessLogData{
		ProcessID: processID,
		Stream:    stream,
		Chunk:     chunk,
	}))
}

// ProcessComplete publishes a process reaching a terminal status.
func (h *PublishHelper) ProcessComplete(attemptID, processID, status string, exitCode *int) {
	h.Publish(NewEvent(EventProcessComplete, attemptID, ProcessCompleteData{
		ProcessID: processID,
		Status:    status,
		ExitCode:  exitCode,
	}))
}

// PlanReady publishes a plan awaiting approval.
func (h *PublishHelper) PlanReady(attemptID, processID string) {
	h.Publish(NewEvent(EventPlanReady, attemptID, PlanReadyData{ProcessID: processID}))
}
