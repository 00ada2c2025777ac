package canopy

import "sync"

// Notification is a one-way message from the update goroutine to the event
// goroutine. Notifications carry IDs and copied values only, never pointers
// into live update-side state.
type Notification interface {
	notification()
}

// AnimationFinishedNotification lists animations that finished or looped
// during one update.
type AnimationFinishedNotification struct {
	Finished []uint32
	Looped   []uint32
}

// PropertyChangedNotification reports that a PropertyNotification fired.
type PropertyChangedNotification struct {
	ID    uint32
	Valid bool
	Value float32
}

// ShaderCompiledNotification carries a compiled program binary back to the
// event side so it can be cached.
type ShaderCompiledNotification struct {
	ShaderID uint32
	Binary   []byte
}

// RenderTaskCompleteNotification reports that a render-once task finished.
type RenderTaskCompleteNotification struct {
	TaskID uint32
}

func (AnimationFinishedNotification) notification()  {}
func (PropertyChangedNotification) notification()    {}
func (ShaderCompiledNotification) notification()     {}
func (RenderTaskCompleteNotification) notification() {}

// NotificationManager moves notifications from the update goroutine to the
// event goroutine. The update side queues without locking; UpdateCompleted
// hands the frame's batch over under a short-held lock, and the event side
// swaps the ready list out under the same lock before dispatching.
type NotificationManager struct {
	queued []Notification // update goroutine only

	mu    sync.Mutex
	ready []Notification

	scratch []Notification // event goroutine only
	trigger func()
}

// NewNotificationManager creates a manager. trigger, if non-nil, is called
// on the update goroutine whenever a batch becomes ready.
func NewNotificationManager(trigger func()) *NotificationManager {
	return &NotificationManager{trigger: trigger}
}

// QueueNotification adds n to this frame's batch. Update goroutine only.
func (m *NotificationManager) QueueNotification(n Notification) {
	m.queued = append(m.queued, n)
}

// QueuedCount returns the number of notifications queued this frame.
func (m *NotificationManager) QueuedCount() int {
	return len(m.queued)
}

// UpdateCompleted publishes this frame's batch. Update goroutine only.
func (m *NotificationManager) UpdateCompleted() {
	if len(m.queued) == 0 {
		return
	}
	m.mu.Lock()
	m.ready = append(m.ready, m.queued...)
	m.mu.Unlock()
	clear(m.queued)
	m.queued = m.queued[:0]
	if m.trigger != nil {
		m.trigger()
	}
}

// MessagesToProcess reports whether published notifications are waiting.
func (m *NotificationManager) MessagesToProcess() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ready) > 0
}

// ProcessMessages dispatches every published notification to handler in the
// order queued and returns how many were dispatched. Event goroutine only.
func (m *NotificationManager) ProcessMessages(handler func(Notification)) int {
	m.mu.Lock()
	m.ready, m.scratch = m.scratch[:0], m.ready
	m.mu.Unlock()

	for _, n := range m.scratch {
		handler(n)
	}
	count := len(m.scratch)
	clear(m.scratch)
	return count
}
