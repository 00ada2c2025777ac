package canopy

import (
	"sync"
	"sync/atomic"
)

// Message is one mutation request from the event goroutine. Apply runs only
// on the update goroutine, against the update buffer index of the frame that
// drains it.
type Message interface {
	Apply(um *UpdateManager, bufferIndex BufferIndex)
}

// RenderController is notified by the MessageQueue when the event side has
// work for the update goroutine. The frame Driver implements it.
type RenderController interface {
	// RequestUpdate wakes an idle update goroutine.
	RequestUpdate()
	// RequestProcessEventsOnIdle asks the event side to flush messages that
	// were enqueued outside of event processing.
	RequestProcessEventsOnIdle()
}

type messageBatch struct {
	msgs        []Message
	updateScene bool
	next        *messageBatch
}

var batchPool = sync.Pool{
	New: func() any { return &messageBatch{msgs: make([]Message, 0, 32)} },
}

// MessageQueue carries messages from exactly one event goroutine to exactly
// one update goroutine.
//
// The event side appends to a private batch. FlushQueue publishes the batch
// by pushing it onto a lock-free stack; ProcessMessages detaches the whole
// stack in one atomic swap and applies the batches oldest first, so messages
// apply in strict enqueue order.
type MessageQueue struct {
	controller RenderController

	// event goroutine only
	pending          *messageBatch
	processingEvents bool

	flushed     atomic.Pointer[messageBatch]
	sceneUpdate atomic.Bool

	// update goroutine only
	lastProcessed int
	order         []*messageBatch
}

// NewMessageQueue creates a queue. controller may be nil.
func NewMessageQueue(controller RenderController) *MessageQueue {
	return &MessageQueue{controller: controller}
}

// SetRenderController replaces the controller. Call before the goroutines start.
func (q *MessageQueue) SetRenderController(controller RenderController) {
	q.controller = controller
}

// EventProcessingStarted marks the start of an event-processing pass. Messages
// enqueued outside such a pass ask the controller for an idle flush.
func (q *MessageQueue) EventProcessingStarted() {
	q.processingEvents = true
}

// Enqueue appends msg. updateScene records whether applying it requires the
// scene passes to run. Event goroutine only.
func (q *MessageQueue) Enqueue(msg Message, updateScene bool) {
	if msg == nil {
		panic("canopy: cannot enqueue nil message")
	}
	if q.pending == nil {
		q.pending = batchPool.Get().(*messageBatch)
		if !q.processingEvents && q.controller != nil {
			q.controller.RequestProcessEventsOnIdle()
		}
	}
	q.pending.msgs = append(q.pending.msgs, msg)
	q.pending.updateScene = q.pending.updateScene || updateScene
}

// Post enqueues a scene-affecting message.
func (q *MessageQueue) Post(msg Message) {
	q.Enqueue(msg, true)
}

// FlushQueue publishes everything enqueued since the last flush and ends the
// event-processing pass. Returns false when there was nothing to publish.
// Event goroutine only.
func (q *MessageQueue) FlushQueue() bool {
	q.processingEvents = false
	b := q.pending
	if b == nil {
		return false
	}
	q.pending = nil

	for {
		head := q.flushed.Load()
		b.next = head
		if q.flushed.CompareAndSwap(head, b) {
			break
		}
	}
	if b.updateScene {
		q.sceneUpdate.Store(true)
	}
	if q.controller != nil {
		q.controller.RequestUpdate()
	}
	return true
}

// IsSceneUpdateRequired reports whether a flushed, unprocessed batch contains
// a scene-affecting message. Safe from any goroutine.
func (q *MessageQueue) IsSceneUpdateRequired() bool {
	return q.sceneUpdate.Load()
}

// HasPending reports whether flushed messages are waiting to be processed.
func (q *MessageQueue) HasPending() bool {
	return q.flushed.Load() != nil
}

// ProcessMessages applies every flushed message against bufferIndex and
// reports whether any of them required a scene update. An empty queue is a
// no-op returning false. Update goroutine only.
func (q *MessageQueue) ProcessMessages(um *UpdateManager, bufferIndex BufferIndex) bool {
	q.lastProcessed = 0

	// Clear before detaching: a flag raised concurrently then belongs to a
	// batch we either take now or see next frame.
	q.sceneUpdate.Store(false)
	head := q.flushed.Swap(nil)
	if head == nil {
		return false
	}

	q.order = q.order[:0]
	for b := head; b != nil; b = b.next {
		q.order = append(q.order, b)
	}

	updateScene := false
	for i := len(q.order) - 1; i >= 0; i-- {
		b := q.order[i]
		for _, msg := range b.msgs {
			msg.Apply(um, bufferIndex)
		}
		q.lastProcessed += len(b.msgs)
		updateScene = updateScene || b.updateScene

		clear(b.msgs)
		b.msgs = b.msgs[:0]
		b.updateScene = false
		b.next = nil
		batchPool.Put(b)
	}
	clear(q.order)
	return updateScene
}

// LastProcessedCount returns how many messages the last ProcessMessages applied.
func (q *MessageQueue) LastProcessedCount() int {
	return q.lastProcessed
}
