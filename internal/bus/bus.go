package bus

import "time"

// DefaultCapacity bounds each queue. Publish blocks once full, applying
// backpressure to producers rather than growing unbounded.
const DefaultCapacity = 256

// Bus is a pair of bounded FIFO queues: inbound (channels -> loop) and
// outbound (loop/tools -> channels). Multiple producers may publish on
// either side; inbound has a single consumer (the AgentLoop), outbound
// may have several (one per channel adapter).
type Bus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
}

// New creates a Bus with bounded queues of the given capacity. A
// capacity <= 0 falls back to DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		inbound:  make(chan InboundMessage, capacity),
		outbound: make(chan OutboundMessage, capacity),
	}
}

// PublishInbound enqueues a message for the loop to consume. Blocks if the
// inbound queue is full.
func (b *Bus) PublishInbound(msg InboundMessage) {
	b.inbound <- msg
}

// ConsumeInbound blocks up to timeout for the next inbound message. The
// bool result is false on timeout, distinguishing "nothing arrived" from
// a zero-value message so the loop can check its stop flag at roughly the
// cadence the caller chooses (the agent loop uses ~1s).
func (b *Bus) ConsumeInbound(timeout time.Duration) (InboundMessage, bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-t.C:
		return InboundMessage{}, false
	}
}

// PublishOutbound enqueues a message for a channel adapter to deliver.
// Blocks if the outbound queue is full.
func (b *Bus) PublishOutbound(msg OutboundMessage) {
	b.outbound <- msg
}

// ConsumeOutbound blocks until an outbound message is available.
func (b *Bus) ConsumeOutbound() OutboundMessage {
	return <-b.outbound
}

// TryConsumeOutbound returns immediately; ok is false if the queue is
// empty. Used by adapters that poll on their own schedule.
func (b *Bus) TryConsumeOutbound() (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	default:
		return OutboundMessage{}, false
	}
}
