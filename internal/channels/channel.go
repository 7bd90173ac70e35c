// Package channels provides the channel abstraction layer that connects an
// external chat surface (a CLI, a chat platform) to the agent runtime via
// the message bus.
package channels

import (
	"context"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

// InternalChannels are system channels excluded from outbound dispatch.
var InternalChannels = map[string]bool{
	"cli":      true,
	"system":   true,
	"subagent": true,
}

// IsInternalChannel checks if a channel name is internal.
func IsInternalChannel(name string) bool {
	return InternalChannels[name]
}

// Channel defines the interface every channel adapter must satisfy.
type Channel interface {
	// Name returns the channel identifier (e.g., "cli", "telegram").
	Name() string

	// Start begins listening for messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the channel.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning returns whether the channel is actively processing messages.
	IsRunning() bool
}

// BaseChannel provides the bus-wiring shared by every channel adapter.
// Adapters embed this struct.
type BaseChannel struct {
	name    string
	bus     *bus.Bus
	running bool
}

// NewBaseChannel creates a new BaseChannel bound to the given bus.
func NewBaseChannel(name string, msgBus *bus.Bus) *BaseChannel {
	return &BaseChannel{name: name, bus: msgBus}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running = running }

// Bus returns the message bus reference.
func (c *BaseChannel) Bus() *bus.Bus { return c.bus }

// HandleMessage wraps content into an InboundMessage and publishes it.
// This is the standard way for an adapter to forward a received message.
func (c *BaseChannel) HandleMessage(chatID, content string, media []string, metadata map[string]string) {
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:  c.name,
		ChatID:   chatID,
		Content:  content,
		Media:    media,
		Metadata: metadata,
	})
}

// Truncate shortens a string to maxLen, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
