package channels

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

// CLIChannel reads lines from stdin and prints outbound replies to stdout.
// It is the minimal worked example of the Channel interface: one chat ID
// ("stdio"), no allowlisting, no reconnection logic.
type CLIChannel struct {
	*BaseChannel
	chatID string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewCLIChannel creates a CLI channel publishing inbound lines under chatID.
func NewCLIChannel(msgBus *bus.Bus, chatID string) *CLIChannel {
	if chatID == "" {
		chatID = "stdio"
	}
	return &CLIChannel{BaseChannel: NewBaseChannel("cli", msgBus), chatID: chatID}
}

// Start launches a goroutine that reads stdin line by line until ctx is
// done or stdin closes.
func (c *CLIChannel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.SetRunning(true)
	go c.readLoop(runCtx)
	return nil
}

func (c *CLIChannel) readLoop(ctx context.Context) {
	defer c.SetRunning(false)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.HandleMessage(c.chatID, line, nil, nil)
	}
}

// Stop cancels the read loop.
func (c *CLIChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Send prints the outbound message's content to stdout.
func (c *CLIChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if msg.Content != "" {
		fmt.Println(msg.Content)
	}
	for _, m := range msg.Media {
		fmt.Printf("[media: %s]\n", m)
	}
	return nil
}
