package channels

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

func TestNewCLIChannel_DefaultChatID(t *testing.T) {
	c := NewCLIChannel(bus.New(1), "")
	if c.chatID != "stdio" {
		t.Errorf("chatID = %q, want stdio", c.chatID)
	}
}

func TestCLIChannel_Send(t *testing.T) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	c := NewCLIChannel(bus.New(1), "local")
	if err := c.Send(context.Background(), bus.OutboundMessage{Content: "hi there", Media: []string{"a.png"}}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	w.Close()
	var buf bytes.Buffer
	io.Copy(&buf, r)

	out := buf.String()
	if !bytes.Contains(buf.Bytes(), []byte("hi there")) {
		t.Errorf("stdout = %q, want it to contain %q", out, "hi there")
	}
	if !bytes.Contains(buf.Bytes(), []byte("a.png")) {
		t.Errorf("stdout = %q, want it to contain media reference", out)
	}
}

func TestCLIChannel_StartReadsLinesAndStop(t *testing.T) {
	origStdin := os.Stdin
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdin = r
	defer func() { os.Stdin = origStdin }()

	msgBus := bus.New(4)
	c := NewCLIChannel(msgBus, "local")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.IsRunning() {
		t.Error("IsRunning() = false right after Start, want true")
	}

	w.WriteString("hello world\n")

	got, ok := msgBus.ConsumeInbound(time.Second)
	if !ok {
		t.Fatal("expected a line to arrive on the inbound bus")
	}
	if got.Content != "hello world" || got.ChatID != "local" || got.Channel != "cli" {
		t.Errorf("ConsumeInbound() = %+v, want content=\"hello world\" chatID=local channel=cli", got)
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	w.Close()
}
