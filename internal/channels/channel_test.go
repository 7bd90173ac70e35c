package channels

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

func TestIsInternalChannel(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"cli", true},
		{"system", true},
		{"subagent", true},
		{"telegram", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInternalChannel(tt.name); got != tt.want {
				t.Errorf("IsInternalChannel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestBaseChannel_NameAndRunning(t *testing.T) {
	c := NewBaseChannel("cli", bus.New(1))
	if c.Name() != "cli" {
		t.Errorf("Name() = %q, want cli", c.Name())
	}
	if c.IsRunning() {
		t.Error("IsRunning() = true before SetRunning, want false")
	}
	c.SetRunning(true)
	if !c.IsRunning() {
		t.Error("IsRunning() = false after SetRunning(true), want true")
	}
}

func TestBaseChannel_HandleMessage(t *testing.T) {
	b := bus.New(4)
	c := NewBaseChannel("cli", b)

	c.HandleMessage("chat-1", "hello", []string{"img.png"}, map[string]string{"k": "v"})

	got, ok := b.ConsumeInbound(time.Second)
	if !ok {
		t.Fatal("expected an inbound message on the bus")
	}
	if got.Channel != "cli" || got.ChatID != "chat-1" || got.Content != "hello" {
		t.Errorf("ConsumeInbound() = %+v, want channel=cli chatID=chat-1 content=hello", got)
	}
	if len(got.Media) != 1 || got.Media[0] != "img.png" {
		t.Errorf("Media = %v, want [img.png]", got.Media)
	}
	if got.Metadata["k"] != "v" {
		t.Errorf("Metadata[k] = %q, want v", got.Metadata["k"])
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"under limit", "hello", 10, "hello"},
		{"exact limit", "hello", 5, "hello"},
		{"over limit", "hello world", 5, "hello..."},
		{"empty string", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.s, tt.maxLen); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}
