package bus

import (
	"testing"
	"time"
)

func TestNew_DefaultsCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
	}{
		{"zero", 0},
		{"negative", -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.capacity)
			if cap(b.inbound) != DefaultCapacity {
				t.Errorf("inbound capacity = %d, want %d", cap(b.inbound), DefaultCapacity)
			}
			if cap(b.outbound) != DefaultCapacity {
				t.Errorf("outbound capacity = %d, want %d", cap(b.outbound), DefaultCapacity)
			}
		})
	}
}

func TestPublishConsumeInbound(t *testing.T) {
	b := New(4)
	msg := InboundMessage{Channel: "cli", ChatID: "local", Content: "hello"}
	b.PublishInbound(msg)

	got, ok := b.ConsumeInbound(time.Second)
	if !ok {
		t.Fatal("ConsumeInbound returned ok=false, want true")
	}
	if got.Content != msg.Content || got.Channel != msg.Channel {
		t.Errorf("ConsumeInbound() = %+v, want %+v", got, msg)
	}
}

func TestConsumeInbound_Timeout(t *testing.T) {
	b := New(4)
	_, ok := b.ConsumeInbound(10 * time.Millisecond)
	if ok {
		t.Error("ConsumeInbound() returned ok=true on an empty bus, want false")
	}
}

func TestTryConsumeOutbound_Empty(t *testing.T) {
	b := New(4)
	_, ok := b.TryConsumeOutbound()
	if ok {
		t.Error("TryConsumeOutbound() returned ok=true on an empty bus, want false")
	}
}

func TestPublishTryConsumeOutbound(t *testing.T) {
	b := New(4)
	msg := OutboundMessage{Channel: "cli", ChatID: "local", Content: "reply"}
	b.PublishOutbound(msg)

	got, ok := b.TryConsumeOutbound()
	if !ok {
		t.Fatal("TryConsumeOutbound returned ok=false, want true")
	}
	if got.Content != msg.Content {
		t.Errorf("TryConsumeOutbound() = %+v, want %+v", got, msg)
	}
}

func TestConsumeOutbound_Blocks(t *testing.T) {
	b := New(4)
	done := make(chan OutboundMessage, 1)
	go func() {
		done <- b.ConsumeOutbound()
	}()

	select {
	case <-done:
		t.Fatal("ConsumeOutbound returned before a message was published")
	case <-time.After(20 * time.Millisecond):
	}

	b.PublishOutbound(OutboundMessage{Content: "late"})
	select {
	case got := <-done:
		if got.Content != "late" {
			t.Errorf("ConsumeOutbound() = %+v, want Content=late", got)
		}
	case <-time.After(time.Second):
		t.Fatal("ConsumeOutbound never returned after publish")
	}
}

func TestInboundMessage_SessionKey(t *testing.T) {
	tests := []struct {
		name string
		msg  InboundMessage
		want string
	}{
		{
			name: "default composes channel and chat id",
			msg:  InboundMessage{Channel: "cli", ChatID: "local"},
			want: "cli:local",
		},
		{
			name: "override wins",
			msg:  InboundMessage{Channel: "cli", ChatID: "local", SessionKeyOverride: "custom:key"},
			want: "custom:key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.SessionKey(); got != tt.want {
				t.Errorf("SessionKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
