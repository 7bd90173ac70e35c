package sessions

import "testing"

func TestSession_RecentImage_RoundTrip(t *testing.T) {
	s := newSession("cli:local")

	if _, ok := s.RecentImage(); ok {
		t.Error("RecentImage() ok = true on a fresh session, want false")
	}

	s.SetRecentImage(&RecentImageContext{Path: "/tmp/a.png", TurnsLeft: 2})
	got, ok := s.RecentImage()
	if !ok {
		t.Fatal("RecentImage() ok = false after SetRecentImage, want true")
	}
	if got.Path != "/tmp/a.png" || got.TurnsLeft != 2 {
		t.Errorf("RecentImage() = %+v, want Path=/tmp/a.png TurnsLeft=2", got)
	}

	s.SetRecentImage(nil)
	if _, ok := s.RecentImage(); ok {
		t.Error("RecentImage() ok = true after clearing with nil, want false")
	}
}

func TestSession_Unconsolidated(t *testing.T) {
	s := newSession("cli:local")
	s.Messages = []Entry{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
	}

	tests := []struct {
		name             string
		lastConsolidated int
		wantLen          int
	}{
		{"none consolidated", 0, 3},
		{"one consolidated", 1, 2},
		{"all consolidated", 3, 0},
		{"out of range clamps to all", 99, 3},
		{"negative clamps to all", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.LastConsolidated = tt.lastConsolidated
			got := s.Unconsolidated()
			if len(got) != tt.wantLen {
				t.Errorf("Unconsolidated() len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}
