package query

import (
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	cursor := EncodeCursor(now)

	decoded, err := DecodeCursor(cursor)
	if err != nil {
		t.Fatalf("DecodeCursor() error = %v", err)
	}
	if !decoded.Equal(now) {
		t.Errorf("DecodeCursor() = %v, want %v", decoded, now)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, cursor := range []string{"not base64!!", "aGVsbG8", ""} {
		if _, err := DecodeCursor(cursor); err == nil {
			t.Errorf("DecodeCursor(%q) expected error", cursor)
		}
	}
}

func TestLimitOrDefault(t *testing.T) {
	tests := []struct {
		name  string
		limit *int
		want  int
	}{
		{name: "nil limit uses default", limit: nil, want: 20},
		{name: "in range", limit: intPtr(42), want: 42},
		{name: "clamped to max", limit: intPtr(500), want: 100},
		{name: "zero uses default", limit: intPtr(0), want: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Pagination{Limit: tt.limit}
			if got := p.LimitOrDefault(20, 100); got != tt.want {
				t.Errorf("LimitOrDefault() = %d, want %d", got, tt.want)
			}
		})
	}
}

func intPtr(v int) *int { return &v }
