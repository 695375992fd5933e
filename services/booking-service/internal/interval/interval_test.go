package interval

import (
	"testing"
	"time"
)

func span(startMin, endMin int) Span {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return Span{
		Start: base.Add(time.Duration(startMin) * time.Minute),
		End:   base.Add(time.Duration(endMin) * time.Minute),
	}
}

func TestClashes(t *testing.T) {
	tests := []struct {
		name    string
		subject Span
		other   Span
		want    bool
	}{
		{"start inside other", span(30, 90), span(0, 60), true},
		{"end inside other", span(0, 30), span(15, 60), true},
		{"subject contains other", span(0, 120), span(30, 60), true},
		{"other contains subject", span(30, 60), span(0, 120), true},
		{"identical", span(10, 20), span(10, 20), true},
		{"disjoint before", span(0, 10), span(20, 30), false},
		{"disjoint after", span(20, 30), span(0, 10), false},
		{"touching end to start", span(0, 10), span(10, 20), false},
		{"touching start to end", span(10, 20), span(0, 10), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clashes(tt.subject, tt.other); got != tt.want {
				t.Fatalf("Clashes(%v, %v) = %v, want %v", tt.subject, tt.other, got, tt.want)
			}
		})
	}
}

func TestClashesAny(t *testing.T) {
	others := []Span{span(0, 10), span(20, 30)}
	if ClashesAny(span(10, 20), others) {
		t.Fatal("slot fitting exactly between busy spans must not clash")
	}
	if !ClashesAny(span(5, 15), others) {
		t.Fatal("expected clash with first span")
	}
	if ClashesAny[Span](span(40, 50), nil) {
		t.Fatal("empty busy list must never clash")
	}
}

func TestClashesMinutes(t *testing.T) {
	tests := []struct {
		name    string
		subject MinuteSpan
		other   MinuteSpan
		want    bool
	}{
		{"start inside", MinuteSpan{900, 1200}, MinuteSpan{800, 1000}, true},
		{"end inside", MinuteSpan{600, 900}, MinuteSpan{800, 1000}, true},
		{"wraps", MinuteSpan{600, 1200}, MinuteSpan{800, 1000}, true},
		{"nested", MinuteSpan{850, 900}, MinuteSpan{800, 1000}, true},
		{"touching", MinuteSpan{1000, 1100}, MinuteSpan{800, 1000}, false},
		{"disjoint", MinuteSpan{0, 100}, MinuteSpan{800, 1000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClashesMinutes(tt.subject, tt.other); got != tt.want {
				t.Fatalf("ClashesMinutes(%v, %v) = %v, want %v", tt.subject, tt.other, got, tt.want)
			}
		})
	}
}
