package models

import (
	"testing"
	"time"
)

func TestValidState(t *testing.T) {
	for _, s := range []string{StateQueued, StateActive, StateDone, StateCancel, StateError} {
		if !ValidState(s) {
			t.Errorf("ValidState(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "queued", "PENDING", "Done"} {
		if ValidState(s) {
			t.Errorf("ValidState(%q) = true, want false", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StateQueued, StateActive, true},
		{StateQueued, StateCancel, true},
		{StateActive, StateDone, true},
		{StateQueued, StateError, true},
		{StateActive, StateError, true},
		{StateQueued, StateDone, false},
		{StateActive, StateCancel, false},
		{StateDone, StateActive, false},
		{StateDone, StateError, false},
		{StateCancel, StateQueued, false},
		{StateCancel, StateError, false},
		{StateError, StateQueued, false},
		{"bogus", StateActive, false},
		{StateQueued, "bogus", false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSessionWeight(t *testing.T) {
	individual := Session{ID: "s1", DepartureTime: time.Now()}
	if got := individual.Weight(); got != 1 {
		t.Errorf("individual weight = %d, want 1", got)
	}

	team := Session{ID: "s2", Team: &Team{Size: 6}}
	if got := team.Weight(); got != 6 {
		t.Errorf("team weight = %d, want 6", got)
	}

	// A degenerate team of size 1 still counts as a single seat.
	solo := Session{ID: "s3", Team: &Team{Size: 1}}
	if got := solo.Weight(); got != 1 {
		t.Errorf("size-1 team weight = %d, want 1", got)
	}
}
