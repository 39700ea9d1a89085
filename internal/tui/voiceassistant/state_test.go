package voiceassistant

import (
	"testing"
)

func TestStateMachine_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		from  []State
		to    State
		valid bool
	}{
		{"idle to listening", nil, StateListening, true},
		{"idle to processing", nil, StateProcessing, true},
		{"idle to speaking", nil, StateSpeaking, false},
		{"listening to processing", []State{StateListening}, StateProcessing, true},
		{"listening to speaking", []State{StateListening}, StateSpeaking, false},
		{"processing to speaking", []State{StateProcessing}, StateSpeaking, true},
		{"speaking interrupted by recording", []State{StateProcessing, StateSpeaking}, StateListening, true},
		{"error to processing", []State{StateError}, StateProcessing, true},
		{"error to speaking", []State{StateError}, StateSpeaking, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			for _, s := range tt.from {
				if !sm.Transition(s) {
					t.Fatalf("setup transition to %v failed", s)
				}
			}
			if got := sm.Transition(tt.to); got != tt.valid {
				t.Errorf("Transition(%v) = %v, want %v", tt.to, got, tt.valid)
			}
		})
	}
}

func TestStateMachine_Listeners(t *testing.T) {
	sm := NewStateMachine()

	var seen [][2]State
	sm.AddListener(func(from, to State) {
		seen = append(seen, [2]State{from, to})
	})

	sm.Transition(StateListening)
	sm.Transition(StateSpeaking) // rejected
	sm.Transition(StateProcessing)

	if len(seen) != 2 {
		t.Fatalf("listener calls = %d, want 2", len(seen))
	}
	if seen[1] != [2]State{StateListening, StateProcessing} {
		t.Errorf("second change = %v, want listening -> processing", seen[1])
	}
	if sm.Previous() != StateListening {
		t.Errorf("Previous() = %v, want %v", sm.Previous(), StateListening)
	}
	if !sm.IsActive() {
		t.Error("IsActive() = false while processing")
	}

	sm.Reset()
	if sm.Current() != StateIdle || sm.IsActive() {
		t.Errorf("after Reset: Current() = %v, IsActive() = %v", sm.Current(), sm.IsActive())
	}
	if len(seen) != 3 {
		t.Errorf("Reset should notify listeners, calls = %d", len(seen))
	}
}

func TestState_Labels(t *testing.T) {
	for _, s := range []State{StateIdle, StateListening, StateProcessing, StateSpeaking, StateError} {
		if s.String() == "" || s.Icon() == "" {
			t.Errorf("state %d has empty label or icon", s)
		}
	}
	if StateListening.String() != "Aufnahme..." {
		t.Errorf("StateListening.String() = %q", StateListening.String())
	}
}
