// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     capture
// Description: Capture session states and transition table
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package capture

// State represents the lifecycle state of a capture session
type State int

const (
	// StateIdle - No stream bound
	StateIdle State = iota

	// StateInitializing - Building the analysis graph for a new stream
	StateInitializing

	// StateReady - Stream bound, not recording
	StateReady

	// StateRecording - Recorder running, chunks accumulating
	StateRecording

	// StateFinalizing - Waiting for the recorder to flush
	StateFinalizing

	// StateRebinding - Switching to another device
	StateRebinding

	// StateDestroyed - Terminal
	StateDestroyed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	case StateRebinding:
		return "rebinding"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// transitions lists the valid targets per state. Destroyed is reachable
// from every state and handled separately.
var transitions = map[State][]State{
	StateIdle:         {StateInitializing, StateRebinding},
	StateInitializing: {StateReady, StateIdle},
	StateReady:        {StateRecording, StateRebinding, StateInitializing},
	StateRecording:    {StateFinalizing, StateInitializing},
	StateFinalizing:   {StateReady},
	StateRebinding:    {StateInitializing, StateIdle},
	StateDestroyed:    {},
}

// canTransition checks if a state transition is valid
func canTransition(from, to State) bool {
	if to == StateDestroyed {
		return from != StateDestroyed
	}
	for _, valid := range transitions[from] {
		if valid == to {
			return true
		}
	}
	return false
}
