package slideshow

import (
	"errors"
	"slices"
)

// Phase represents the current stage of a recording.
type Phase string

const (
	// PhaseIdle indicates the encoder has not received any frame yet.
	PhaseIdle Phase = "idle"
	// PhaseCredits indicates the intro image is being rendered full screen.
	PhaseCredits Phase = "credits"
	// PhasePaired indicates clips are being rendered side by side.
	PhasePaired Phase = "paired"
	// PhaseFullscreen indicates fullscreen clips are being rendered.
	PhaseFullscreen Phase = "fullscreen"
	// PhaseDone indicates the video was finalized.
	PhaseDone Phase = "done"
	// PhaseFailed indicates the recording was aborted.
	PhaseFailed Phase = "failed"
)

// ErrInvalidTransition is returned when an invalid phase transition is attempted.
var ErrInvalidTransition = errors.New("invalid phase transition")

// validTransitions defines which phase transitions are allowed.
// Credits are optional; every other phase is entered exactly once.
var validTransitions = map[Phase][]Phase{
	PhaseIdle:       {PhaseCredits, PhasePaired, PhaseFailed},
	PhaseCredits:    {PhasePaired, PhaseFailed},
	PhasePaired:     {PhaseFullscreen, PhaseFailed},
	PhaseFullscreen: {PhaseDone, PhaseFailed},
	PhaseDone:       {},
	PhaseFailed:     {},
}

// canTransition checks if a transition from one phase to another is valid.
func canTransition(from, to Phase) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// IsTerminal returns true if no further transition is possible.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}
