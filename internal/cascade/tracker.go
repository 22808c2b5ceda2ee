package cascade

import "github.com/algotradingios/Trading-Polymarket-Framework/internal/models"

// Tracker runs a Detector per instrument and keeps each instrument's
// one-step state. States are created lazily with empty fields. It is not
// safe for concurrent use.
type Tracker struct {
	det    Detector
	states map[string]models.CascadeState
}

func NewTracker(det Detector) *Tracker {
	return &Tracker{
		det:    det,
		states: make(map[string]models.CascadeState),
	}
}

func (t *Tracker) Detector() Detector {
	return t.det
}

// Step evaluates in against the instrument's prior state and stores the new
// state whatever the outcome.
func (t *Tracker) Step(id string, in Input) models.CascadeSignal {
	sig, next := t.det.Detect(in, t.states[id])
	t.states[id] = next
	return sig
}

func (t *Tracker) State(id string) (models.CascadeState, bool) {
	s, ok := t.states[id]
	return s, ok
}

func (t *Tracker) Len() int {
	return len(t.states)
}

// Export returns a copy of all states for checkpointing.
func (t *Tracker) Export() map[string]models.CascadeState {
	out := make(map[string]models.CascadeState, len(t.states))
	for id, s := range t.states {
		out[id] = s
	}
	return out
}

// Restore replaces the states of the instruments present in states.
func (t *Tracker) Restore(states map[string]models.CascadeState) {
	for id, s := range states {
		t.states[id] = s
	}
}
