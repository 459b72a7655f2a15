package engine

// EscalationState tracks the severity level and the RHO-sum streaks across
// observations. PrevSum is nil until the first observation.
type EscalationState struct {
	Level     int  `json:"level"`
	PrevSum   *int `json:"prevSum,omitempty"`
	IncStreak int  `json:"incStreak"`
	DecStreak int  `json:"decStreak"`
}

// ChoreographyState is the sequencer cursor. Profile is empty unless the card
// declares the default_v0_2 choreography.
type ChoreographyState struct {
	Profile      string `json:"profile,omitempty"`
	StepIndex    int    `json:"stepIndex"`
	CyclesInStep int    `json:"cyclesInStep"`
}

// CoordState is the whole persisted state. Callers own it and round-trip it
// between calls; NextStep never keeps a reference to it.
type CoordState struct {
	Escalation   EscalationState   `json:"escalation"`
	Choreography ChoreographyState `json:"choreography"`
}

// InitState returns the state before any observation.
func InitState() CoordState {
	return CoordState{}
}
