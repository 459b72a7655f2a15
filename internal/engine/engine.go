// Package engine computes the next conversational repair step from a card,
// the persisted coordination state and one observation's RHO score.
//
// NextStep is pure: it performs no I/O, keeps no state between calls and
// returns a fresh CoordState that shares nothing with its input, so callers
// may run it concurrently on independent inputs.
package engine

import (
	"github.com/lucasnoah/coordcard/internal/card"
	"github.com/lucasnoah/coordcard/internal/score"
)

// Why explains a decision.
type Why struct {
	TriggerFired    TriggerID `json:"triggerFired"`
	RuleSource      string    `json:"ruleSource,omitempty"`
	RuleText        string    `json:"ruleText,omitempty"`
	Summary         string    `json:"summary"`
	RhoSum          int       `json:"rhoSum"`
	IncStreak       int       `json:"incStreak"`
	DecStreak       int       `json:"decStreak"`
	EscalationLevel int       `json:"escalationLevel"`
}

// Result is the engine's output: the action to take, the text to render,
// the rationale and the state to persist for the next call.
type Result struct {
	Action       Action     `json:"action"`
	TemplateText string     `json:"templateText"`
	Why          Why        `json:"why"`
	State        CoordState `json:"state"`
}

const summaryNoTrigger = "No repair/vent trigger fired."

// NextStep applies one observation to st and selects the next action.
//
// Scores are expected to be clamped to [0,3] already. A nil card behaves like
// an empty one: every lookup falls back to its default.
func NextStep(c *card.Card, st CoordState, sc score.Result) Result {
	esc := st.Escalation
	rhoSum := sc.Sum()

	switch {
	case esc.PrevSum == nil:
		esc.IncStreak, esc.DecStreak = 0, 0
	case rhoSum > *esc.PrevSum:
		esc.IncStreak++
		esc.DecStreak = 0
	default:
		esc.DecStreak++
		esc.IncStreak = 0
	}

	obs := observation{
		anyHit3:   sc.AnyMax(),
		incStreak: esc.IncStreak,
		decStreak: esc.DecStreak,
	}
	fired := evaluateTriggers(c, obs, &esc)
	esc.PrevSum = &rhoSum

	cursor := ChoreographyState{
		StepIndex:    max(st.Choreography.StepIndex, 0),
		CyclesInStep: max(st.Choreography.CyclesInStep, 0),
	}
	if ch, ok := c.DeclaredChoreography(); ok {
		cursor.Profile = ch.Profile
	}

	res := Result{
		Action:       ActionContinue,
		TemplateText: textContinue,
	}
	summary := summaryNoTrigger

	// In repair is read from the level after this cycle's trigger together
	// with this cycle's escalation conditions. A decay alone does not take a
	// conversation that is already at level >= 1 out of repair.
	if esc.Level >= 1 || obs.anyHit3 || obs.incStreak >= 2 {
		sel := strategyFor(c).selectStep(c, esc.Level, cursor)
		res.Action = sel.action
		res.TemplateText = sel.template
		summary = sel.summary
		cursor.StepIndex = sel.stepIndex
		cursor.CyclesInStep = sel.cyclesInStep
	}

	res.State = CoordState{Escalation: esc, Choreography: cursor}
	res.Why = Why{
		TriggerFired:    fired.id,
		RuleSource:      fired.ruleSource,
		RuleText:        fired.ruleText,
		Summary:         summary,
		RhoSum:          rhoSum,
		IncStreak:       esc.IncStreak,
		DecStreak:       esc.DecStreak,
		EscalationLevel: esc.Level,
	}
	return res
}
