package engine

// Action identifies the recommended conversational move.
type Action string

const (
	ActionContinue          Action = "continue"
	ActionPause             Action = "repair.pause"
	ActionRestateInvariants Action = "repair.restate_invariants"
	ActionSpecificity       Action = "repair.specificity"
	ActionReversibleTest    Action = "repair.reversible_test"
	ActionCheckpoint        Action = "repair.checkpoint"
	ActionGentleRealign     Action = "vent.gentle_realign"
	ActionTightenScope      Action = "vent.tighten_scope"
	ActionPartialVent       Action = "vent.partial_vent"
	ActionFullVent          Action = "vent.full_vent"
)

// Actions lists every action id in ladder order.
var Actions = []Action{
	ActionContinue,
	ActionPause,
	ActionRestateInvariants,
	ActionSpecificity,
	ActionReversibleTest,
	ActionCheckpoint,
	ActionGentleRealign,
	ActionTightenScope,
	ActionPartialVent,
	ActionFullVent,
}

// known reports whether a is one of the listed action ids.
func (a Action) known() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

var stepActions = map[string]Action{
	"pause":              ActionPause,
	"restate_invariants": ActionRestateInvariants,
	"specificity":        ActionSpecificity,
	"reversible_test":    ActionReversibleTest,
	"checkpoint":         ActionCheckpoint,
}

// StepAction maps a choreography step id to its action. Unknown ids fall back
// to repair.pause.
func StepAction(step string) Action {
	if a, ok := stepActions[step]; ok {
		return a
	}
	return ActionPause
}

// Literal texts used when the card has no template for the chosen action.
const (
	textContinue     = "Continue normally."
	textPause        = "We're drifting. I'm pausing to repair."
	textSpecificity  = "To continue: define constraints and falsifiability."
	textPartialVent  = "Refuse destructive frame; keep narrow repair channel."
	textTightenScope = "Narrow scope; require one concrete next move."
)
