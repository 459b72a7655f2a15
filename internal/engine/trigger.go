package engine

import "github.com/lucasnoah/coordcard/internal/card"

// TriggerID names the rule that fired for an observation.
type TriggerID string

const (
	TriggerNone             TriggerID = "none"
	TriggerAnyComponentHit3 TriggerID = "any_component_hit_3"
	TriggerIncreasedTwice   TriggerID = "rho_sum_increased_two_cycles"
	TriggerDecay            TriggerID = "rho_sum_stable_or_decreased_two_cycles (decay)"
)

// Card paths recorded as rule provenance.
const (
	SourceTriggerRule       = "repair_loop.trigger.rule"
	SourceSuggestedEscalate = "metrics.rho.suggested_rules.escalate"
	SourceDecayRule         = "repair_loop.escalation.decay_rule"
	SourceSuggestedDecay    = "metrics.rho.suggested_rules.decay"
)

// observation is what the trigger rules see: the score plus the streaks
// already updated for this cycle.
type observation struct {
	anyHit3   bool
	incStreak int
	decStreak int
}

// firing is the outcome of the trigger cascade.
type firing struct {
	id         TriggerID
	ruleSource string
	ruleText   string
}

// trigger is one row of the cascade: a predicate and the effect it has on the
// escalation block when it is the first to match.
type trigger struct {
	id         TriggerID
	matches    func(o observation) bool
	apply      func(esc *EscalationState, maxLevel int)
	provenance func(c *card.Card) (source, text string)
}

// triggers is evaluated in order; the first match wins.
var triggers = []trigger{
	{
		id:         TriggerAnyComponentHit3,
		matches:    func(o observation) bool { return o.anyHit3 },
		apply:      escalate,
		provenance: escalationRule,
	},
	{
		id:         TriggerIncreasedTwice,
		matches:    func(o observation) bool { return o.incStreak >= 2 },
		apply:      escalate,
		provenance: escalationRule,
	},
	{
		id:      TriggerDecay,
		matches: func(o observation) bool { return o.decStreak >= 2 },
		apply: func(esc *EscalationState, maxLevel int) {
			esc.Level = clamp(esc.Level-1, 0, maxLevel)
			// Decay consumes its streak; escalation streaks are left alone.
			esc.DecStreak = 0
		},
		provenance: decayRule,
	},
}

// evaluateTriggers runs the cascade against esc, mutating it in place.
func evaluateTriggers(c *card.Card, o observation, esc *EscalationState) firing {
	maxLevel := c.MaxLevel()
	for _, t := range triggers {
		if !t.matches(o) {
			continue
		}
		t.apply(esc, maxLevel)
		src, text := t.provenance(c)
		return firing{id: t.id, ruleSource: src, ruleText: text}
	}
	return firing{id: TriggerNone}
}

func escalate(esc *EscalationState, maxLevel int) {
	esc.Level = clamp(esc.Level+1, 0, maxLevel)
}

func escalationRule(c *card.Card) (string, string) {
	if c == nil {
		return "", ""
	}
	if r := c.RepairLoop.Trigger.Rule; r != "" {
		return SourceTriggerRule, r
	}
	if r := c.Metrics.Rho.SuggestedRules.Escalate; r != "" {
		return SourceSuggestedEscalate, r
	}
	return "", ""
}

func decayRule(c *card.Card) (string, string) {
	if c == nil {
		return "", ""
	}
	if r := c.RepairLoop.Escalation.DecayRule; r != "" {
		return SourceDecayRule, r
	}
	if r := c.Metrics.Rho.SuggestedRules.Decay; r != "" {
		return SourceSuggestedDecay, r
	}
	return "", ""
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}
