package engine

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasnoah/coordcard/internal/card"
	"github.com/lucasnoah/coordcard/internal/score"
)

func intPtr(n int) *int { return &n }

func obs(r, h, o int) score.Result {
	return score.FromManual(r, h, o)
}

// legacyCard has templates and a vent ladder but no choreography.
func legacyCard() *card.Card {
	return &card.Card{
		Version: "0.1",
		RepairLoop: card.RepairLoop{
			Trigger:    card.Trigger{Rule: "escalate on 3 or two rises"},
			Escalation: card.Escalation{MaxLevel: intPtr(3), DecayRule: "decay after two flat cycles"},
			Templates: map[string]card.Template{
				"pause":       {Text: "card pause"},
				"specificity": {Text: "card specificity"},
			},
		},
		VentLadder: []card.VentStep{
			{Name: "tighten_scope", Action: "card tighten"},
			{Name: "partial_vent", Action: "card partial vent"},
		},
	}
}

// choreoCard declares a three step default_v0_2 sequence held two cycles per step.
func choreoCard() *card.Card {
	c := legacyCard()
	c.Version = "0.2"
	c.RepairLoop.Templates["restate_invariants"] = card.Template{Text: "card restate"}
	c.RepairLoop.Templates["checkpoint"] = card.Template{Text: "card checkpoint"}
	c.RepairLoop.Choreography = &card.Choreography{
		Profile:  card.ProfileDefaultV02,
		Sequence: []string{"pause", "restate_invariants", "checkpoint"},
		HoldPolicy: card.HoldPolicy{
			MaxCyclesPerStep: intPtr(2),
			TimeoutAction:    "vent.tighten_scope",
		},
	}
	return c
}

func TestNextStep_InitialZeroContinues(t *testing.T) {
	res := NextStep(legacyCard(), InitState(), obs(0, 0, 0))

	assert.Equal(t, ActionContinue, res.Action)
	assert.Equal(t, "Continue normally.", res.TemplateText)
	assert.Equal(t, TriggerNone, res.Why.TriggerFired)
	assert.Equal(t, "No repair/vent trigger fired.", res.Why.Summary)
	assert.Empty(t, res.Why.RuleSource)
	assert.Equal(t, 0, res.State.Escalation.Level)
	require.NotNil(t, res.State.Escalation.PrevSum)
	assert.Equal(t, 0, *res.State.Escalation.PrevSum)
	assert.Equal(t, 0, res.State.Escalation.IncStreak)
	assert.Equal(t, 0, res.State.Escalation.DecStreak)
}

func TestNextStep_HitThreeFromLevelZeroPauses(t *testing.T) {
	res := NextStep(legacyCard(), InitState(), obs(3, 0, 0))

	assert.Equal(t, ActionPause, res.Action, "level only reaches 1, so no vent")
	assert.Equal(t, "card pause", res.TemplateText)
	assert.Equal(t, TriggerAnyComponentHit3, res.Why.TriggerFired)
	assert.Equal(t, SourceTriggerRule, res.Why.RuleSource)
	assert.Equal(t, "escalate on 3 or two rises", res.Why.RuleText)
	assert.Equal(t, 1, res.State.Escalation.Level)
	assert.Equal(t, 1, res.Why.EscalationLevel)
	assert.Equal(t, 3, res.Why.RhoSum)
}

func TestNextStep_FirstObservationResetsStreaks(t *testing.T) {
	st := CoordState{Escalation: EscalationState{Level: 0, IncStreak: 5, DecStreak: 5}}
	res := NextStep(legacyCard(), st, obs(1, 1, 0))

	assert.Equal(t, 0, res.State.Escalation.IncStreak)
	assert.Equal(t, 0, res.State.Escalation.DecStreak)
	assert.Equal(t, TriggerNone, res.Why.TriggerFired)
	assert.Equal(t, ActionContinue, res.Action)
}

func TestNextStep_TwoIncreasesEscalate(t *testing.T) {
	c := legacyCard()
	st := InitState()

	r1 := NextStep(c, st, obs(0, 0, 0))
	require.Equal(t, ActionContinue, r1.Action)

	r2 := NextStep(c, r1.State, obs(1, 0, 0))
	assert.Equal(t, 1, r2.Why.IncStreak)
	assert.Equal(t, ActionContinue, r2.Action)
	assert.Equal(t, 0, r2.State.Escalation.Level)

	r3 := NextStep(c, r2.State, obs(1, 1, 0))
	assert.Equal(t, 2, r3.Why.IncStreak)
	assert.Equal(t, TriggerIncreasedTwice, r3.Why.TriggerFired)
	assert.Equal(t, 1, r3.State.Escalation.Level)
	assert.Equal(t, ActionPause, r3.Action)

	// The increase streak is not consumed by escalating.
	r4 := NextStep(c, r3.State, obs(1, 1, 1))
	assert.Equal(t, 3, r4.Why.IncStreak)
	assert.Equal(t, TriggerIncreasedTwice, r4.Why.TriggerFired)
	assert.Equal(t, 2, r4.State.Escalation.Level)
	assert.Equal(t, ActionSpecificity, r4.Action)
	assert.Equal(t, "card specificity", r4.TemplateText)
}

func TestNextStep_DecayResetsStreak(t *testing.T) {
	st := CoordState{Escalation: EscalationState{Level: 2, PrevSum: intPtr(4), DecStreak: 1}}
	res := NextStep(legacyCard(), st, obs(2, 1, 1))

	assert.Equal(t, TriggerDecay, res.Why.TriggerFired)
	assert.Equal(t, SourceDecayRule, res.Why.RuleSource)
	assert.Equal(t, "decay after two flat cycles", res.Why.RuleText)
	assert.Equal(t, 1, res.State.Escalation.Level)
	assert.Equal(t, 0, res.State.Escalation.DecStreak)
	assert.Equal(t, 0, res.Why.DecStreak)
	// Still at level 1 after decaying, so the conversation stays in repair.
	assert.Equal(t, ActionPause, res.Action)
}

func TestNextStep_DecayToZeroContinues(t *testing.T) {
	st := CoordState{Escalation: EscalationState{Level: 1, PrevSum: intPtr(2), DecStreak: 1}}
	res := NextStep(legacyCard(), st, obs(1, 0, 0))

	assert.Equal(t, TriggerDecay, res.Why.TriggerFired)
	assert.Equal(t, 0, res.State.Escalation.Level)
	assert.Equal(t, ActionContinue, res.Action)
}

func TestNextStep_HitThreeBeatsDecay(t *testing.T) {
	st := CoordState{Escalation: EscalationState{Level: 1, PrevSum: intPtr(5), DecStreak: 3}}
	res := NextStep(legacyCard(), st, obs(3, 0, 0))

	assert.Equal(t, TriggerAnyComponentHit3, res.Why.TriggerFired)
	assert.Equal(t, 2, res.State.Escalation.Level)
	assert.Equal(t, 4, res.State.Escalation.DecStreak, "decay did not fire so its streak is kept")
}

func TestNextStep_LegacyTiers(t *testing.T) {
	tests := []struct {
		name   string
		level  int
		action Action
		text   string
	}{
		{"level 1", 0, ActionPause, "card pause"},
		{"level 2", 1, ActionSpecificity, "card specificity"},
		{"level 3", 2, ActionPartialVent, "card partial vent"},
		{"capped", 3, ActionPartialVent, "card partial vent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := CoordState{Escalation: EscalationState{Level: tt.level, PrevSum: intPtr(0)}}
			res := NextStep(legacyCard(), st, obs(0, 3, 0))
			assert.Equal(t, tt.action, res.Action)
			assert.Equal(t, tt.text, res.TemplateText)
			assert.LessOrEqual(t, res.State.Escalation.Level, 3)
		})
	}
}

func TestNextStep_SuggestedRuleProvenance(t *testing.T) {
	c := &card.Card{Metrics: card.Metrics{Rho: card.Rho{SuggestedRules: card.SuggestedRules{
		Escalate: "suggested escalate",
		Decay:    "suggested decay",
	}}}}

	up := NextStep(c, InitState(), obs(0, 0, 3))
	assert.Equal(t, SourceSuggestedEscalate, up.Why.RuleSource)
	assert.Equal(t, "suggested escalate", up.Why.RuleText)

	st := CoordState{Escalation: EscalationState{Level: 1, PrevSum: intPtr(1), DecStreak: 1}}
	down := NextStep(c, st, obs(1, 0, 0))
	assert.Equal(t, SourceSuggestedDecay, down.Why.RuleSource)
	assert.Equal(t, "suggested decay", down.Why.RuleText)

	none := NextStep(&card.Card{}, InitState(), obs(3, 3, 3))
	assert.Empty(t, none.Why.RuleSource)
	assert.Empty(t, none.Why.RuleText)
}

func TestNextStep_ChoreographyCycle(t *testing.T) {
	c := choreoCard()
	st := CoordState{Escalation: EscalationState{Level: 1, PrevSum: intPtr(2)}}

	// Alternate the sum down and up so neither streak reaches two: no trigger
	// fires and the level stays at 1.
	sums := [][3]int{{1, 0, 0}, {1, 1, 0}, {1, 0, 0}, {1, 1, 0}, {1, 0, 0}, {1, 1, 0}, {1, 0, 0}}
	want := []struct {
		action Action
		text   string
		index  int
		cycles int
	}{
		{ActionPause, "card pause", 0, 1},
		{ActionPause, "card pause", 1, 0},
		{ActionRestateInvariants, "card restate", 1, 1},
		{ActionRestateInvariants, "card restate", 2, 0},
		{ActionCheckpoint, "card checkpoint", 2, 1},
		{ActionTightenScope, "card tighten", 0, 0},
		{ActionPause, "card pause", 0, 1},
	}

	for i, s := range sums {
		res := NextStep(c, st, obs(s[0], s[1], s[2]))
		require.Equal(t, TriggerNone, res.Why.TriggerFired, "call %d", i+1)
		assert.Equal(t, want[i].action, res.Action, "call %d action", i+1)
		assert.Equal(t, want[i].text, res.TemplateText, "call %d text", i+1)
		assert.Equal(t, want[i].index, res.State.Choreography.StepIndex, "call %d stepIndex", i+1)
		assert.Equal(t, want[i].cycles, res.State.Choreography.CyclesInStep, "call %d cyclesInStep", i+1)
		assert.Equal(t, card.ProfileDefaultV02, res.State.Choreography.Profile)
		st = res.State
	}
}

func TestNextStep_ChoreographySummaries(t *testing.T) {
	c := choreoCard()
	res := NextStep(c, InitState(), obs(3, 0, 0))
	assert.Equal(t, "Repair mode (reference choreography default_v0_2): step=pause", res.Why.Summary)

	st := CoordState{
		Escalation:   EscalationState{Level: 1, PrevSum: intPtr(1)},
		Choreography: ChoreographyState{Profile: card.ProfileDefaultV02, StepIndex: 2, CyclesInStep: 1},
	}
	res = NextStep(c, st, obs(1, 1, 0))
	assert.Equal(t, ActionTightenScope, res.Action)
	assert.Equal(t, "Repair choreography timeout: vent.tighten_scope", res.Why.Summary)
}

func TestNextStep_ChoreographyOtherTimeoutAction(t *testing.T) {
	c := choreoCard()
	c.RepairLoop.Choreography.HoldPolicy.TimeoutAction = "vent.full_vent"
	st := CoordState{
		Escalation:   EscalationState{Level: 1, PrevSum: intPtr(1)},
		Choreography: ChoreographyState{StepIndex: 2, CyclesInStep: 1},
	}
	res := NextStep(c, st, obs(1, 1, 0))

	assert.Equal(t, ActionCheckpoint, res.Action, "only tighten_scope replaces the step action")
	assert.Equal(t, 0, res.State.Choreography.StepIndex, "the sequence restarts regardless")
}

func TestNextStep_ChoreographyUnknownStep(t *testing.T) {
	c := choreoCard()
	c.RepairLoop.Choreography.Sequence = []string{"breathe"}
	res := NextStep(c, InitState(), obs(3, 0, 0))

	assert.Equal(t, ActionPause, res.Action)
	assert.Equal(t, "card pause", res.TemplateText, "unknown step falls back to the pause template")
}

func TestNextStep_ChoreographyOutOfRangeIndex(t *testing.T) {
	c := choreoCard()
	st := CoordState{
		Escalation:   EscalationState{Level: 1, PrevSum: intPtr(1)},
		Choreography: ChoreographyState{StepIndex: 9},
	}
	res := NextStep(c, st, obs(1, 1, 0))
	assert.Equal(t, ActionPause, res.Action, "out of range index reads the first step")
	assert.Equal(t, "card pause", res.TemplateText)
}

func TestNextStep_ChoreographyNegativeIndex(t *testing.T) {
	c := choreoCard()
	st := CoordState{
		Escalation:   EscalationState{Level: 1, PrevSum: intPtr(1)},
		Choreography: ChoreographyState{StepIndex: -5, CyclesInStep: 1},
	}
	res := NextStep(c, st, obs(1, 1, 0))
	assert.Equal(t, ActionPause, res.Action, "negative index reads the first step")
	assert.Equal(t, 1, res.State.Choreography.StepIndex, "advances from step 0, not from the negative index")
	assert.Equal(t, 0, res.State.Choreography.CyclesInStep)

	res = NextStep(c, CoordState{
		Escalation:   EscalationState{Level: 1, PrevSum: intPtr(1)},
		Choreography: ChoreographyState{StepIndex: -1},
	}, obs(1, 1, 0))
	assert.Equal(t, 0, res.State.Choreography.StepIndex)
	assert.Equal(t, 1, res.State.Choreography.CyclesInStep)

	// Outside repair the cursor is carried over, still normalised.
	res = NextStep(legacyCard(), CoordState{Choreography: ChoreographyState{StepIndex: -2, CyclesInStep: -3}}, obs(0, 0, 0))
	assert.Equal(t, ActionContinue, res.Action)
	assert.Equal(t, 0, res.State.Choreography.StepIndex)
	assert.Equal(t, 0, res.State.Choreography.CyclesInStep)
}

func TestNextStep_DefaultHoldPolicy(t *testing.T) {
	c := choreoCard()
	c.RepairLoop.Choreography.HoldPolicy = card.HoldPolicy{}
	st := CoordState{
		Escalation:   EscalationState{Level: 1, PrevSum: intPtr(1)},
		Choreography: ChoreographyState{StepIndex: 2, CyclesInStep: 1},
	}
	res := NextStep(c, st, obs(1, 1, 0))
	assert.Equal(t, ActionTightenScope, res.Action, "defaults are hold 2 and vent.tighten_scope")
}

func TestNextStep_EmptySequenceUsesLegacy(t *testing.T) {
	c := choreoCard()
	c.RepairLoop.Choreography.Sequence = []string{}
	st := CoordState{Escalation: EscalationState{Level: 1, PrevSum: intPtr(0)}}
	res := NextStep(c, st, obs(0, 3, 0))

	assert.Equal(t, ActionSpecificity, res.Action)
	assert.Equal(t, card.ProfileDefaultV02, res.State.Choreography.Profile, "profile still recorded")
	assert.Equal(t, 0, res.State.Choreography.CyclesInStep)
}

func TestNextStep_ProfileNormalised(t *testing.T) {
	st := CoordState{Choreography: ChoreographyState{Profile: "stale", StepIndex: 1, CyclesInStep: 1}}

	res := NextStep(legacyCard(), st, obs(0, 0, 0))
	assert.Equal(t, "", res.State.Choreography.Profile)
	assert.Equal(t, 1, res.State.Choreography.StepIndex, "cursor passes through outside repair")
	assert.Equal(t, 1, res.State.Choreography.CyclesInStep)

	res = NextStep(choreoCard(), InitState(), obs(0, 0, 0))
	assert.Equal(t, card.ProfileDefaultV02, res.State.Choreography.Profile)
	assert.Equal(t, 0, res.State.Choreography.CyclesInStep)
}

func TestNextStep_MinimalCardLiterals(t *testing.T) {
	minimal := &card.Card{Version: "0.1", RepairLoop: card.RepairLoop{Trigger: card.Trigger{Rule: "r"}}}

	tests := []struct {
		name  string
		c     *card.Card
		level int
		want  string
	}{
		{"pause", minimal, 0, "We're drifting. I'm pausing to repair."},
		{"specificity", minimal, 1, "To continue: define constraints and falsifiability."},
		{"partial vent", minimal, 2, "Refuse destructive frame; keep narrow repair channel."},
		{"nil card", nil, 0, "We're drifting. I'm pausing to repair."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := CoordState{Escalation: EscalationState{Level: tt.level, PrevSum: intPtr(0)}}
			res := NextStep(tt.c, st, obs(3, 0, 0))
			assert.Equal(t, tt.want, res.TemplateText)
		})
	}

	bare := &card.Card{RepairLoop: card.RepairLoop{Choreography: &card.Choreography{
		Profile:  card.ProfileDefaultV02,
		Sequence: []string{"checkpoint"},
	}}}
	st := CoordState{
		Escalation:   EscalationState{Level: 1, PrevSum: intPtr(1)},
		Choreography: ChoreographyState{CyclesInStep: 1},
	}
	res := NextStep(bare, st, obs(1, 1, 0))
	assert.Equal(t, ActionTightenScope, res.Action)
	assert.Equal(t, "Narrow scope; require one concrete next move.", res.TemplateText)

	res = NextStep(bare, InitState(), obs(3, 0, 0))
	assert.Equal(t, ActionCheckpoint, res.Action)
	assert.Equal(t, "We're drifting. I'm pausing to repair.", res.TemplateText)
}

func TestNextStep_DoesNotMutateInput(t *testing.T) {
	prev := 4
	st := CoordState{
		Escalation:   EscalationState{Level: 1, PrevSum: &prev, IncStreak: 1},
		Choreography: ChoreographyState{Profile: card.ProfileDefaultV02, StepIndex: 1, CyclesInStep: 1},
	}
	before := st
	res := NextStep(choreoCard(), st, obs(3, 3, 0))

	assert.Equal(t, 4, prev)
	if diff := cmp.Diff(before, st); diff != "" {
		t.Errorf("input state changed (-before +after):\n%s", diff)
	}
	assert.NotSame(t, st.Escalation.PrevSum, res.State.Escalation.PrevSum)
}

func TestNextStep_Deterministic(t *testing.T) {
	c := choreoCard()
	st := CoordState{Escalation: EscalationState{Level: 2, PrevSum: intPtr(3), IncStreak: 1}}
	a := NextStep(c, st, obs(2, 2, 1))
	b := NextStep(c, st, obs(2, 2, 1))
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("NextStep not deterministic (-first +second):\n%s", diff)
	}
}

func TestCoordState_JSONRoundTrip(t *testing.T) {
	initial, err := json.Marshal(InitState())
	require.NoError(t, err)
	assert.JSONEq(t, `{"escalation":{"level":0,"incStreak":0,"decStreak":0},"choreography":{"stepIndex":0,"cyclesInStep":0}}`, string(initial))

	res := NextStep(choreoCard(), InitState(), obs(3, 1, 0))
	data, err := json.Marshal(res.State)
	require.NoError(t, err)

	var back CoordState
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(res.State, back); diff != "" {
		t.Errorf("state changed across JSON (-want +got):\n%s", diff)
	}

	// Documents written before choreography existed still decode.
	var legacy CoordState
	require.NoError(t, json.Unmarshal([]byte(`{"escalation":{"level":2,"prevSum":4,"incStreak":0,"decStreak":1}}`), &legacy))
	assert.Equal(t, 2, legacy.Escalation.Level)
	assert.Equal(t, ChoreographyState{}, legacy.Choreography)
}

func TestStepAction(t *testing.T) {
	assert.Equal(t, ActionRestateInvariants, StepAction("restate_invariants"))
	assert.Equal(t, ActionReversibleTest, StepAction("reversible_test"))
	assert.Equal(t, ActionPause, StepAction("unknown"))
	assert.Len(t, Actions, 10)
	assert.True(t, ActionFullVent.known())
	assert.False(t, Action("vent.explode").known())
}
