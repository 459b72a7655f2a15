package engine

import (
	"fmt"

	"github.com/lucasnoah/coordcard/internal/card"
)

// selection is a strategy's pick for one in-repair cycle, including where the
// choreography cursor ends up afterwards.
type selection struct {
	action       Action
	template     string
	summary      string
	stepIndex    int
	cyclesInStep int
}

// repairStrategy chooses the action once a conversation is in repair.
type repairStrategy interface {
	selectStep(c *card.Card, level int, cursor ChoreographyState) selection
}

// strategyFor returns the choreography sequencer when the card declares a
// non-empty default_v0_2 sequence, and the severity-tiered fallback otherwise.
func strategyFor(c *card.Card) repairStrategy {
	if ch, ok := c.DeclaredChoreography(); ok && len(ch.Sequence) > 0 {
		return choreographyStrategy{ch: ch}
	}
	return legacyStrategy{}
}

// choreographyStrategy walks the card's step sequence, holding each step for
// HoldMax cycles and applying the timeout action when the sequence runs out.
type choreographyStrategy struct {
	ch *card.Choreography
}

func (s choreographyStrategy) selectStep(c *card.Card, _ int, cursor ChoreographyState) selection {
	seq := s.ch.Sequence
	idx := cursor.StepIndex

	step := seq[0]
	if idx < len(seq) {
		step = seq[idx]
	}

	sel := selection{
		action:   StepAction(step),
		template: stepTemplate(c, step),
		summary:  fmt.Sprintf("Repair mode (reference choreography %s): step=%s", s.ch.Profile, step),
	}

	cycles := cursor.CyclesInStep + 1
	if cycles >= s.ch.HoldMax() {
		cycles = 0
		idx++
		if idx >= len(seq) {
			timeout := s.ch.TimeoutAction()
			if timeout == string(ActionTightenScope) {
				sel.action = ActionTightenScope
				sel.template = ventOr(c, "tighten_scope", textTightenScope)
				sel.summary = fmt.Sprintf("Repair choreography timeout: %s", timeout)
			}
			idx = 0
		}
	}

	sel.stepIndex = idx
	sel.cyclesInStep = cycles
	return sel
}

// legacyStrategy picks a single step by severity; it leaves the cursor alone.
type legacyStrategy struct{}

func (legacyStrategy) selectStep(c *card.Card, level int, cursor ChoreographyState) selection {
	sel := selection{stepIndex: cursor.StepIndex, cyclesInStep: cursor.CyclesInStep}
	switch {
	case level >= 3:
		sel.action = ActionPartialVent
		sel.template = ventOr(c, "partial_vent", textPartialVent)
		sel.summary = "Venting (flow redirection) to preserve participation capacity."
	case level == 2:
		sel.action = ActionSpecificity
		sel.template = templateOr(c, "specificity", textSpecificity)
		sel.summary = "Routing conflict into specificity (constraints/falsifiability)."
	default:
		sel.action = ActionPause
		sel.template = templateOr(c, "pause", textPause)
		sel.summary = "Entering repair mode to reduce correction cost."
	}
	return sel
}

// stepTemplate falls back from the step's own template to the pause template
// and then to the literal pause text.
func stepTemplate(c *card.Card, step string) string {
	if text, ok := c.TemplateText(step); ok {
		return text
	}
	return templateOr(c, "pause", textPause)
}

func templateOr(c *card.Card, name, fallback string) string {
	if text, ok := c.TemplateText(name); ok {
		return text
	}
	return fallback
}

func ventOr(c *card.Card, name, fallback string) string {
	if text, ok := c.VentAction(name); ok {
		return text
	}
	return fallback
}
