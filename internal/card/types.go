package card

// ProfileDefaultV02 is the only choreography profile the engine sequences.
const ProfileDefaultV02 = "default_v0_2"

// Defaults applied when a card leaves the corresponding field out.
const (
	DefaultMaxLevel         = 3
	DefaultMaxCyclesPerStep = 2
	DefaultTimeoutAction    = "vent.tighten_scope"
)

// Card is the typed form of a coordination card. It is produced by Parse or Load
// after schema validation and is treated as read-only from then on.
type Card struct {
	Version    string     `json:"version" yaml:"version"`
	ID         string     `json:"id,omitempty" yaml:"id,omitempty"`
	Title      string     `json:"title,omitempty" yaml:"title,omitempty"`
	Context    string     `json:"context,omitempty" yaml:"context,omitempty"`
	Invariants []string   `json:"invariants,omitempty" yaml:"invariants,omitempty"`
	RepairLoop RepairLoop `json:"repair_loop" yaml:"repair_loop"`
	VentLadder []VentStep `json:"vent_ladder,omitempty" yaml:"vent_ladder,omitempty"`
	Metrics    Metrics    `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// RepairLoop holds the trigger, escalation and template definitions.
type RepairLoop struct {
	Trigger      Trigger             `json:"trigger" yaml:"trigger"`
	Escalation   Escalation          `json:"escalation" yaml:"escalation"`
	Templates    map[string]Template `json:"templates,omitempty" yaml:"templates,omitempty"`
	Choreography *Choreography       `json:"choreography,omitempty" yaml:"choreography,omitempty"`
}

// Trigger carries the human-readable escalation rule.
type Trigger struct {
	Rule string `json:"rule,omitempty" yaml:"rule,omitempty"`
}

// Escalation bounds the level and describes the decay rule.
type Escalation struct {
	MaxLevel  *int   `json:"max_level,omitempty" yaml:"max_level,omitempty"`
	DecayRule string `json:"decay_rule,omitempty" yaml:"decay_rule,omitempty"`
}

// Template is the literal guidance text for one repair step.
type Template struct {
	Text string `json:"text" yaml:"text"`
}

// Choreography is an ordered sequence of repair steps (v0.2 cards).
type Choreography struct {
	Profile    string     `json:"profile" yaml:"profile"`
	Sequence   []string   `json:"sequence" yaml:"sequence"`
	HoldPolicy HoldPolicy `json:"hold_policy,omitempty" yaml:"hold_policy,omitempty"`
}

// HoldPolicy limits how long the sequencer stays on one step.
type HoldPolicy struct {
	MaxCyclesPerStep *int   `json:"max_cycles_per_step,omitempty" yaml:"max_cycles_per_step,omitempty"`
	TimeoutAction    string `json:"timeout_action,omitempty" yaml:"timeout_action,omitempty"`
}

// VentStep is one rung of the vent ladder.
type VentStep struct {
	Name   string `json:"name" yaml:"name"`
	Action string `json:"action" yaml:"action"`
}

// Metrics groups metric definitions; only rho is read.
type Metrics struct {
	Rho Rho `json:"rho,omitempty" yaml:"rho,omitempty"`
}

// Rho holds the suggested fallback rule texts.
type Rho struct {
	SuggestedRules SuggestedRules `json:"suggested_rules,omitempty" yaml:"suggested_rules,omitempty"`
}

// SuggestedRules are used when the repair loop leaves its own rules empty.
type SuggestedRules struct {
	Escalate string `json:"escalate,omitempty" yaml:"escalate,omitempty"`
	Decay    string `json:"decay,omitempty" yaml:"decay,omitempty"`
}

// MaxLevel returns the escalation ceiling, defaulting to 3.
func (c *Card) MaxLevel() int {
	if c == nil || c.RepairLoop.Escalation.MaxLevel == nil {
		return DefaultMaxLevel
	}
	return *c.RepairLoop.Escalation.MaxLevel
}

// TemplateText returns the text of the named template. Empty text counts as missing.
func (c *Card) TemplateText(step string) (string, bool) {
	if c == nil {
		return "", false
	}
	t, ok := c.RepairLoop.Templates[step]
	if !ok || t.Text == "" {
		return "", false
	}
	return t.Text, true
}

// VentAction returns the action text of the first vent ladder entry with the given name.
func (c *Card) VentAction(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	for _, v := range c.VentLadder {
		if v.Name == name && v.Action != "" {
			return v.Action, true
		}
	}
	return "", false
}

// DeclaredChoreography returns the choreography block when it names the
// default_v0_2 profile and carries a sequence list (possibly empty).
func (c *Card) DeclaredChoreography() (*Choreography, bool) {
	if c == nil || c.RepairLoop.Choreography == nil {
		return nil, false
	}
	ch := c.RepairLoop.Choreography
	if ch.Profile != ProfileDefaultV02 || ch.Sequence == nil {
		return nil, false
	}
	return ch, true
}

// HoldMax returns the per-step cycle budget, defaulting to 2.
func (ch *Choreography) HoldMax() int {
	if ch == nil || ch.HoldPolicy.MaxCyclesPerStep == nil {
		return DefaultMaxCyclesPerStep
	}
	return *ch.HoldPolicy.MaxCyclesPerStep
}

// TimeoutAction returns the action applied when the sequence runs out.
func (ch *Choreography) TimeoutAction() string {
	if ch == nil || ch.HoldPolicy.TimeoutAction == "" {
		return DefaultTimeoutAction
	}
	return ch.HoldPolicy.TimeoutAction
}
