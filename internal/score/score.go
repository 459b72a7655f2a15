// Package score turns an observation into a bounded RHO triple.
//
// The heuristics here are deliberately conservative pattern matches. They are
// not an oracle: any source that produces a Result (manual entry, another
// classifier) can stand in for them.
package score

import (
	"regexp"
	"strings"
)

// MaxComponent is the upper bound of each RHO component.
const MaxComponent = 3

// Result is one observation's score: repetition, heat and optionality loss,
// each in [0,3], with a human-readable rationale.
type Result struct {
	R          int      `json:"R"`
	H          int      `json:"H"`
	O          int      `json:"O"`
	Rationale  []string `json:"rationale"`
	Confidence float64  `json:"confidence"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Sum returns R+H+O.
func (r Result) Sum() int {
	return r.R + r.H + r.O
}

// AnyMax reports whether any component is at the maximum.
func (r Result) AnyMax() bool {
	return r.R == MaxComponent || r.H == MaxComponent || r.O == MaxComponent
}

// Clamped returns a copy with every component bounded to [0,3] and
// confidence bounded to [0,1].
func (r Result) Clamped() Result {
	r.R = Clamp(r.R)
	r.H = Clamp(r.H)
	r.O = Clamp(r.O)
	switch {
	case r.Confidence < 0:
		r.Confidence = 0
	case r.Confidence > 1:
		r.Confidence = 1
	}
	return r
}

// Clamp bounds n to [0,3].
func Clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxComponent {
		return MaxComponent
	}
	return n
}

// FromManual builds a fully manual score with full confidence.
func FromManual(r, h, o int) Result {
	return Result{
		R:          Clamp(r),
		H:          Clamp(h),
		O:          Clamp(o),
		Rationale:  []string{"manual"},
		Confidence: 1,
	}
}

// Manual holds per-component overrides; nil fields are left to the heuristics.
type Manual struct {
	R *int `json:"R,omitempty"`
	H *int `json:"H,omitempty"`
	O *int `json:"O,omitempty"`
}

func (m *Manual) empty() bool {
	return m == nil || (m.R == nil && m.H == nil && m.O == nil)
}

// Options configures ScoreObservation.
type Options struct {
	Manual *Manual
}

var (
	threatRe     = regexp.MustCompile(`(idiot|stupid|shut up|kill|die|threat|or else)`)
	absolutistRe = regexp.MustCompile(`(always|never)\b.*(you|they)`)
	profanityRe  = regexp.MustCompile(`\b(fuck|shit)\b`)
	exclaimRe    = regexp.MustCompile(`!{3,}`)
	coerciveRe   = regexp.MustCompile(`(no choice|must|you have to|only option|either.*or)`)
	lockInRe     = regexp.MustCompile(`(sign away|lock in|no refunds|non-negotiable)`)
	repetitionRe = regexp.MustCompile(`(as i said|repeating|again)`)
)

// ScoreObservation scores text with simple pattern heuristics. Manual
// overrides replace individual components after the heuristics run.
func ScoreObservation(text string, opts Options) Result {
	var (
		rationale []string
		warnings  []string
		r, h, o   int
	)

	t := strings.ToLower(text)

	switch {
	case threatRe.MatchString(t):
		h = 3
		rationale = append(rationale, "Detected explicit insults/threat-like language.")
	case absolutistRe.MatchString(t) || profanityRe.MatchString(t):
		h = max(h, 2)
		rationale = append(rationale, "Detected absolutist or profane escalation markers.")
	case exclaimRe.MatchString(text):
		h = max(h, 1)
		rationale = append(rationale, "Multiple exclamation marks suggest rising heat.")
	}

	if coerciveRe.MatchString(t) {
		o = max(o, 2)
		rationale = append(rationale, "Detected forced-binary / coercive phrasing (optionality loss).")
	}
	if lockInRe.MatchString(t) {
		o = 3
		rationale = append(rationale, "Detected lock-in / non-reversible framing.")
	}

	// Repetition is weak without history; only self-referential markers count.
	if repetitionRe.MatchString(t) {
		r = max(r, 1)
		rationale = append(rationale, "Self-referential repetition marker present.")
	}

	if len(rationale) == 0 {
		rationale = append(rationale, "No strong heuristic markers detected; defaulting to low scores.")
		warnings = append(warnings, "Scoring is low-confidence without conversation history.")
	}

	if m := opts.Manual; !m.empty() {
		if m.R != nil {
			r = Clamp(*m.R)
		}
		if m.H != nil {
			h = Clamp(*m.H)
		}
		if m.O != nil {
			o = Clamp(*m.O)
		}
		rationale = append(rationale, "Manual override applied.")
	}

	confidence := 0.2
	switch {
	case h == 3 || o == 3:
		confidence = 0.8
	case len(rationale) > 1:
		confidence = 0.5
	}

	return Result{
		R:          r,
		H:          h,
		O:          o,
		Rationale:  rationale,
		Confidence: confidence,
		Warnings:   warnings,
	}
}
