package card

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

const (
	schemaV01 = "schema/coordcard.v0.1.schema.json"
	schemaV02 = "schema/coordcard.v0.2.schema.json"

	schemaBaseURL = "https://coordcard.local/"
)

// ValidationError is a single problem found in a card, located by JSON pointer.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Result is the outcome of validating a card document. Warnings never
// affect OK.
type Result struct {
	OK       bool              `json:"ok"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []ValidationError `json:"warnings,omitempty"`
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

// schemas compiles the embedded schemas once. Compiled schemas are read-only
// and safe to share between goroutines.
func schemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		out := make(map[string]*jsonschema.Schema, 2)
		for _, name := range []string{schemaV01, schemaV02} {
			data, err := schemaFS.ReadFile(name)
			if err != nil {
				compileErr = fmt.Errorf("read %s: %w", name, err)
				return
			}
			url := schemaBaseURL + name
			if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
				compileErr = fmt.Errorf("load %s: %w", name, err)
				return
			}
			s, err := c.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			out[name] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// schemaFor picks the schema by the card's declared version: "0.2" selects
// the v0.2 schema, anything else v0.1.
func schemaFor(doc interface{}) string {
	if m, ok := doc.(map[string]interface{}); ok {
		if v, ok := m["version"].(string); ok && v == "0.2" {
			return schemaV02
		}
	}
	return schemaV01
}

// Validate checks a JSON card document against its versioned schema. Cards
// that pass also get the semantic checks, reported as warnings.
func Validate(raw []byte) Result {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return Result{Errors: []ValidationError{{Path: "/", Message: fmt.Sprintf("invalid JSON: %v", err)}}}
	}

	all, err := schemas()
	if err != nil {
		return Result{Errors: []ValidationError{{Path: "/", Message: err.Error()}}}
	}

	if err := all[schemaFor(doc)].Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return Result{Errors: []ValidationError{{Path: "/", Message: err.Error()}}}
		}
		return Result{Errors: flatten(ve, nil)}
	}

	var c Card
	if err := json.Unmarshal(raw, &c); err != nil {
		return Result{Errors: []ValidationError{{Path: "/", Message: fmt.Sprintf("decode card: %v", err)}}}
	}
	return Result{OK: true, Warnings: checkSemantics(&c)}
}

// flatten collects the leaf causes of a validation error tree.
func flatten(ve *jsonschema.ValidationError, out []ValidationError) []ValidationError {
	if len(ve.Causes) == 0 {
		path := ve.InstanceLocation
		if path == "" {
			path = "/"
		}
		msg := ve.Message
		if msg == "" {
			msg = "invalid"
		}
		return append(out, ValidationError{Path: path, Message: msg})
	}
	for _, cause := range ve.Causes {
		out = flatten(cause, out)
	}
	return out
}

// knownSteps are the choreography step ids with a dedicated action.
var knownSteps = map[string]bool{
	"pause":              true,
	"restate_invariants": true,
	"specificity":        true,
	"reversible_test":    true,
	"checkpoint":         true,
}

// checkSemantics reports things that pass the schema but probably aren't what
// the author meant. Unknown steps still run, as repair.pause.
func checkSemantics(c *Card) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]bool)
	for i, v := range c.VentLadder {
		if seen[v.Name] {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("/vent_ladder/%d/name", i),
				Message: fmt.Sprintf("duplicate vent ladder entry %q", v.Name),
			})
		}
		seen[v.Name] = true
	}

	if ch, ok := c.DeclaredChoreography(); ok {
		for i, step := range ch.Sequence {
			if knownSteps[step] {
				continue
			}
			if _, ok := c.RepairLoop.Templates[step]; ok {
				continue
			}
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("/repair_loop/choreography/sequence/%d", i),
				Message: fmt.Sprintf("unknown step %q has no template", step),
			})
		}
	}

	return errs
}
