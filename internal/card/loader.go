package card

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// InvalidError is returned by Load when a card fails validation.
type InvalidError struct {
	Path   string
	Result Result
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("card %s failed validation (%d error(s))", e.Path, len(e.Result.Errors))
}

// ReadFile reads a card from disk and returns it as JSON. Files ending in
// .yaml or .yml are converted from YAML; everything else is taken as JSON.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading card file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parsing card YAML: %w", err)
		}
		return raw, nil
	default:
		return data, nil
	}
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// Parse decodes a JSON card document into a Card without validating it.
func Parse(raw []byte) (*Card, error) {
	var c Card
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parsing card JSON: %w", err)
	}
	return &c, nil
}

// Decode validates an in-memory JSON card and parses it.
func Decode(raw []byte) (*Card, error) {
	if res := Validate(raw); !res.OK {
		return nil, &InvalidError{Path: "<inline>", Result: res}
	}
	return Parse(raw)
}

// Load reads, validates and parses the card at path. A card that fails
// validation yields an *InvalidError carrying the individual problems.
func Load(path string) (*Card, error) {
	raw, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if res := Validate(raw); !res.OK {
		return nil, &InvalidError{Path: path, Result: res}
	}
	return Parse(raw)
}
