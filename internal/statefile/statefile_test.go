package statefile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lucasnoah/coordcard/internal/engine"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	prev := 4
	st := engine.CoordState{
		Escalation:   engine.EscalationState{Level: 2, PrevSum: &prev, IncStreak: 1},
		Choreography: engine.ChoreographyState{Profile: "default_v0_2", StepIndex: 1, CyclesInStep: 1},
	}

	if err := Save(path, st); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Escalation.Level != 2 {
		t.Errorf("Level = %d, want 2", got.Escalation.Level)
	}
	if got.Escalation.PrevSum == nil || *got.Escalation.PrevSum != 4 {
		t.Errorf("PrevSum = %v, want 4", got.Escalation.PrevSum)
	}
	if got.Choreography.Profile != "default_v0_2" || got.Choreography.StepIndex != 1 {
		t.Errorf("Choreography = %+v", got.Choreography)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "}\n") {
		t.Errorf("expected trailing newline, got %q", data)
	}
}

func TestLoad_InitialStateDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := WriteJSON(path, engine.InitState()); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Escalation.PrevSum != nil {
		t.Errorf("PrevSum = %v, want nil", *got.Escalation.PrevSum)
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed state")
	}
}

func TestWriteAtomic_NoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	if err := WriteAtomic(filepath.Join(dir, "out.json"), []byte("{}\n")); err != nil {
		t.Fatalf("WriteAtomic() error: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected directory contents: %v", names)
	}
}
