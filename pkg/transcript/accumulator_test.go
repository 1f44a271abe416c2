package transcript

import (
	"testing"

	"github.com/google/uuid"
)

func TestAppendFinalClearsInterim(t *testing.T) {
	acc := NewAccumulator()
	acc.SetInterim("I have been coug", RolePatient)

	acc.AppendFinal(Entry{Role: RolePatient, Text: "I have been coughing for three days"})

	text, _ := acc.Interim()
	if text != "" {
		t.Errorf("interim = %q, want empty after final", text)
	}
	if acc.WordCount() != 7 {
		t.Errorf("WordCount() = %d, want 7", acc.WordCount())
	}
	if acc.Len() != 1 {
		t.Errorf("Len() = %d, want 1", acc.Len())
	}
}

func TestFullTextFormat(t *testing.T) {
	acc := NewAccumulator()
	acc.AppendFinal(Entry{Role: RoleDoctor, Text: "What brings you in today?"})
	acc.AppendFinal(Entry{Role: RolePatient, Text: "Chest pain since yesterday."})

	want := "[doctor]: What brings you in today?\n[patient]: Chest pain since yesterday."
	if got := acc.FullText(); got != want {
		t.Errorf("FullText() = %q, want %q", got, want)
	}
}

func TestRelabelRolesPreservesOrderAndText(t *testing.T) {
	acc := NewAccumulator()
	first := Entry{ID: uuid.New(), Role: RoleUnknown, Text: "Hello, please sit down."}
	second := Entry{ID: uuid.New(), Role: RoleUnknown, Text: "Thank you, doctor."}
	acc.AppendFinal(first)
	acc.AppendFinal(second)

	acc.RelabelRoles(map[uuid.UUID]Role{
		first.ID:  RoleDoctor,
		second.ID: RolePatient,
	})

	entries := acc.Entries()
	if entries[0].Role != RoleDoctor || entries[1].Role != RolePatient {
		t.Errorf("roles = %v, %v; want doctor, patient", entries[0].Role, entries[1].Role)
	}
	if entries[0].Text != first.Text || entries[1].Text != second.Text {
		t.Error("relabel must not touch entry text")
	}
	if entries[0].ID != first.ID || entries[1].ID != second.ID {
		t.Error("relabel must not reorder entries")
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	acc := NewAccumulator()
	acc.AppendFinal(Entry{Role: RolePatient, Text: "original"})

	entries := acc.Entries()
	entries[0].Text = "mutated"

	if acc.Entries()[0].Text != "original" {
		t.Error("Entries() must return a copy")
	}
}
