package session

import (
	"testing"

	"github.com/google/uuid"
)

func newTestState() *State {
	return NewState(uuid.New(), nil, nil)
}

func TestSetDiagnosisSelectedPrunesHandout(t *testing.T) {
	s := newTestState()
	s.SetDiagnoses([]DiagnosisItem{
		{ID: uuid.New(), ICDCode: "J18.9", DiseaseName: "Pneumonia", Selected: true},
	})
	s.SetHandout(HandoutDocument{
		Conditions: []HandoutCondition{{ID: "J18.9", Code: "J18.9", Name: "Pneumonia"}},
		Entries:    map[string]HandoutSections{"J18.9": {Overview: "..."}},
	})

	if !s.SetDiagnosisSelected("J18.9", false) {
		t.Fatal("expected to find the diagnosis")
	}

	doc := s.Handout()
	if len(doc.Conditions) != 0 {
		t.Error("deselect must prune the handout condition")
	}
	if _, ok := doc.Entries["J18.9"]; ok {
		t.Error("deselect must prune the handout entry")
	}
	if s.Diagnoses()[0].Selected {
		t.Error("diagnosis must be deselected")
	}
}

func TestSetDiagnosisSelectedUnknownCode(t *testing.T) {
	s := newTestState()
	if s.SetDiagnosisSelected("NOPE", true) {
		t.Error("unknown code must report false")
	}
}

func TestSelectedConditionsDedupByNormalizedCode(t *testing.T) {
	s := newTestState()
	s.SetDiagnoses([]DiagnosisItem{
		{ID: uuid.New(), ICDCode: "j18.9", DiseaseName: "Pneumonia", Selected: true},
		{ID: uuid.New(), ICDCode: "J18.9 ", DiseaseName: "Pneumonia dup", Selected: true},
		{ID: uuid.New(), ICDCode: "K35.80", DiseaseName: "Appendicitis", Selected: false},
	})

	conditions := s.SelectedConditions()
	if len(conditions) != 1 {
		t.Fatalf("conditions = %d, want 1", len(conditions))
	}
	if conditions[0].ID != "J18.9" {
		t.Errorf("ID = %q, want normalized code", conditions[0].ID)
	}
}

func TestUpdateInsightsMergesAtApplyTime(t *testing.T) {
	s := newTestState()
	s.UpdateInsights(func(cur *InsightsState) {
		cur.ChecklistItems = []ChecklistItem{{Label: "Manual item", Source: SourceManual}}
	})

	// A mutator sees the freshest state, not a stale snapshot.
	updated := s.UpdateInsights(func(cur *InsightsState) {
		if len(cur.ChecklistItems) != 1 {
			t.Fatal("mutator must see the current checklist")
		}
		cur.Summary = "updated"
	})

	if updated.Summary != "updated" || len(updated.ChecklistItems) != 1 {
		t.Errorf("updated = %+v", updated)
	}
}

func TestSnapshotsAreDeepCopies(t *testing.T) {
	s := newTestState()
	s.UpdateInsights(func(cur *InsightsState) {
		cur.KeyFindings = []string{"fever"}
	})

	snap := s.Insights()
	snap.KeyFindings[0] = "mutated"

	if s.Insights().KeyFindings[0] != "fever" {
		t.Error("Insights() must deep-copy slices")
	}
}

func TestRecordCopyOnReadAndWrite(t *testing.T) {
	s := newTestState()
	rec := &ConsultationRecord{ChiefComplaint: "original"}
	s.SetRecord(rec)

	rec.ChiefComplaint = "mutated after set"
	if s.Record().ChiefComplaint != "original" {
		t.Error("SetRecord must copy its input")
	}

	got := s.Record()
	got.ChiefComplaint = "mutated after get"
	if s.Record().ChiefComplaint != "original" {
		t.Error("Record must return a copy")
	}
}

func TestProcessingFlags(t *testing.T) {
	s := newTestState()
	if s.Processing(StageInsights) {
		t.Error("stages start idle")
	}
	s.SetProcessing(StageInsights, true)
	if !s.Processing(StageInsights) || s.Processing(StageRecord) {
		t.Error("processing flags are per stage")
	}
}
