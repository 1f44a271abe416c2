package insights

import (
	"reflect"
	"testing"

	"ai-scribe-be/pkg/session"
)

func TestMergeChecklistAutoCheck(t *testing.T) {
	existing := []session.ChecklistItem{
		{Label: "Order CBC", Source: session.SourceAI},
		{Label: "Check blood pressure", Source: session.SourceAI},
	}
	resp := []ChecklistEntry{
		{Label: "Order CBC", Checked: true},
		{Label: "Check blood pressure", Checked: false},
	}

	out := MergeChecklist(existing, resp)

	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if !out[0].IsChecked || !out[0].IsAutoChecked {
		t.Error("Order CBC must be auto-checked")
	}
	if out[1].IsChecked {
		t.Error("Check blood pressure must stay unchecked")
	}
}

func TestMergeChecklistManualCheckNotRevoked(t *testing.T) {
	existing := []session.ChecklistItem{
		{Label: "Review allergies", IsChecked: true, IsAutoChecked: false, Source: session.SourceAI},
	}
	resp := []ChecklistEntry{
		{Label: "Review allergies", Checked: false},
	}

	out := MergeChecklist(existing, resp)

	if !out[0].IsChecked {
		t.Error("doctor's manual check must survive an AI uncheck")
	}
}

func TestMergeChecklistAutoCheckRevoked(t *testing.T) {
	existing := []session.ChecklistItem{
		{Label: "Order X-ray", IsChecked: true, IsAutoChecked: true, Source: session.SourceAI},
	}
	resp := []ChecklistEntry{
		{Label: "Order X-ray", Checked: false},
	}

	out := MergeChecklist(existing, resp)

	if out[0].IsChecked || out[0].IsAutoChecked {
		t.Error("auto-check must be revocable by the engine")
	}
}

func TestMergeChecklistManualItemsKept(t *testing.T) {
	existing := []session.ChecklistItem{
		{Label: "Ask about travel history", Source: session.SourceManual, DoctorNote: "recent trip"},
		{Label: "Old AI suggestion", Source: session.SourceAI},
	}
	resp := []ChecklistEntry{
		{Label: "New suggestion", Checked: false},
	}

	out := MergeChecklist(existing, resp)

	if len(out) != 2 {
		t.Fatalf("len = %d, want 2 (manual kept, AI dropped, new appended)", len(out))
	}
	if out[0].Label != "Ask about travel history" || out[0].DoctorNote != "recent trip" {
		t.Error("manual item must survive omission untouched")
	}
	if out[1].Label != "New suggestion" || out[1].Source != session.SourceAI {
		t.Error("unmatched response entry must append as AI-sourced")
	}
}

func TestMergeChecklistIdempotent(t *testing.T) {
	existing := []session.ChecklistItem{
		{Label: "Order CBC", Source: session.SourceAI},
		{Label: "Manual note", Source: session.SourceManual},
	}
	resp := []ChecklistEntry{
		{Label: "Order CBC", Checked: true},
		{Label: "Listen to lungs", Checked: false},
	}

	once := MergeChecklist(existing, resp)
	twice := MergeChecklist(once, resp)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second apply changed the result:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestMergeChecklistDuplicateResponseLabels(t *testing.T) {
	resp := []ChecklistEntry{
		{Label: "Order CBC", Checked: false},
		{Label: "Order CBC", Checked: true},
	}

	out := MergeChecklist(nil, resp)

	if len(out) != 1 {
		t.Fatalf("len = %d, want 1 (duplicates collapse)", len(out))
	}
}

func TestMergeChecklistSortOrderRenumbered(t *testing.T) {
	existing := []session.ChecklistItem{
		{Label: "A", SortOrder: 7, Source: session.SourceManual},
	}
	resp := []ChecklistEntry{
		{Label: "B"},
		{Label: "C"},
	}

	out := MergeChecklist(existing, resp)

	for i, item := range out {
		if item.SortOrder != i {
			t.Errorf("item %q SortOrder = %d, want %d", item.Label, item.SortOrder, i)
		}
	}
}

func TestApplyReplacesScalarsWholesale(t *testing.T) {
	current := session.InsightsState{
		Summary:     "old summary",
		KeyFindings: []string{"old finding"},
		RedFlags:    []string{"old flag"},
	}
	resp := &Response{
		Summary:     "new summary",
		KeyFindings: []string{"fever", "cough"},
	}

	Apply(&current, resp)

	if current.Summary != "new summary" {
		t.Errorf("Summary = %q", current.Summary)
	}
	if len(current.KeyFindings) != 2 {
		t.Errorf("KeyFindings = %v", current.KeyFindings)
	}
	if len(current.RedFlags) != 0 {
		t.Error("RedFlags must be replaced, not merged")
	}
}
