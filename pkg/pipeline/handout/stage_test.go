package handout

import (
	"context"
	"log"
	"os"
	"testing"

	"ai-scribe-be/pkg/llm"
	"ai-scribe-be/pkg/session"
)

type fixedProvider struct {
	response string
}

func (p *fixedProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return p.response, nil
}

func (p *fixedProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.response, nil
}

func TestAssembleEverySelectedConditionPresent(t *testing.T) {
	selected := []session.HandoutCondition{
		{Code: "J18.9", Name: "Pneumonia"},
		{Code: "K35.80", Name: "Appendicitis"},
	}
	entries := []handoutEntry{
		{ICDCode: "j18.9", HandoutSections: session.HandoutSections{Overview: "Lung infection"}},
	}

	doc := Assemble(selected, entries)

	if len(doc.Conditions) != 2 {
		t.Fatalf("conditions = %d, want 2", len(doc.Conditions))
	}
	if doc.Entries["J18.9"].Overview != "Lung infection" {
		t.Error("entry must match on normalized code")
	}
	// Engine skipped the second condition: entry exists with empty sections.
	skipped, ok := doc.Entries["K35.80"]
	if !ok {
		t.Fatal("skipped condition must still get an entry")
	}
	if skipped.Overview != "" || skipped.Disclaimer != "" {
		t.Errorf("skipped entry = %+v, want zero value", skipped)
	}
}

func TestAssembleDeduplicatesByNormalizedCode(t *testing.T) {
	selected := []session.HandoutCondition{
		{Code: "j18.9", Name: "Pneumonia"},
		{Code: " J18.9 ", Name: "Pneumonia again"},
	}

	doc := Assemble(selected, nil)

	if len(doc.Conditions) != 1 {
		t.Fatalf("conditions = %d, want 1", len(doc.Conditions))
	}
	if doc.Conditions[0].ID != "J18.9" {
		t.Errorf("ID = %q, want normalized code", doc.Conditions[0].ID)
	}
}

func TestGenerateRequiresSelection(t *testing.T) {
	stage := NewStage(&fixedProvider{}, log.New(os.Stderr, "", 0))

	_, err := stage.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error with no selected conditions")
	}
}

func TestGenerateAssemblesDocument(t *testing.T) {
	provider := &fixedProvider{response: `{"entries": [
		{"icdCode": "J18.9", "overview": "A lung infection", "symptoms": "Cough, fever",
		 "causes": "", "complications": "", "treatment": "Antibiotics",
		 "escalation_criteria": "Breathlessness at rest", "follow_up": "", "disclaimer": "Not medical advice"}
	]}`}
	stage := NewStage(provider, log.New(os.Stderr, "", 0))

	doc, err := stage.Generate(context.Background(), Request{
		Selected: []session.HandoutCondition{{Code: "J18.9", Name: "Pneumonia"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	entry := doc.Entries["J18.9"]
	if entry.Treatment != "Antibiotics" || entry.Causes != "" {
		t.Errorf("entry = %+v", entry)
	}
}
