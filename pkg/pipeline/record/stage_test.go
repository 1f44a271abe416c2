package record

import (
	"context"
	"log"
	"os"
	"testing"

	"ai-scribe-be/pkg/llm"
	"ai-scribe-be/pkg/pipeline/schema"
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

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		name       string
		existing   *session.ConsultationRecord
		transcript string
		notes      string
		images     []string
		want       bool
	}{
		{"existing record", &session.ConsultationRecord{ChiefComplaint: "x"}, "transcript", "", nil, true},
		{"all inputs empty", nil, "", "  ", nil, true},
		{"transcript present", nil, "patient reports cough", "", nil, false},
		{"notes only", nil, "", "BP 120/80", nil, false},
		{"images only", nil, "", "", []string{"scan.png"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldSkip(tt.existing, tt.transcript, tt.notes, tt.images)
			if got != tt.want {
				t.Errorf("ShouldSkip() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateParsesRecord(t *testing.T) {
	provider := &fixedProvider{response: `{
		"chief_complaint": "Chest pain",
		"history_of_present_illness": "Started yesterday",
		"past_medical_history": "",
		"medications": "",
		"allergies": "NKDA",
		"physical_exam": "",
		"assessment": "Likely musculoskeletal",
		"plan": "NSAIDs, follow up in a week"
	}`}
	stage := NewStage(provider, log.New(os.Stderr, "", 0))

	rec, err := stage.Generate(context.Background(), Request{Transcript: "..."})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if rec.ChiefComplaint != "Chest pain" || rec.Allergies != "NKDA" {
		t.Errorf("rec = %+v", rec)
	}
}

func TestGenerateRejectsUnknownFields(t *testing.T) {
	provider := &fixedProvider{response: `{"chief_complaint": "x", "surprise_field": true}`}
	stage := NewStage(provider, log.New(os.Stderr, "", 0))

	_, err := stage.Generate(context.Background(), Request{Transcript: "..."})
	if err == nil {
		t.Fatal("expected schema error")
	}
	if !schema.IsError(err) {
		t.Errorf("error = %v, want schema error", err)
	}
}
