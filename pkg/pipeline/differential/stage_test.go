package differential

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"ai-scribe-be/pkg/llm"
	"ai-scribe-be/pkg/session"
)

// scriptedProvider returns canned responses in call order.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	if p.calls >= len(p.responses) {
		return "", context.DeadlineExceeded
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, nil)
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "", 0)
}

func TestMergeKeepsIdentityAndSelection(t *testing.T) {
	existing := Merge(nil, []diagnosisEntry{
		{ICDCode: "K35.80", DiseaseName: "Acute appendicitis", Confidence: "moderate",
			Citations: []session.Citation{{Source: "uptodate", URL: "https://u/1"}}},
	})
	existing[0].Selected = true
	firstID := existing[0].ID

	merged := Merge(existing, []diagnosisEntry{
		{ICDCode: "K35.80", DiseaseName: "Acute appendicitis", Confidence: "high",
			Citations: []session.Citation{{Source: "pubmed", URL: "https://p/2"}}},
	})

	if merged[0].ID != firstID {
		t.Error("matched diagnosis must keep its id")
	}
	if !merged[0].Selected {
		t.Error("matched diagnosis must keep its selection")
	}
	if merged[0].Confidence != session.ConfidenceHigh {
		t.Errorf("Confidence = %v, want high", merged[0].Confidence)
	}
	if len(merged[0].Citations) != 2 {
		t.Fatalf("citations = %v, want union of 2", merged[0].Citations)
	}
	if merged[0].Citations[0].URL != "https://p/2" {
		t.Error("new citations must come first")
	}
}

func TestMergeCitationsMonotonicUnderRepeats(t *testing.T) {
	entries := []diagnosisEntry{
		{ICDCode: "J18.9", DiseaseName: "Pneumonia",
			Citations: []session.Citation{{Source: "who", URL: "https://w/1"}}},
	}

	first := Merge(nil, entries)
	second := Merge(first, entries)

	if len(second[0].Citations) != 1 {
		t.Errorf("citations = %d, want 1 (no duplicates)", len(second[0].Citations))
	}
}

func TestMergeDropsAbsentAndFollowsResponseOrder(t *testing.T) {
	existing := Merge(nil, []diagnosisEntry{
		{ICDCode: "A", DiseaseName: "First"},
		{ICDCode: "B", DiseaseName: "Second"},
	})

	merged := Merge(existing, []diagnosisEntry{
		{ICDCode: "C", DiseaseName: "New leader"},
		{ICDCode: "A", DiseaseName: "First"},
	})

	if len(merged) != 2 {
		t.Fatalf("len = %d, want 2 (B dropped)", len(merged))
	}
	if merged[0].ICDCode != "C" || merged[1].ICDCode != "A" {
		t.Errorf("order = %s,%s; want C,A", merged[0].ICDCode, merged[1].ICDCode)
	}
	if merged[0].SortOrder != 0 || merged[1].SortOrder != 1 {
		t.Error("SortOrder must follow response ranking")
	}
}

func TestMergeSkipsDuplicateCodes(t *testing.T) {
	merged := Merge(nil, []diagnosisEntry{
		{ICDCode: "K35.80", DiseaseName: "First occurrence"},
		{ICDCode: "K35.80", DiseaseName: "Duplicate"},
	})

	if len(merged) != 1 {
		t.Fatalf("len = %d, want 1", len(merged))
	}
	if merged[0].DiseaseName != "First occurrence" {
		t.Error("first occurrence wins")
	}
}

func TestGenerateRetriesOnceOnSchemaError(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"not json at all",
		`{"diagnoses": [{"icdCode": "J18.9", "diseaseName": "Pneumonia", "confidence": "high"}]}`,
	}}
	stage := NewStage(provider, testLogger())
	stage.retryDelay = time.Millisecond

	items, err := stage.Generate(context.Background(), Request{Transcript: "cough and fever"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("calls = %d, want 2", provider.calls)
	}
	if len(items) != 1 || items[0].ICDCode != "J18.9" {
		t.Errorf("items = %+v", items)
	}
}

func TestGenerateNoSecondRetry(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"garbage",
		"more garbage",
		`{"diagnoses": []}`,
	}}
	stage := NewStage(provider, testLogger())
	stage.retryDelay = time.Millisecond

	_, err := stage.Generate(context.Background(), Request{Transcript: "x"})
	if err == nil {
		t.Fatal("expected error after two schema failures")
	}
	if provider.calls != 2 {
		t.Errorf("calls = %d, want exactly 2", provider.calls)
	}
}

func TestHasClinicalContext(t *testing.T) {
	if HasClinicalContext(session.InsightsState{}) {
		t.Error("empty insights must not have clinical context")
	}
	if !HasClinicalContext(session.InsightsState{Summary: "persistent cough"}) {
		t.Error("summary alone is clinical context")
	}
	if !HasClinicalContext(session.InsightsState{KeyFindings: []string{"fever"}}) {
		t.Error("findings alone are clinical context")
	}
}
