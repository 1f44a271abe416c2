package speaker

import (
	"context"
	"fmt"
	"testing"

	"ai-scribe-be/pkg/transcript"
)

func TestClassifyPendingWaitsForFullBatch(t *testing.T) {
	provider := &stubProvider{response: `{"labels": []}`}
	c := NewBatchClassifier(provider, 4, testLogger())
	acc := transcript.NewAccumulator()

	for i := 0; i < 3; i++ {
		acc.AppendFinal(transcript.Entry{Role: transcript.RoleUnknown, Text: fmt.Sprintf("line %d", i)})
	}

	if c.ClassifyPending(context.Background(), acc) {
		t.Error("partial batch must not classify")
	}
	if provider.calls != 0 {
		t.Error("no call before a full batch accumulates")
	}

	acc.AppendFinal(transcript.Entry{Role: transcript.RoleUnknown, Text: "line 3"})
	if !c.ClassifyPending(context.Background(), acc) {
		t.Error("full batch must classify")
	}
	if provider.calls != 1 {
		t.Errorf("calls = %d, want 1", provider.calls)
	}
}

func TestClassifyPendingRelabelsBatch(t *testing.T) {
	acc := transcript.NewAccumulator()
	var ids []string
	for i := 0; i < 2; i++ {
		e := transcript.Entry{Role: transcript.RoleUnknown, Text: fmt.Sprintf("line %d", i)}
		acc.AppendFinal(e)
		ids = append(ids, acc.Entries()[i].ID.String())
	}

	raw := fmt.Sprintf(`{"labels": [{"id": %q, "role": "doctor"}, {"id": %q, "role": "patient"}]}`,
		ids[0], ids[1])

	provider := &stubProvider{response: raw}
	c := NewBatchClassifier(provider, 2, testLogger())

	if !c.ClassifyPending(context.Background(), acc) {
		t.Fatal("expected classification")
	}

	entries := acc.Entries()
	if entries[0].Role != transcript.RoleDoctor || entries[1].Role != transcript.RolePatient {
		t.Errorf("roles = %v, %v", entries[0].Role, entries[1].Role)
	}
}

func TestClassifyPendingRetriesFailedBatch(t *testing.T) {
	acc := transcript.NewAccumulator()
	var ids []string
	for i := 0; i < 2; i++ {
		acc.AppendFinal(transcript.Entry{Role: transcript.RoleUnknown, Text: fmt.Sprintf("line %d", i)})
		ids = append(ids, acc.Entries()[i].ID.String())
	}

	provider := &stubProvider{err: fmt.Errorf("engine unavailable")}
	c := NewBatchClassifier(provider, 2, testLogger())

	if c.ClassifyPending(context.Background(), acc) {
		t.Error("failed call must not report a relabeled batch")
	}

	// The batch stays pending; the next call picks it up again.
	provider.err = nil
	provider.response = fmt.Sprintf(`{"labels": [{"id": %q, "role": "doctor"}, {"id": %q, "role": "patient"}]}`,
		ids[0], ids[1])

	if !c.ClassifyPending(context.Background(), acc) {
		t.Fatal("batch must be retried after a failed call")
	}
	if provider.calls != 2 {
		t.Errorf("calls = %d, want 2", provider.calls)
	}

	entries := acc.Entries()
	if entries[0].Role != transcript.RoleDoctor || entries[1].Role != transcript.RolePatient {
		t.Errorf("roles = %v, %v", entries[0].Role, entries[1].Role)
	}
}

func TestClassifyPendingSkipsAlreadyClassified(t *testing.T) {
	provider := &stubProvider{response: `{"labels": []}`}
	c := NewBatchClassifier(provider, 2, testLogger())
	acc := transcript.NewAccumulator()

	acc.AppendFinal(transcript.Entry{Text: "a"})
	acc.AppendFinal(transcript.Entry{Text: "b"})
	c.ClassifyPending(context.Background(), acc)

	// Same entries: nothing new to classify.
	if c.ClassifyPending(context.Background(), acc) {
		t.Error("already classified entries must not re-run")
	}
	if provider.calls != 1 {
		t.Errorf("calls = %d, want 1", provider.calls)
	}
}
