package speaker

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"ai-scribe-be/pkg/llm"
	"ai-scribe-be/pkg/transcript"
)

type stubProvider struct {
	response string
	err      error
	calls    int
}

func (p *stubProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	p.calls++
	return p.response, p.err
}

func (p *stubProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	p.calls++
	return p.response, p.err
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "", 0)
}

func observeN(r *Resolver, n int, channels ...string) {
	for i := 0; i < n; i++ {
		r.Observe(channels[i%len(channels)], fmt.Sprintf("utterance %d", i))
	}
}

func TestMaybeIdentifyGatedOnUtterances(t *testing.T) {
	provider := &stubProvider{response: `{"assignments": [], "confident": false}`}
	r := NewResolver(provider, testLogger())

	observeN(r, 2, "ch-0", "ch-1")
	r.MaybeIdentify(context.Background())
	if provider.calls != 0 {
		t.Error("first attempt requires 3 utterances")
	}

	observeN(r, 1, "ch-0")
	r.MaybeIdentify(context.Background())
	if provider.calls != 1 {
		t.Errorf("calls = %d, want 1 after reaching the gate", provider.calls)
	}

	// Second attempt needs 6 total utterances, not 4.
	observeN(r, 1, "ch-1")
	r.MaybeIdentify(context.Background())
	if provider.calls != 1 {
		t.Errorf("calls = %d, second attempt must wait for 6 utterances", provider.calls)
	}

	observeN(r, 2, "ch-0", "ch-1")
	r.MaybeIdentify(context.Background())
	if provider.calls != 2 {
		t.Errorf("calls = %d, want 2", provider.calls)
	}
}

func TestMaybeIdentifySingleChannelNeverRuns(t *testing.T) {
	provider := &stubProvider{response: `{"assignments": [], "confident": false}`}
	r := NewResolver(provider, testLogger())

	observeN(r, 12, "ch-0")
	r.MaybeIdentify(context.Background())
	r.MaybeIdentify(context.Background())

	if provider.calls != 0 {
		t.Error("identification must not run with a single channel")
	}
	if r.State() != StateUnidentified {
		t.Errorf("state = %v, want unidentified (no heuristic fallback either)", r.State())
	}
}

func TestConfidentAssignmentIdentifies(t *testing.T) {
	provider := &stubProvider{response: `{"assignments": [
		{"channel": "ch-0", "role": "patient"},
		{"channel": "ch-1", "role": "doctor"}
	], "confident": true}`}
	r := NewResolver(provider, testLogger())

	observeN(r, 3, "ch-0", "ch-1")
	r.MaybeIdentify(context.Background())

	if r.State() != StateIdentified {
		t.Fatalf("state = %v, want identified", r.State())
	}
	if r.RoleFor("ch-0") != transcript.RolePatient || r.RoleFor("ch-1") != transcript.RoleDoctor {
		t.Error("roles must follow the confident assignment")
	}
}

func TestHeuristicFallbackAfterTwoFailedAttempts(t *testing.T) {
	provider := &stubProvider{response: `{"assignments": [], "confident": false}`}
	r := NewResolver(provider, testLogger())

	observeN(r, 3, "ch-0", "ch-1")
	r.MaybeIdentify(context.Background())
	if r.State() != StateUnidentified {
		t.Fatalf("state = %v after first failure, want unidentified", r.State())
	}

	observeN(r, 3, "ch-0", "ch-1")
	r.MaybeIdentify(context.Background())

	if r.State() != StateIdentified {
		t.Fatalf("state = %v, want identified via fallback", r.State())
	}
	// First-seen channel is the doctor.
	if r.RoleFor("ch-0") != transcript.RoleDoctor || r.RoleFor("ch-1") != transcript.RolePatient {
		t.Errorf("fallback roles = %v/%v, want doctor/patient",
			r.RoleFor("ch-0"), r.RoleFor("ch-1"))
	}
}

func TestRoleForUnknownBeforeIdentification(t *testing.T) {
	r := NewResolver(&stubProvider{}, testLogger())
	r.Observe("ch-0", "hello")

	if r.RoleFor("ch-0") != transcript.RoleUnknown {
		t.Error("roles must be unknown before identification")
	}
}
