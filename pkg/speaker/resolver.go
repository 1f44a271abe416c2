package speaker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"ai-scribe-be/pkg/llm"
	"ai-scribe-be/pkg/transcript"
)

// State of the identification machine.
type State string

const (
	StateUnidentified State = "unidentified"
	StateIdentifying  State = "identifying"
	StateIdentified   State = "identified"
)

const maxAttempts = 2

type sample struct {
	channel string
	text    string
}

// Resolver assigns conversational roles to raw voice-channel identifiers.
// Attempts are gated on accumulated utterances: attempt n requires 3×(n+1)
// total utterances and at least 2 distinct channel ids. After both attempts
// fail it falls back to a fixed heuristic (first-seen channel → doctor,
// second-seen → patient). With fewer than 2 channels it never falls back.
type Resolver struct {
	mu       sync.Mutex
	provider llm.LLMProvider
	logger   *log.Logger

	state      State
	attempts   int
	channels   []string // distinct, first-seen order
	channelSet map[string]bool
	roles      map[string]transcript.Role
	utterances int
	samples    []sample
}

func NewResolver(provider llm.LLMProvider, logger *log.Logger) *Resolver {
	return &Resolver{
		provider:   provider,
		logger:     logger,
		state:      StateUnidentified,
		channelSet: map[string]bool{},
		roles:      map[string]transcript.Role{},
	}
}

// Observe records one finalized utterance from a raw channel.
func (r *Resolver) Observe(channelID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.utterances++
	if channelID != "" && !r.channelSet[channelID] {
		r.channelSet[channelID] = true
		r.channels = append(r.channels, channelID)
	}
	r.samples = append(r.samples, sample{channel: channelID, text: text})
	// Cap retained samples; classification prompts only need recent turns.
	if len(r.samples) > 40 {
		r.samples = r.samples[len(r.samples)-40:]
	}
}

func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ChannelCount returns the number of distinct raw channels seen so far.
func (r *Resolver) ChannelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// RoleFor maps a raw channel id to its resolved role, or RoleUnknown until
// identification has completed.
func (r *Resolver) RoleFor(channelID string) transcript.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role, ok := r.roles[channelID]; ok {
		return role
	}
	return transcript.RoleUnknown
}

// MaybeIdentify runs one identification attempt if the gate allows it.
// Safe to call after every utterance; it no-ops when already identified,
// currently identifying, or under-gated.
func (r *Resolver) MaybeIdentify(ctx context.Context) {
	r.mu.Lock()
	if r.state != StateUnidentified {
		r.mu.Unlock()
		return
	}
	if len(r.channels) < 2 {
		// Single-channel audio: initial identification is not applicable.
		r.mu.Unlock()
		return
	}
	if r.attempts >= maxAttempts {
		r.mu.Unlock()
		return
	}
	required := 3 * (r.attempts + 1)
	if r.utterances < required {
		r.mu.Unlock()
		return
	}

	r.state = StateIdentifying
	r.attempts++
	attempt := r.attempts
	prompt := r.buildPrompt()
	channels := append([]string(nil), r.channels...)
	r.mu.Unlock()

	assignments, confident := r.classify(ctx, prompt)

	r.mu.Lock()
	defer r.mu.Unlock()

	if confident && len(assignments) > 0 {
		r.roles = assignments
		r.state = StateIdentified
		return
	}

	if attempt >= maxAttempts {
		// Heuristic fallback: first-seen channel is the doctor.
		r.roles = map[string]transcript.Role{}
		for i, ch := range channels {
			if i == 0 {
				r.roles[ch] = transcript.RoleDoctor
			} else {
				r.roles[ch] = transcript.RolePatient
			}
		}
		r.state = StateIdentified
		return
	}

	r.state = StateUnidentified
}

type identifyResponse struct {
	Assignments []struct {
		Channel string `json:"channel"`
		Role    string `json:"role"`
	} `json:"assignments"`
	Confident bool `json:"confident"`
}

func (r *Resolver) classify(ctx context.Context, prompt string) (map[string]transcript.Role, bool) {
	response, err := r.provider.Generate(ctx, prompt, llm.WithTemperature(0.0), llm.WithJSONOutput())
	if err != nil {
		r.logger.Printf("[WARN] Speaker identification call failed: %v", err)
		return nil, false
	}

	var parsed identifyResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		r.logger.Printf("[WARN] Speaker identification parse failed: %v", err)
		return nil, false
	}

	assignments := map[string]transcript.Role{}
	for _, a := range parsed.Assignments {
		switch strings.ToLower(a.Role) {
		case "doctor":
			assignments[a.Channel] = transcript.RoleDoctor
		case "patient":
			assignments[a.Channel] = transcript.RolePatient
		}
	}
	return assignments, parsed.Confident
}

func (r *Resolver) buildPrompt() string {
	var b strings.Builder
	b.WriteString("You are classifying speakers in a medical consultation.\n")
	b.WriteString("Decide which raw audio channel is the doctor and which is the patient.\n\n")
	b.WriteString("Utterances:\n")
	for _, s := range r.samples {
		fmt.Fprintf(&b, "[%s]: %s\n", s.channel, s.text)
	}
	b.WriteString("\nRespond with JSON only:\n")
	b.WriteString(`{"assignments": [{"channel": "...", "role": "doctor|patient"}], "confident": true}` + "\n")
	b.WriteString("Set confident to false if the content does not clearly distinguish the roles.")
	return b.String()
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return response
	}

	return response[startIdx : endIdx+1]
}
