package record

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ai-scribe-be/pkg/llm"
	"ai-scribe-be/pkg/pipeline/schema"
	"ai-scribe-be/pkg/session"
)

// Request is the snapshot taken at trigger time.
type Request struct {
	Transcript string
	Notes      string
	Images     []string
	Insights   session.InsightsState
	Existing   *session.ConsultationRecord
}

// Stage produces the structured consultation record. The response replaces
// the record wholesale; there is no per-field merge.
type Stage struct {
	provider llm.LLMProvider
	logger   *log.Logger
}

func NewStage(provider llm.LLMProvider, logger *log.Logger) *Stage {
	return &Stage{provider: provider, logger: logger}
}

// ShouldSkip implements the generation guards: a record that already exists
// is never regenerated automatically, and an empty session produces nothing.
func ShouldSkip(existing *session.ConsultationRecord, transcript, notes string, images []string) bool {
	if existing != nil {
		return true
	}
	if strings.TrimSpace(transcript) == "" && strings.TrimSpace(notes) == "" && len(images) == 0 {
		return true
	}
	return false
}

// Generate calls the engine and requires the response to match the record
// schema exactly. No retry for this stage.
func (s *Stage) Generate(ctx context.Context, req Request) (*session.ConsultationRecord, error) {
	prompt := buildPrompt(req)

	raw, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}, llm.WithTemperature(0.1), llm.WithJSONOutput())
	if err != nil {
		return nil, fmt.Errorf("record call: %w", err)
	}

	var parsed session.ConsultationRecord
	dec := json.NewDecoder(bytes.NewReader([]byte(schema.ExtractJSON(raw))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&parsed); err != nil {
		return nil, schema.NewError("record", err)
	}

	return &parsed, nil
}

const systemPrompt = `You are a medical scribe. Write the structured consultation record for this visit.
Fill every field from the conversation; leave a field as an empty string when nothing applies.
Respond with JSON only, using exactly these fields: {"chief_complaint": "...",
"history_of_present_illness": "...", "past_medical_history": "...", "medications": "...",
"allergies": "...", "physical_exam": "...", "assessment": "...", "plan": "..."}`

func buildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("<transcript>\n")
	b.WriteString(req.Transcript)
	b.WriteString("\n</transcript>\n\n")

	if req.Notes != "" {
		b.WriteString("<doctor_notes>\n")
		b.WriteString(req.Notes)
		b.WriteString("\n</doctor_notes>\n\n")
	}

	if len(req.Images) > 0 {
		b.WriteString("<attached_images>\n")
		b.WriteString(strings.Join(req.Images, "\n"))
		b.WriteString("\n</attached_images>\n\n")
	}

	if req.Insights.Summary != "" {
		b.WriteString("<insights_summary>\n")
		b.WriteString(req.Insights.Summary)
		b.WriteString("\n</insights_summary>\n\n")
	}

	if req.Existing != nil {
		existingJSON, err := json.Marshal(req.Existing)
		if err == nil {
			b.WriteString("<existing_record>\n")
			b.Write(existingJSON)
			b.WriteString("\n</existing_record>\n\n")
			b.WriteString("Refine the existing record with the newest information; return the full document.\n")
			return b.String()
		}
	}

	b.WriteString("Write the consultation record.")
	return b.String()
}
