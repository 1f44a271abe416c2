package handout

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ai-scribe-be/pkg/llm"
	"ai-scribe-be/pkg/pipeline/schema"
	"ai-scribe-be/pkg/session"
)

// Request is the snapshot taken at trigger time. Selected lists the
// doctor-chosen differential candidates; the handout contains exactly one
// entry per selected condition.
type Request struct {
	Transcript string
	Notes      string
	Insights   session.InsightsState
	Diagnoses  []session.DiagnosisItem
	Selected   []session.HandoutCondition
	Language   string
}

type handoutEntry struct {
	ICDCode string `json:"icdCode"`
	session.HandoutSections
}

type response struct {
	Entries []handoutEntry `json:"entries"`
}

// Stage produces the patient-facing handout document.
type Stage struct {
	provider llm.LLMProvider
	logger   *log.Logger
}

func NewStage(provider llm.LLMProvider, logger *log.Logger) *Stage {
	return &Stage{provider: provider, logger: logger}
}

// Generate calls the engine and assembles the handout document. Sections the
// engine omitted default to empty strings; a selected condition the engine
// skipped still gets an (empty) entry so the document shape is stable.
func (s *Stage) Generate(ctx context.Context, req Request) (*session.HandoutDocument, error) {
	if len(req.Selected) == 0 {
		return nil, fmt.Errorf("handout: no conditions selected")
	}

	prompt := buildPrompt(req)

	raw, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}, llm.WithTemperature(0.3), llm.WithJSONOutput())
	if err != nil {
		return nil, fmt.Errorf("handout call: %w", err)
	}

	var parsed response
	if err := json.Unmarshal([]byte(schema.ExtractJSON(raw)), &parsed); err != nil {
		return nil, schema.NewError("handout", err)
	}

	return Assemble(req.Selected, parsed.Entries), nil
}

// Assemble builds the document keyed by normalized condition code,
// deduplicated, with every selected condition present.
func Assemble(selected []session.HandoutCondition, entries []handoutEntry) *session.HandoutDocument {
	doc := &session.HandoutDocument{
		Entries: make(map[string]session.HandoutSections, len(selected)),
	}

	byCode := make(map[string]session.HandoutSections, len(entries))
	for _, e := range entries {
		byCode[session.NormalizeConditionCode(e.ICDCode)] = e.HandoutSections
	}

	seen := map[string]bool{}
	for _, cond := range selected {
		key := session.NormalizeConditionCode(cond.Code)
		if seen[key] {
			continue
		}
		seen[key] = true
		cond.ID = key
		doc.Conditions = append(doc.Conditions, cond)
		doc.Entries[key] = byCode[key] // zero value when the engine skipped it
	}

	return doc
}

const systemPrompt = `You write patient-facing condition explanations after a consultation.
For each requested condition produce all of these sections in plain, reassuring language:
overview, symptoms, causes, complications, treatment, escalation_criteria, follow_up, disclaimer.
Use an empty string for a section you cannot fill; never omit a section.
Respond with JSON only: {"entries": [{"icdCode": "...", "overview": "...", "symptoms": "...",
"causes": "...", "complications": "...", "treatment": "...", "escalation_criteria": "...",
"follow_up": "...", "disclaimer": "..."}]}`

func buildPrompt(req Request) string {
	var b strings.Builder

	language := req.Language
	if language == "" {
		language = "English"
	}
	fmt.Fprintf(&b, "Write the handout in %s.\n\n", language)

	b.WriteString("<conditions>\n")
	for _, c := range req.Selected {
		fmt.Fprintf(&b, "%s %s\n", c.Code, c.Name)
	}
	b.WriteString("</conditions>\n\n")

	if req.Insights.Summary != "" {
		b.WriteString("<consultation_summary>\n")
		b.WriteString(req.Insights.Summary)
		b.WriteString("\n</consultation_summary>\n\n")
	}

	if len(req.Diagnoses) > 0 {
		b.WriteString("<clinical_evidence>\n")
		for _, d := range req.Diagnoses {
			if d.Evidence != "" {
				fmt.Fprintf(&b, "%s: %s\n", d.ICDCode, d.Evidence)
			}
		}
		b.WriteString("</clinical_evidence>\n\n")
	}

	if req.Notes != "" {
		b.WriteString("<doctor_notes>\n")
		b.WriteString(req.Notes)
		b.WriteString("\n</doctor_notes>\n\n")
	}

	b.WriteString("<transcript>\n")
	b.WriteString(req.Transcript)
	b.WriteString("\n</transcript>")
	return b.String()
}
