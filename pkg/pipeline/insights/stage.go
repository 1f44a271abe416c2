package insights

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

// Request is the read-only snapshot the stage works from, taken at trigger
// time.
type Request struct {
	Transcript string
	Notes      string
	Current    session.InsightsState
}

// ChecklistEntry is the engine's view of one checklist item. The response
// carries the complete desired checklist state, not a diff.
type ChecklistEntry struct {
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

// Response is the declared engine schema for this stage.
type Response struct {
	Summary     string           `json:"summary"`
	KeyFindings []string         `json:"keyFindings"`
	RedFlags    []string         `json:"redFlags"`
	Checklist   []ChecklistEntry `json:"checklist"`
}

// Stage produces the clinical summary/checklist artifact.
type Stage struct {
	provider llm.LLMProvider
	logger   *log.Logger
}

func NewStage(provider llm.LLMProvider, logger *log.Logger) *Stage {
	return &Stage{provider: provider, logger: logger}
}

// Generate sends the transcript and current insights snapshot to the engine
// and parses the response. No retry: a malformed response surfaces as a
// schema.Error and the next natural trigger retries organically.
func (s *Stage) Generate(ctx context.Context, req Request) (*Response, error) {
	prompt := buildPrompt(req)

	raw, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}, llm.WithTemperature(0.2), llm.WithJSONOutput())
	if err != nil {
		return nil, fmt.Errorf("insights call: %w", err)
	}

	var parsed Response
	if err := json.Unmarshal([]byte(schema.ExtractJSON(raw)), &parsed); err != nil {
		return nil, schema.NewError("insights", err)
	}

	return &parsed, nil
}

// Apply reconciles an engine response into the current insights state.
// Summary, findings and flags are replaced wholesale; the checklist goes
// through full-replace-by-label reconciliation.
func Apply(current *session.InsightsState, resp *Response) {
	current.Summary = resp.Summary
	current.KeyFindings = append([]string(nil), resp.KeyFindings...)
	current.RedFlags = append([]string(nil), resp.RedFlags...)
	current.ChecklistItems = MergeChecklist(current.ChecklistItems, resp.Checklist)
}

// MergeChecklist implements full-replace-by-label reconciliation:
//   - existing items whose label appears in the response are updated
//     (checked/auto-checked flags only)
//   - AI-sourced items whose label is absent are dropped; MANUAL items are
//     never auto-removed
//   - response entries with no existing match are appended as AI-sourced,
//     preserving response order after existing items
//
// Applying the same response twice is idempotent.
func MergeChecklist(existing []session.ChecklistItem, resp []ChecklistEntry) []session.ChecklistItem {
	respByLabel := make(map[string]ChecklistEntry, len(resp))
	for _, e := range resp {
		respByLabel[e.Label] = e
	}

	matched := make(map[string]bool, len(resp))
	out := make([]session.ChecklistItem, 0, len(existing)+len(resp))

	for _, item := range existing {
		entry, ok := respByLabel[item.Label]
		if !ok {
			if item.Source == session.SourceManual {
				out = append(out, item)
			}
			// AI-sourced item omitted by the response: authoritative drop.
			continue
		}
		matched[item.Label] = true

		if entry.Checked && !item.IsChecked {
			item.IsChecked = true
			item.IsAutoChecked = true
		} else if !entry.Checked && item.IsAutoChecked {
			// Only auto-checks are revocable; a doctor's manual check stays.
			item.IsChecked = false
			item.IsAutoChecked = false
		}
		out = append(out, item)
	}

	for _, e := range resp {
		if matched[e.Label] {
			continue
		}
		// Duplicate labels within one response collapse to the first.
		if exists(out, e.Label) {
			continue
		}
		out = append(out, session.ChecklistItem{
			Label:         e.Label,
			IsChecked:     e.Checked,
			IsAutoChecked: e.Checked,
			Source:        session.SourceAI,
		})
	}

	for i := range out {
		out[i].SortOrder = i
	}
	return out
}

func exists(items []session.ChecklistItem, label string) bool {
	for _, it := range items {
		if it.Label == label {
			return true
		}
	}
	return false
}

const systemPrompt = `You are a clinical documentation assistant listening to an ongoing consultation.
Maintain a concise summary, key findings, red flags, and an actionable checklist for the doctor.
The checklist you return is the complete desired state, not a diff: include every item that should
remain, mark items as checked once the conversation shows they were addressed, and omit items that
are no longer relevant.
Respond with JSON only: {"summary": "...", "keyFindings": ["..."], "redFlags": ["..."], "checklist": [{"label": "...", "checked": false}]}`

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

	if req.Current.Summary != "" {
		b.WriteString("<previous_summary>\n")
		b.WriteString(req.Current.Summary)
		b.WriteString("\n</previous_summary>\n\n")
	}

	var pending, completed []string
	for _, item := range req.Current.ChecklistItems {
		if item.IsChecked {
			completed = append(completed, item.Label)
		} else {
			pending = append(pending, item.Label)
		}
	}
	if len(pending) > 0 {
		b.WriteString("<checklist_pending>\n")
		b.WriteString(strings.Join(pending, "\n"))
		b.WriteString("\n</checklist_pending>\n\n")
	}
	if len(completed) > 0 {
		b.WriteString("<checklist_completed>\n")
		b.WriteString(strings.Join(completed, "\n"))
		b.WriteString("\n</checklist_completed>\n\n")
	}

	b.WriteString("Update the insights for the conversation so far.")
	return b.String()
}
