package differential

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"ai-scribe-be/pkg/llm"
	"ai-scribe-be/pkg/pipeline/schema"
	"ai-scribe-be/pkg/retrieval"
	"ai-scribe-be/pkg/session"

	"github.com/google/uuid"
)

// Request is the snapshot taken at trigger time.
type Request struct {
	Transcript string
	Notes      string
	Insights   session.InsightsState
	Existing   []session.DiagnosisItem
	Evidence   []retrieval.Evidence
}

type diagnosisEntry struct {
	ICDCode     string             `json:"icdCode"`
	DiseaseName string             `json:"diseaseName"`
	Confidence  string             `json:"confidence"`
	Evidence    string             `json:"evidence"`
	Citations   []session.Citation `json:"citations"`
}

type response struct {
	Diagnoses []diagnosisEntry `json:"diagnoses"`
}

// Stage produces the ranked differential list with citations.
type Stage struct {
	provider   llm.LLMProvider
	logger     *log.Logger
	retryDelay time.Duration
}

func NewStage(provider llm.LLMProvider, logger *log.Logger) *Stage {
	return &Stage{
		provider:   provider,
		logger:     logger,
		retryDelay: 2 * time.Second,
	}
}

// HasClinicalContext reports whether insights carry enough substance for a
// differential. The stage refuses to run against an empty snapshot.
func HasClinicalContext(s session.InsightsState) bool {
	return strings.TrimSpace(s.Summary) != "" || len(s.KeyFindings) > 0
}

// Generate calls the engine and parses the declared schema. A schema failure
// is retried exactly once after a short fixed delay; transport failures are
// not retried.
func (s *Stage) Generate(ctx context.Context, req Request) ([]session.DiagnosisItem, error) {
	parsed, err := s.call(ctx, req)
	if err != nil {
		if !schema.IsError(err) {
			return nil, err
		}
		s.logger.Printf("[WARN] Differential response failed schema validation, retrying once: %v", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}
		parsed, err = s.call(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	return Merge(req.Existing, parsed.Diagnoses), nil
}

func (s *Stage) call(ctx context.Context, req Request) (*response, error) {
	prompt := buildPrompt(req)

	raw, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}, llm.WithTemperature(0.2), llm.WithJSONOutput())
	if err != nil {
		return nil, fmt.Errorf("differential call: %w", err)
	}

	var parsed response
	if err := json.Unmarshal([]byte(schema.ExtractJSON(raw)), &parsed); err != nil {
		return nil, schema.NewError("differential", err)
	}
	if parsed.Diagnoses == nil {
		return nil, schema.NewError("differential", fmt.Errorf("response missing diagnoses array"))
	}

	return &parsed, nil
}

// Merge reconciles an engine response into the existing list by ICD code
// (full replace-by-key, same pattern as the checklist):
//   - matched items keep their id and selection, replace scalar fields
//     wholesale, and union citation lists by (source,url) with new citations
//     first
//   - existing codes absent from the response are dropped
//   - ordering follows the response (it is the ranking)
func Merge(existing []session.DiagnosisItem, entries []diagnosisEntry) []session.DiagnosisItem {
	byCode := make(map[string]session.DiagnosisItem, len(existing))
	for _, item := range existing {
		byCode[item.ICDCode] = item
	}

	out := make([]session.DiagnosisItem, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.ICDCode == "" || seen[e.ICDCode] {
			continue
		}
		seen[e.ICDCode] = true

		item := session.DiagnosisItem{
			ID:          uuid.New(),
			ICDCode:     e.ICDCode,
			DiseaseName: e.DiseaseName,
			Confidence:  parseConfidence(e.Confidence),
			Evidence:    e.Evidence,
			Citations:   append([]session.Citation(nil), e.Citations...),
		}
		if prev, ok := byCode[e.ICDCode]; ok {
			item.ID = prev.ID
			item.Selected = prev.Selected
			item.Citations = unionCitations(e.Citations, prev.Citations)
		}
		item.SortOrder = len(out)
		out = append(out, item)
	}
	return out
}

// unionCitations merges by (source,url) identity, new citations first.
func unionCitations(newer, older []session.Citation) []session.Citation {
	type key struct{ source, url string }
	seen := map[key]bool{}

	out := make([]session.Citation, 0, len(newer)+len(older))
	for _, c := range newer {
		k := key{c.Source, c.URL}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	for _, c := range older {
		k := key{c.Source, c.URL}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

func parseConfidence(raw string) session.Confidence {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return session.ConfidenceHigh
	case "low":
		return session.ConfidenceLow
	default:
		return session.ConfidenceModerate
	}
}

// ExtractSearchTerms pulls the retrieval query terms out of the insights
// snapshot.
func ExtractSearchTerms(s session.InsightsState) []string {
	var terms []string
	terms = append(terms, s.KeyFindings...)
	terms = append(terms, s.RedFlags...)
	return terms
}

const systemPrompt = `You are a clinical reasoning assistant. Produce a ranked differential diagnosis
list for the consultation, most likely first. Every diagnosis needs an ICD-10 code, a confidence of
high, moderate or low, the supporting evidence from the conversation, and citations.
Respond with JSON only: {"diagnoses": [{"icdCode": "...", "diseaseName": "...", "confidence": "high",
"evidence": "...", "citations": [{"source": "...", "title": "...", "url": "..."}]}]}`

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

	b.WriteString("<insights>\n")
	b.WriteString("Summary: " + req.Insights.Summary + "\n")
	if len(req.Insights.KeyFindings) > 0 {
		b.WriteString("Key findings: " + strings.Join(req.Insights.KeyFindings, "; ") + "\n")
	}
	if len(req.Insights.RedFlags) > 0 {
		b.WriteString("Red flags: " + strings.Join(req.Insights.RedFlags, "; ") + "\n")
	}
	b.WriteString("</insights>\n\n")

	if len(req.Existing) > 0 {
		b.WriteString("<current_differential>\n")
		for _, d := range req.Existing {
			fmt.Fprintf(&b, "%s %s (%s)\n", d.ICDCode, d.DiseaseName, d.Confidence)
		}
		b.WriteString("</current_differential>\n\n")
	}

	if len(req.Evidence) > 0 {
		b.WriteString("<external_knowledge>\n")
		for _, ev := range req.Evidence {
			fmt.Fprintf(&b, "[%s] %s (%s): %s\n", ev.Source, ev.Title, ev.URL, ev.Excerpt)
		}
		b.WriteString("</external_knowledge>\n\n")
	}

	b.WriteString("Update the ranked differential for the conversation so far.")
	return b.String()
}
