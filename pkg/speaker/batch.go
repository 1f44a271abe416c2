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

	"github.com/google/uuid"
)

// BatchClassifier re-labels utterances by content in fixed-size batches.
// It is the independent mechanism used when channel-based identification is
// not applicable (single audio channel). A short window of previously
// classified entries is included for continuity.
type BatchClassifier struct {
	mu            sync.Mutex
	provider      llm.LLMProvider
	logger        *log.Logger
	batchSize     int
	contextWindow int
	classified    int
}

func NewBatchClassifier(provider llm.LLMProvider, batchSize int, logger *log.Logger) *BatchClassifier {
	if batchSize <= 0 {
		batchSize = 8
	}
	return &BatchClassifier{
		provider:      provider,
		logger:        logger,
		batchSize:     batchSize,
		contextWindow: 4,
	}
}

// ClassifyPending labels the next full batch of unclassified entries, if one
// has accumulated. Returns true when a batch was relabeled. The cursor only
// advances on success, so a failed call leaves the batch pending for the next
// attempt. The mutex is held across the call; the classifier is per-session.
func (c *BatchClassifier) ClassifyPending(ctx context.Context, acc *transcript.Accumulator) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := acc.Entries()
	if len(entries)-c.classified < c.batchSize {
		return false
	}

	contextStart := c.classified - c.contextWindow
	if contextStart < 0 {
		contextStart = 0
	}
	contextEntries := entries[contextStart:c.classified]
	batch := entries[c.classified : c.classified+c.batchSize]

	prompt := c.buildPrompt(contextEntries, batch)

	response, err := c.provider.Generate(ctx, prompt, llm.WithTemperature(0.0), llm.WithJSONOutput())
	if err != nil {
		c.logger.Printf("[WARN] Batch speaker classification failed: %v", err)
		return false
	}

	labels, err := parseBatchLabels(response)
	if err != nil {
		c.logger.Printf("[WARN] Batch speaker classification parse failed: %v", err)
		return false
	}

	acc.RelabelRoles(labels)
	c.classified += c.batchSize
	return true
}

type batchLabelResponse struct {
	Labels []struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"labels"`
}

func parseBatchLabels(response string) (map[uuid.UUID]transcript.Role, error) {
	var parsed batchLabelResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal batch labels: %w", err)
	}

	labels := map[uuid.UUID]transcript.Role{}
	for _, l := range parsed.Labels {
		id, err := uuid.Parse(l.ID)
		if err != nil {
			continue
		}
		switch strings.ToLower(l.Role) {
		case "doctor":
			labels[id] = transcript.RoleDoctor
		case "patient":
			labels[id] = transcript.RolePatient
		}
	}
	return labels, nil
}

func (c *BatchClassifier) buildPrompt(contextEntries, batch []transcript.Entry) string {
	var b strings.Builder
	b.WriteString("Label each utterance of a medical consultation as doctor or patient.\n\n")

	if len(contextEntries) > 0 {
		b.WriteString("Previously labeled context:\n")
		for _, e := range contextEntries {
			fmt.Fprintf(&b, "[%s]: %s\n", e.Role, e.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString("Utterances to label:\n")
	for _, e := range batch {
		fmt.Fprintf(&b, "id=%s text=%q\n", e.ID, e.Text)
	}

	b.WriteString("\nRespond with JSON only:\n")
	b.WriteString(`{"labels": [{"id": "...", "role": "doctor|patient"}]}`)
	return b.String()
}
