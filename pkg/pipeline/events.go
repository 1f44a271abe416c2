package pipeline

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Discrete scheduler events. The orchestrator consumes these topics and
// applies the per-stage gate predicates; nothing subscribes to store diffs.
const (
	TopicUtteranceFinal    = "pipeline.utterance.final"
	TopicRecordingStopped  = "pipeline.recording.stopped"
	TopicNoteSubmitted     = "pipeline.note.submitted"
	TopicInsightsCompleted = "pipeline.insights.completed"
	TopicHandoutRequested  = "pipeline.handout.requested"
	TopicSessionClosed     = "pipeline.session.closed"
)

// EventPayload is the wire form of every pipeline event.
type EventPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	Language  string    `json:"language,omitempty"`
}

func newEventMessage(payload EventPayload) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return message.NewMessage(watermill.NewUUID(), data), nil
}

func parseEventPayload(msg *message.Message) (EventPayload, error) {
	var payload EventPayload
	err := json.Unmarshal(msg.Payload, &payload)
	return payload, err
}
