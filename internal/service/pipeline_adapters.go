package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"ai-scribe-be/internal/dto"
	"ai-scribe-be/internal/entity"
	"ai-scribe-be/internal/pkg/logger"
	"ai-scribe-be/internal/repository/contract"
	"ai-scribe-be/internal/websocket"
	"ai-scribe-be/pkg/events"
	pkgNats "ai-scribe-be/pkg/nats"
	"ai-scribe-be/pkg/pipeline"
	"ai-scribe-be/pkg/session"

	"github.com/google/uuid"
)

// artifactSink persists completed artifacts as full-document JSON rows.
type artifactSink struct {
	artifacts contract.ArtifactRepository
}

func NewArtifactSink(artifacts contract.ArtifactRepository) pipeline.ArtifactSink {
	return &artifactSink{artifacts: artifacts}
}

func (s *artifactSink) put(ctx context.Context, sessionID uuid.UUID, kind session.StageKind, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.artifacts.Upsert(ctx, &entity.SessionArtifact{
		SessionId: sessionID,
		Kind:      string(kind),
		Document:  data,
	})
}

func (s *artifactSink) PutInsights(ctx context.Context, sessionID uuid.UUID, state session.InsightsState) error {
	return s.put(ctx, sessionID, session.StageInsights, state)
}

func (s *artifactSink) PutDiagnoses(ctx context.Context, sessionID uuid.UUID, items []session.DiagnosisItem) error {
	return s.put(ctx, sessionID, session.StageDifferential, items)
}

func (s *artifactSink) PutRecord(ctx context.Context, sessionID uuid.UUID, record session.ConsultationRecord) error {
	return s.put(ctx, sessionID, session.StageRecord, record)
}

func (s *artifactSink) PutHandout(ctx context.Context, sessionID uuid.UUID, doc session.HandoutDocument) error {
	return s.put(ctx, sessionID, session.StageHandout, doc)
}

// notesSource exposes the persisted session notes to the pipeline stages.
type notesSource struct {
	notes contract.NoteRepository
}

func NewNotesSource(notes contract.NoteRepository) pipeline.NotesSource {
	return &notesSource{notes: notes}
}

func (s *notesSource) Fetch(ctx context.Context, sessionID uuid.UUID) (string, []string, error) {
	rows, err := s.notes.FindAllBySessionId(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}

	var parts []string
	var images []string
	for _, row := range rows {
		if row.Content != "" {
			parts = append(parts, row.Content)
		}
		if len(row.Images) > 0 {
			var refs []string
			if err := json.Unmarshal(row.Images, &refs); err == nil {
				images = append(images, refs...)
			}
		}
	}
	return strings.Join(parts, "\n\n"), images, nil
}

// artifactNotifier fans a completed artifact out to the session's websocket
// clients and to the NATS stream for external consumers. Both paths are best
// effort.
type artifactNotifier struct {
	hub    *websocket.Hub
	nats   *pkgNats.Publisher
	logger logger.ILogger
}

func NewArtifactNotifier(hub *websocket.Hub, nats *pkgNats.Publisher, log logger.ILogger) pipeline.Notifier {
	return &artifactNotifier{hub: hub, nats: nats, logger: log}
}

var natsEventTypes = map[session.StageKind]string{
	session.StageInsights:     events.TypeInsightsUpdated,
	session.StageDifferential: events.TypeDifferentialUpdated,
	session.StageRecord:       events.TypeRecordUpdated,
	session.StageHandout:      events.TypeHandoutUpdated,
}

func (n *artifactNotifier) ArtifactUpdated(sessionID uuid.UUID, kind session.StageKind, payload interface{}) {
	n.hub.SendToSession(sessionID, dto.ArtifactPush{
		Type: "artifact",
		Kind: string(kind),
		Data: payload,
	})

	if n.nats == nil {
		return
	}
	eventType, ok := natsEventTypes[kind]
	if !ok {
		return
	}
	event := events.New(eventType, map[string]interface{}{
		"session_id": sessionID.String(),
		"artifact":   payload,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.nats.Publish(ctx, event); err != nil {
		n.logger.Warn("Notifier", "Failed to publish artifact event to NATS", map[string]interface{}{
			"session_id": sessionID.String(),
			"kind":       string(kind),
			"error":      err.Error(),
		})
	}
}
