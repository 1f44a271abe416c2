package service

import (
	"context"
	"sync"
	"time"

	"ai-scribe-be/internal/dto"
	"ai-scribe-be/internal/entity"
	"ai-scribe-be/internal/pkg/logger"
	"ai-scribe-be/internal/repository/contract"
	"ai-scribe-be/internal/repository/memory"
	"ai-scribe-be/pkg/pipeline"
	"ai-scribe-be/pkg/session"
	"ai-scribe-be/pkg/speaker"
	"ai-scribe-be/pkg/transcript"

	"github.com/google/uuid"
)

// ICaptureService consumes live speech-to-text frames for active sessions.
type ICaptureService interface {
	HandleFrame(sessionID uuid.UUID, frame dto.CaptureFrame)
	Forget(sessionID uuid.UUID)
}

type captureService struct {
	live         *memory.LiveStore
	transcripts  contract.TranscriptRepository
	orchestrator *pipeline.Orchestrator
	logger       logger.ILogger

	mu       sync.Mutex
	channels map[uuid.UUID]map[uuid.UUID]string // sessionID -> entryID -> raw channel
}

func NewCaptureService(
	live *memory.LiveStore,
	transcripts contract.TranscriptRepository,
	orchestrator *pipeline.Orchestrator,
	log logger.ILogger,
) ICaptureService {
	return &captureService{
		live:         live,
		transcripts:  transcripts,
		orchestrator: orchestrator,
		logger:       log,
		channels:     map[uuid.UUID]map[uuid.UUID]string{},
	}
}

func (s *captureService) HandleFrame(sessionID uuid.UUID, frame dto.CaptureFrame) {
	state, ok := s.live.Get(sessionID)
	if !ok {
		s.logger.Warn("Capture", "Frame for unknown session dropped", map[string]interface{}{"session_id": sessionID})
		return
	}

	switch frame.Type {
	case dto.FrameUtteranceInterim:
		state.Transcript.SetInterim(frame.Text, state.Speakers.RoleFor(frame.Channel))

	case dto.FrameUtteranceFinal:
		s.handleFinal(sessionID, state, frame)

	case dto.FrameRecordingStopped:
		s.orchestrator.EmitRecordingStopped(sessionID)

	default:
		s.logger.Warn("Capture", "Unknown frame type", map[string]interface{}{"session_id": sessionID, "type": frame.Type})
	}
}

func (s *captureService) handleFinal(sessionID uuid.UUID, state *session.State, frame dto.CaptureFrame) {
	state.Speakers.Observe(frame.Channel, frame.Text)

	entry := transcript.Entry{
		ID:          uuid.New(),
		Role:        state.Speakers.RoleFor(frame.Channel),
		Text:        frame.Text,
		StartOffset: frame.StartOffset,
		EndOffset:   frame.EndOffset,
		Confidence:  frame.Confidence,
		CreatedAt:   time.Now(),
	}
	state.Transcript.AppendFinal(entry)

	s.mu.Lock()
	if s.channels[sessionID] == nil {
		s.channels[sessionID] = map[uuid.UUID]string{}
	}
	s.channels[sessionID][entry.ID] = frame.Channel
	s.mu.Unlock()

	go s.persistEntry(sessionID, entry)
	go s.resolveSpeakers(sessionID, state)

	s.orchestrator.EmitUtteranceFinal(sessionID)
}

func (s *captureService) persistEntry(sessionID uuid.UUID, entry transcript.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.transcripts.Append(ctx, &entity.TranscriptEntry{
		Id:          entry.ID,
		SessionId:   sessionID,
		Role:        string(entry.Role),
		Content:     entry.Text,
		StartOffset: entry.StartOffset,
		EndOffset:   entry.EndOffset,
		Confidence:  entry.Confidence,
		CreatedAt:   entry.CreatedAt,
	})
	if err != nil {
		s.logger.Error("Capture", "Failed to persist transcript entry", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}

// resolveSpeakers advances whichever role-resolution mechanism applies:
// channel-based identification when two channels are visible, batch content
// classification otherwise. Runs off the frame path; the resolver gates
// itself against concurrent attempts.
func (s *captureService) resolveSpeakers(sessionID uuid.UUID, state *session.State) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if state.Speakers.ChannelCount() >= 2 {
		wasIdentified := state.Speakers.State() == speaker.StateIdentified
		state.Speakers.MaybeIdentify(ctx)
		if !wasIdentified && state.Speakers.State() == speaker.StateIdentified {
			s.relabelFromChannels(sessionID, state)
		}
		return
	}

	if state.Batch.ClassifyPending(ctx, state.Transcript) {
		s.persistRoles(sessionID, state)
	}
}

// relabelFromChannels backfills roles onto entries appended before
// identification completed.
func (s *captureService) relabelFromChannels(sessionID uuid.UUID, state *session.State) {
	s.mu.Lock()
	byEntry := s.channels[sessionID]
	entryChannels := make(map[uuid.UUID]string, len(byEntry))
	for id, ch := range byEntry {
		entryChannels[id] = ch
	}
	s.mu.Unlock()

	roles := map[uuid.UUID]transcript.Role{}
	for id, ch := range entryChannels {
		if role := state.Speakers.RoleFor(ch); role != transcript.RoleUnknown {
			roles[id] = role
		}
	}
	if len(roles) == 0 {
		return
	}

	state.Transcript.RelabelRoles(roles)
	s.persistRoles(sessionID, state)
}

func (s *captureService) persistRoles(sessionID uuid.UUID, state *session.State) {
	roles := map[uuid.UUID]string{}
	for _, e := range state.Transcript.Entries() {
		if e.Role != transcript.RoleUnknown {
			roles[e.ID] = string(e.Role)
		}
	}
	if len(roles) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.transcripts.UpdateRoles(ctx, roles); err != nil {
		s.logger.Error("Capture", "Failed to persist transcript roles", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}

func (s *captureService) Forget(sessionID uuid.UUID) {
	s.mu.Lock()
	delete(s.channels, sessionID)
	s.mu.Unlock()
}
