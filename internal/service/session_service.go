package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ai-scribe-be/internal/dto"
	"ai-scribe-be/internal/entity"
	"ai-scribe-be/internal/pkg/logger"
	"ai-scribe-be/internal/pkg/serverutils"
	"ai-scribe-be/internal/repository/contract"
	"ai-scribe-be/internal/repository/memory"
	"ai-scribe-be/pkg/llm"
	"ai-scribe-be/pkg/pipeline"
	"ai-scribe-be/pkg/session"
	"ai-scribe-be/pkg/speaker"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	SessionStatusRecording = "recording"
	SessionStatusStopped   = "stopped"
	SessionStatusClosed    = "closed"
)

type ISessionService interface {
	Create(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error)
	GetAll(ctx context.Context) ([]*dto.SessionResponse, error)
	Stop(ctx context.Context, id uuid.UUID) error
	Close(ctx context.Context, id uuid.UUID) error
	SubmitNote(ctx context.Context, id uuid.UUID, req *dto.SubmitNoteRequest) (*dto.NoteResponse, error)
	GetNotes(ctx context.Context, id uuid.UUID) ([]*dto.NoteResponse, error)
	SetDiagnosisSelected(ctx context.Context, id uuid.UUID, icdCode string, selected bool) error
	RequestHandout(ctx context.Context, id uuid.UUID, req *dto.HandoutRequest) error
	RegenerateRecord(ctx context.Context, id uuid.UUID) error
	Artifacts(ctx context.Context, id uuid.UUID) (*dto.ArtifactsResponse, error)
	Transcript(ctx context.Context, id uuid.UUID) ([]*dto.TranscriptEntryResponse, error)
}

type sessionService struct {
	sessions    contract.SessionRepository
	notes       contract.NoteRepository
	transcripts contract.TranscriptRepository
	artifacts   contract.ArtifactRepository
	live        *memory.LiveStore

	orchestrator *pipeline.Orchestrator
	capture      ICaptureService
	sink         pipeline.ArtifactSink
	notifier     pipeline.Notifier

	llmProvider llm.LLMProvider
	batchSize   int
	logger      logger.ILogger
	plog        *log.Logger
}

func NewSessionService(
	sessions contract.SessionRepository,
	notes contract.NoteRepository,
	transcripts contract.TranscriptRepository,
	artifacts contract.ArtifactRepository,
	live *memory.LiveStore,
	orchestrator *pipeline.Orchestrator,
	capture ICaptureService,
	sink pipeline.ArtifactSink,
	notifier pipeline.Notifier,
	llmProvider llm.LLMProvider,
	batchSize int,
	log_ logger.ILogger,
	plog *log.Logger,
) ISessionService {
	return &sessionService{
		sessions:     sessions,
		notes:        notes,
		transcripts:  transcripts,
		artifacts:    artifacts,
		live:         live,
		orchestrator: orchestrator,
		capture:      capture,
		sink:         sink,
		notifier:     notifier,
		llmProvider:  llmProvider,
		batchSize:    batchSize,
		logger:       log_,
		plog:         plog,
	}
}

func (s *sessionService) Create(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	now := time.Now()
	row := &entity.ConsultationSession{
		Id:          uuid.New(),
		PatientName: req.PatientName,
		Status:      SessionStatusRecording,
		Language:    req.Language,
		StartedAt:   now,
		CreatedAt:   now,
	}
	if err := s.sessions.Create(ctx, row); err != nil {
		return nil, err
	}

	resolver := speaker.NewResolver(s.llmProvider, s.plog)
	batch := speaker.NewBatchClassifier(s.llmProvider, s.batchSize, s.plog)
	s.live.Save(session.NewState(row.Id, resolver, batch))

	s.logger.Info("Session", "Consultation session started", map[string]interface{}{"session_id": row.Id})
	return toSessionResponse(row), nil
}

func (s *sessionService) Show(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error) {
	row, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(row), nil
}

func (s *sessionService) GetAll(ctx context.Context) ([]*dto.SessionResponse, error) {
	rows, err := s.sessions.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.SessionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSessionResponse(row))
	}
	return out, nil
}

// Stop ends audio capture. The live state stays resident: the pipeline runs
// its final forced pass and the doctor keeps editing artifacts afterwards.
func (s *sessionService) Stop(ctx context.Context, id uuid.UUID) error {
	row, err := s.findSession(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	row.Status = SessionStatusStopped
	row.EndedAt = &now
	row.UpdatedAt = &now
	if err := s.sessions.Update(ctx, row); err != nil {
		return err
	}

	s.orchestrator.EmitRecordingStopped(id)
	return nil
}

// Close tears the session down. Teardown is synchronous so no in-flight
// generation can land after the live state is gone.
func (s *sessionService) Close(ctx context.Context, id uuid.UUID) error {
	row, err := s.findSession(ctx, id)
	if err != nil {
		return err
	}

	s.orchestrator.Teardown(id)
	s.capture.Forget(id)
	s.live.Delete(id)

	now := time.Now()
	row.Status = SessionStatusClosed
	if row.EndedAt == nil {
		row.EndedAt = &now
	}
	row.UpdatedAt = &now
	if err := s.sessions.Update(ctx, row); err != nil {
		return err
	}

	s.logger.Info("Session", "Consultation session closed", map[string]interface{}{"session_id": id})
	return nil
}

func (s *sessionService) SubmitNote(ctx context.Context, id uuid.UUID, req *dto.SubmitNoteRequest) (*dto.NoteResponse, error) {
	if _, err := s.findSession(ctx, id); err != nil {
		return nil, err
	}

	row := &entity.SessionNote{
		Id:        uuid.New(),
		SessionId: id,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	if len(req.Images) > 0 {
		data, err := json.Marshal(req.Images)
		if err != nil {
			return nil, err
		}
		row.Images = data
	}
	if err := s.notes.Create(ctx, row); err != nil {
		return nil, err
	}

	s.orchestrator.EmitNoteSubmitted(id)

	return &dto.NoteResponse{
		Id:        row.Id,
		Content:   row.Content,
		Images:    req.Images,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (s *sessionService) GetNotes(ctx context.Context, id uuid.UUID) ([]*dto.NoteResponse, error) {
	rows, err := s.notes.FindAllBySessionId(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.NoteResponse, 0, len(rows))
	for _, row := range rows {
		res := &dto.NoteResponse{
			Id:        row.Id,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		}
		if len(row.Images) > 0 {
			var images []string
			if err := json.Unmarshal(row.Images, &images); err == nil {
				res.Images = images
			}
		}
		out = append(out, res)
	}
	return out, nil
}

// SetDiagnosisSelected toggles a candidate's handout selection. Deselection
// also prunes its handout entry, so both artifacts are re-persisted and
// re-pushed.
func (s *sessionService) SetDiagnosisSelected(ctx context.Context, id uuid.UUID, icdCode string, selected bool) error {
	state, ok := s.live.Get(id)
	if !ok {
		return serverutils.NewApiError(fiber.StatusNotFound, "Session is not active")
	}

	if !state.SetDiagnosisSelected(icdCode, selected) {
		return serverutils.NewApiError(fiber.StatusNotFound, "Diagnosis not found")
	}

	diagnoses := state.Diagnoses()
	handoutDoc := state.Handout()

	if err := s.sink.PutDiagnoses(ctx, id, diagnoses); err != nil {
		s.logger.Error("Session", "Failed to persist diagnosis selection", map[string]interface{}{"session_id": id, "error": err.Error()})
	}
	if err := s.sink.PutHandout(ctx, id, handoutDoc); err != nil {
		s.logger.Error("Session", "Failed to persist handout after selection change", map[string]interface{}{"session_id": id, "error": err.Error()})
	}

	s.notifier.ArtifactUpdated(id, session.StageDifferential, diagnoses)
	if !selected {
		s.notifier.ArtifactUpdated(id, session.StageHandout, handoutDoc)
	}
	return nil
}

func (s *sessionService) RequestHandout(ctx context.Context, id uuid.UUID, req *dto.HandoutRequest) error {
	if _, ok := s.live.Get(id); !ok {
		return serverutils.NewApiError(fiber.StatusNotFound, "Session is not active")
	}
	s.orchestrator.EmitHandoutRequested(id, req.Language)
	return nil
}

func (s *sessionService) RegenerateRecord(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.live.Get(id); !ok {
		return serverutils.NewApiError(fiber.StatusNotFound, "Session is not active")
	}
	s.orchestrator.RegenerateRecord(id)
	return nil
}

// Artifacts returns the live artifacts when the session is resident, falling
// back to the persisted documents for closed sessions.
func (s *sessionService) Artifacts(ctx context.Context, id uuid.UUID) (*dto.ArtifactsResponse, error) {
	if state, ok := s.live.Get(id); ok {
		return &dto.ArtifactsResponse{
			Insights:  state.Insights(),
			Diagnoses: state.Diagnoses(),
			Record:    state.Record(),
			Handout:   state.Handout(),
		}, nil
	}

	if _, err := s.findSession(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.artifacts.FindAllBySessionId(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &dto.ArtifactsResponse{
		Handout: session.HandoutDocument{Entries: map[string]session.HandoutSections{}},
	}
	for _, row := range rows {
		switch session.StageKind(row.Kind) {
		case session.StageInsights:
			json.Unmarshal(row.Document, &res.Insights)
		case session.StageDifferential:
			json.Unmarshal(row.Document, &res.Diagnoses)
		case session.StageRecord:
			var rec session.ConsultationRecord
			if err := json.Unmarshal(row.Document, &rec); err == nil {
				res.Record = &rec
			}
		case session.StageHandout:
			json.Unmarshal(row.Document, &res.Handout)
		}
	}
	return res, nil
}

func (s *sessionService) Transcript(ctx context.Context, id uuid.UUID) ([]*dto.TranscriptEntryResponse, error) {
	if state, ok := s.live.Get(id); ok {
		entries := state.Transcript.Entries()
		out := make([]*dto.TranscriptEntryResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, &dto.TranscriptEntryResponse{
				Id:          e.ID,
				Role:        string(e.Role),
				Text:        e.Text,
				StartOffset: e.StartOffset,
				EndOffset:   e.EndOffset,
				CreatedAt:   e.CreatedAt,
			})
		}
		return out, nil
	}

	if _, err := s.findSession(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.transcripts.FindAllBySessionId(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.TranscriptEntryResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, &dto.TranscriptEntryResponse{
			Id:          row.Id,
			Role:        row.Role,
			Text:        row.Content,
			StartOffset: row.StartOffset,
			EndOffset:   row.EndOffset,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}

func (s *sessionService) findSession(ctx context.Context, id uuid.UUID) (*entity.ConsultationSession, error) {
	row, err := s.sessions.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, serverutils.NewApiError(fiber.StatusNotFound, "Session not found")
	}
	return row, nil
}

func toSessionResponse(row *entity.ConsultationSession) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:          row.Id,
		PatientName: row.PatientName,
		Status:      row.Status,
		Language:    row.Language,
		StartedAt:   row.StartedAt,
		EndedAt:     row.EndedAt,
	}
}
