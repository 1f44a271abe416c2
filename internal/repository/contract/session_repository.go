package contract

import (
	"context"

	"ai-scribe-be/internal/entity"

	"github.com/google/uuid"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.ConsultationSession) error
	Update(ctx context.Context, session *entity.ConsultationSession) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.ConsultationSession, error)
	FindAll(ctx context.Context) ([]*entity.ConsultationSession, error)
}

type NoteRepository interface {
	Create(ctx context.Context, note *entity.SessionNote) error
	FindAllBySessionId(ctx context.Context, sessionId uuid.UUID) ([]*entity.SessionNote, error)
}

type TranscriptRepository interface {
	Append(ctx context.Context, entry *entity.TranscriptEntry) error
	FindAllBySessionId(ctx context.Context, sessionId uuid.UUID) ([]*entity.TranscriptEntry, error)
	UpdateRoles(ctx context.Context, roles map[uuid.UUID]string) error
}
