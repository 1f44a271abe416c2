package contract

import (
	"context"

	"ai-scribe-be/internal/entity"

	"github.com/google/uuid"
)

type ArtifactRepository interface {
	Upsert(ctx context.Context, artifact *entity.SessionArtifact) error
	FindOne(ctx context.Context, sessionId uuid.UUID, kind string) (*entity.SessionArtifact, error)
	FindAllBySessionId(ctx context.Context, sessionId uuid.UUID) ([]*entity.SessionArtifact, error)
}
