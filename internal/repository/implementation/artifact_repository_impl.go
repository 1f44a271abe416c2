package implementation

import (
	"context"
	"errors"
	"time"

	"ai-scribe-be/internal/entity"
	"ai-scribe-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ArtifactRepositoryImpl struct {
	db *gorm.DB
}

func NewArtifactRepository(db *gorm.DB) contract.ArtifactRepository {
	return &ArtifactRepositoryImpl{db: db}
}

// Upsert replaces the document for (session_id, kind) wholesale.
func (r *ArtifactRepositoryImpl) Upsert(ctx context.Context, artifact *entity.SessionArtifact) error {
	artifact.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
	}).Create(artifact).Error
}

func (r *ArtifactRepositoryImpl) FindOne(ctx context.Context, sessionId uuid.UUID, kind string) (*entity.SessionArtifact, error) {
	var artifact entity.SessionArtifact
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND kind = ?", sessionId, kind).
		First(&artifact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &artifact, nil
}

func (r *ArtifactRepositoryImpl) FindAllBySessionId(ctx context.Context, sessionId uuid.UUID) ([]*entity.SessionArtifact, error) {
	var artifacts []*entity.SessionArtifact
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionId).Find(&artifacts).Error; err != nil {
		return nil, err
	}
	return artifacts, nil
}
