package implementation

import (
	"context"

	"ai-scribe-be/internal/entity"
	"ai-scribe-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TranscriptRepositoryImpl struct {
	db *gorm.DB
}

func NewTranscriptRepository(db *gorm.DB) contract.TranscriptRepository {
	return &TranscriptRepositoryImpl{db: db}
}

func (r *TranscriptRepositoryImpl) Append(ctx context.Context, entry *entity.TranscriptEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *TranscriptRepositoryImpl) FindAllBySessionId(ctx context.Context, sessionId uuid.UUID) ([]*entity.TranscriptEntry, error) {
	var entries []*entity.TranscriptEntry
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionId).Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *TranscriptRepositoryImpl) UpdateRoles(ctx context.Context, roles map[uuid.UUID]string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, role := range roles {
			if err := tx.Model(&entity.TranscriptEntry{}).Where("id = ?", id).Update("role", role).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
