package implementation

import (
	"context"

	"ai-scribe-be/internal/entity"
	"ai-scribe-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NoteRepositoryImpl struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) contract.NoteRepository {
	return &NoteRepositoryImpl{db: db}
}

func (r *NoteRepositoryImpl) Create(ctx context.Context, note *entity.SessionNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *NoteRepositoryImpl) FindAllBySessionId(ctx context.Context, sessionId uuid.UUID) ([]*entity.SessionNote, error) {
	var notes []*entity.SessionNote
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionId).Order("created_at ASC").Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}
