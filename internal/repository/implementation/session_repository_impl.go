package implementation

import (
	"context"
	"errors"

	"ai-scribe-be/internal/entity"
	"ai-scribe-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepositoryImpl struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) contract.SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

func (r *SessionRepositoryImpl) Create(ctx context.Context, session *entity.ConsultationSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepositoryImpl) Update(ctx context.Context, session *entity.ConsultationSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *SessionRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.ConsultationSession, error) {
	var session entity.ConsultationSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepositoryImpl) FindAll(ctx context.Context) ([]*entity.ConsultationSession, error) {
	var sessions []*entity.ConsultationSession
	if err := r.db.WithContext(ctx).Order("started_at DESC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
