package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ConsultationSession struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PatientName string
	Status      string // recording | stopped | closed
	Language    string
	StartedAt   time.Time
	EndedAt     *time.Time
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

type SessionNote struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId uuid.UUID `gorm:"type:uuid;index"`
	Content   string
	Images    datatypes.JSON // attached image references
	CreatedAt time.Time
}

type TranscriptEntry struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId   uuid.UUID `gorm:"type:uuid;index"`
	Role        string
	Content     string
	StartOffset float64
	EndOffset   float64
	Confidence  float64
	CreatedAt   time.Time
}
