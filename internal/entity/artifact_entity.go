package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionArtifact holds one derived document per (session, kind). Writes are
// full-document replacements, so the row is a plain JSON column keyed by the
// composite primary key.
type SessionArtifact struct {
	SessionId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind      string    `gorm:"primaryKey"` // insights | differential | record | handout
	Document  datatypes.JSON
	UpdatedAt time.Time
}
