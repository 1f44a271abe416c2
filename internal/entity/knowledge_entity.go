package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type KnowledgeSnippet struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Source    string
	Title     string
	URL       string
	Excerpt   string
	Embedding pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt time.Time
}
