package dto

import (
	"time"

	"ai-scribe-be/pkg/session"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	PatientName string `json:"patient_name" validate:"required"`
	Language    string `json:"language"`
}

type SessionResponse struct {
	Id          uuid.UUID  `json:"id"`
	PatientName string     `json:"patient_name"`
	Status      string     `json:"status"`
	Language    string     `json:"language"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

type SubmitNoteRequest struct {
	Content string   `json:"content" validate:"required"`
	Images  []string `json:"images"`
}

type NoteResponse struct {
	Id        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	Images    []string  `json:"images,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SelectDiagnosisRequest struct {
	Selected bool `json:"selected"`
}

type HandoutRequest struct {
	Language string `json:"language"`
}

type TranscriptEntryResponse struct {
	Id          uuid.UUID `json:"id"`
	Role        string    `json:"role"`
	Text        string    `json:"text"`
	StartOffset float64   `json:"start_offset"`
	EndOffset   float64   `json:"end_offset"`
	CreatedAt   time.Time `json:"created_at"`
}

type ArtifactsResponse struct {
	Insights  session.InsightsState      `json:"insights"`
	Diagnoses []session.DiagnosisItem    `json:"diagnoses"`
	Record    *session.ConsultationRecord `json:"record,omitempty"`
	Handout   session.HandoutDocument    `json:"handout"`
}
