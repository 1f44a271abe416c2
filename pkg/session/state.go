package session

import (
	"strings"
	"sync"
	"time"

	"ai-scribe-be/pkg/speaker"
	"ai-scribe-be/pkg/transcript"

	"github.com/google/uuid"
)

// ChecklistSource marks who created a checklist item.
type ChecklistSource string

const (
	SourceAI     ChecklistSource = "AI"
	SourceManual ChecklistSource = "MANUAL"
)

// ChecklistItem is keyed by Label (case-sensitive exact match); exactly one
// item per distinct label.
type ChecklistItem struct {
	Label         string          `json:"label"`
	IsChecked     bool            `json:"is_checked"`
	IsAutoChecked bool            `json:"is_auto_checked"`
	DoctorNote    string          `json:"doctor_note,omitempty"`
	SortOrder     int             `json:"sort_order"`
	Source        ChecklistSource `json:"source"`
}

// InsightsState is the clinical summary artifact.
type InsightsState struct {
	Summary               string          `json:"summary"`
	KeyFindings           []string        `json:"key_findings"`
	RedFlags              []string        `json:"red_flags"`
	ChecklistItems        []ChecklistItem `json:"checklist_items"`
	LastUpdated           time.Time       `json:"last_updated"`
	WordCountAtLastUpdate int             `json:"word_count_at_last_update"`
}

// Confidence levels for a differential candidate.
type Confidence string

const (
	ConfidenceHigh     Confidence = "high"
	ConfidenceModerate Confidence = "moderate"
	ConfidenceLow      Confidence = "low"
)

type Citation struct {
	Source string `json:"source"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url"`
}

// DiagnosisItem is unique by ICDCode within a session.
type DiagnosisItem struct {
	ID          uuid.UUID  `json:"id"`
	ICDCode     string     `json:"icd_code"`
	DiseaseName string     `json:"disease_name"`
	Confidence  Confidence `json:"confidence"`
	Evidence    string     `json:"evidence"`
	Citations   []Citation `json:"citations"`
	SortOrder   int        `json:"sort_order"`
	Selected    bool       `json:"selected"`
}

// ConsultationRecord is the structured record document. It is overwritten
// wholesale per generation, never partially merged.
type ConsultationRecord struct {
	ChiefComplaint          string `json:"chief_complaint"`
	HistoryOfPresentIllness string `json:"history_of_present_illness"`
	PastMedicalHistory      string `json:"past_medical_history"`
	Medications             string `json:"medications"`
	Allergies               string `json:"allergies"`
	PhysicalExam            string `json:"physical_exam"`
	Assessment              string `json:"assessment"`
	Plan                    string `json:"plan"`
}

// HandoutCondition identifies a doctor-selected differential candidate.
type HandoutCondition struct {
	ID   string `json:"id"` // normalized ICD code
	Code string `json:"code"`
	Name string `json:"name"`
}

// HandoutSections are the fixed named sections of a patient handout entry.
// Missing sections default to empty string, never omitted.
type HandoutSections struct {
	Overview           string `json:"overview"`
	Symptoms           string `json:"symptoms"`
	Causes             string `json:"causes"`
	Complications      string `json:"complications"`
	Treatment          string `json:"treatment"`
	EscalationCriteria string `json:"escalation_criteria"`
	FollowUp           string `json:"follow_up"`
	Disclaimer         string `json:"disclaimer"`
}

// HandoutDocument maps conditions to their generated sections.
type HandoutDocument struct {
	Conditions []HandoutCondition         `json:"conditions"`
	Entries    map[string]HandoutSections `json:"entries"`
}

// NormalizeConditionCode is the dedup key for handout conditions.
func NormalizeConditionCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Note is an operator-submitted free-text/image annotation.
type Note struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StageKind names one of the four derivation pipelines.
type StageKind string

const (
	StageInsights     StageKind = "insights"
	StageDifferential StageKind = "differential"
	StageRecord       StageKind = "record"
	StageHandout      StageKind = "handout"
)

// State is the live in-memory state of one consultation session. All derived
// state starts empty and is mutated only by pipeline stage completions or
// direct operator edits.
type State struct {
	ID uuid.UUID

	// Transcript, Speakers and Batch manage their own locking.
	Transcript *transcript.Accumulator
	Speakers   *speaker.Resolver
	Batch      *speaker.BatchClassifier

	mu         sync.RWMutex
	insights   InsightsState
	diagnoses  []DiagnosisItem
	record     *ConsultationRecord
	handout    HandoutDocument
	recording  bool
	processing map[StageKind]bool
	createdAt  time.Time
}

func NewState(id uuid.UUID, resolver *speaker.Resolver, batch *speaker.BatchClassifier) *State {
	return &State{
		ID:         id,
		Transcript: transcript.NewAccumulator(),
		Speakers:   resolver,
		Batch:      batch,
		handout:    HandoutDocument{Entries: map[string]HandoutSections{}},
		processing: map[StageKind]bool{},
		recording:  true,
		createdAt:  time.Now(),
	}
}

func (s *State) CreatedAt() time.Time {
	return s.createdAt
}

// Insights returns a deep-copied snapshot.
func (s *State) Insights() InsightsState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyInsights(s.insights)
}

// UpdateInsights applies fn to the insights state under the state lock.
// Stage completions and operator checklist edits both go through here so a
// stage result merges against the freshest checklist.
func (s *State) UpdateInsights(fn func(*InsightsState)) InsightsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.insights)
	return copyInsights(s.insights)
}

// Diagnoses returns a deep-copied snapshot of the differential list.
func (s *State) Diagnoses() []DiagnosisItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyDiagnoses(s.diagnoses)
}

func (s *State) SetDiagnoses(items []DiagnosisItem) []DiagnosisItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnoses = copyDiagnoses(items)
	return copyDiagnoses(s.diagnoses)
}

// SetDiagnosisSelected toggles handout selection for one candidate.
// Deselecting prunes the handout entry for that condition immediately.
func (s *State) SetDiagnosisSelected(icdCode string, selected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.diagnoses {
		if s.diagnoses[i].ICDCode == icdCode {
			s.diagnoses[i].Selected = selected
			if !selected {
				key := NormalizeConditionCode(icdCode)
				delete(s.handout.Entries, key)
				conditions := s.handout.Conditions[:0]
				for _, c := range s.handout.Conditions {
					if c.ID != key {
						conditions = append(conditions, c)
					}
				}
				s.handout.Conditions = conditions
			}
			return true
		}
	}
	return false
}

// SelectedConditions lists the doctor-selected candidates, deduplicated by
// normalized code.
func (s *State) SelectedConditions() []HandoutCondition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	var out []HandoutCondition
	for _, d := range s.diagnoses {
		if !d.Selected {
			continue
		}
		key := NormalizeConditionCode(d.ICDCode)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, HandoutCondition{ID: key, Code: d.ICDCode, Name: d.DiseaseName})
	}
	return out
}

func (s *State) Record() *ConsultationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return nil
	}
	r := *s.record
	return &r
}

func (s *State) SetRecord(r *ConsultationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r == nil {
		s.record = nil
		return
	}
	cp := *r
	s.record = &cp
}

func (s *State) Handout() HandoutDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyHandout(s.handout)
}

func (s *State) SetHandout(doc HandoutDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handout = copyHandout(doc)
}

func (s *State) Recording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording
}

func (s *State) SetRecording(recording bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = recording
}

// Processing reports whether a stage currently has an in-flight call.
func (s *State) Processing(kind StageKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processing[kind]
}

func (s *State) SetProcessing(kind StageKind, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing[kind] = active
}

func copyInsights(in InsightsState) InsightsState {
	out := in
	out.KeyFindings = append([]string(nil), in.KeyFindings...)
	out.RedFlags = append([]string(nil), in.RedFlags...)
	out.ChecklistItems = append([]ChecklistItem(nil), in.ChecklistItems...)
	return out
}

func copyDiagnoses(in []DiagnosisItem) []DiagnosisItem {
	out := make([]DiagnosisItem, len(in))
	for i, d := range in {
		out[i] = d
		out[i].Citations = append([]Citation(nil), d.Citations...)
	}
	return out
}

func copyHandout(in HandoutDocument) HandoutDocument {
	out := HandoutDocument{
		Conditions: append([]HandoutCondition(nil), in.Conditions...),
		Entries:    make(map[string]HandoutSections, len(in.Entries)),
	}
	for k, v := range in.Entries {
		out.Entries[k] = v
	}
	return out
}
