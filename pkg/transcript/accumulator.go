package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role is the resolved conversational role of a speaker.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
	RoleUnknown Role = "unknown"
)

// Entry is a single finalized utterance. Entries are immutable once appended
// and are never reordered.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	Role        Role      `json:"role"`
	Text        string    `json:"text"`
	StartOffset float64   `json:"start_offset"`
	EndOffset   float64   `json:"end_offset"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}

// Accumulator is the append-only transcript log for one session.
// All operations are synchronous in-memory mutations.
type Accumulator struct {
	mu          sync.RWMutex
	entries     []Entry
	interimText string
	interimRole Role
	wordCount   int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// AppendFinal appends a finalized utterance and invalidates any pending
// interim text.
func (a *Accumulator) AppendFinal(entry Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	a.entries = append(a.entries, entry)
	a.wordCount += len(strings.Fields(entry.Text))
	a.interimText = ""
	a.interimRole = RoleUnknown
}

// SetInterim replaces the current interim (non-final) text.
func (a *Accumulator) SetInterim(text string, role Role) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interimText = text
	a.interimRole = role
}

// Interim returns the pending interim text, if any.
func (a *Accumulator) Interim() (string, Role) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.interimText, a.interimRole
}

// FullText renders the final entries in arrival order as "[role]: text" lines.
func (a *Accumulator) FullText() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var b strings.Builder
	for i, e := range a.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("[")
		b.WriteString(string(e.Role))
		b.WriteString("]: ")
		b.WriteString(e.Text)
	}
	return b.String()
}

// WordCount returns the total word count across final entries.
func (a *Accumulator) WordCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.wordCount
}

// Len returns the number of final entries.
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Entries returns a copy of the final entries.
func (a *Accumulator) Entries() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// RelabelRoles rewrites the role of the identified entries in place.
// Used by batch content classification on single-channel audio; text,
// offsets and ordering are untouched.
func (a *Accumulator) RelabelRoles(roles map[uuid.UUID]Role) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.entries {
		if role, ok := roles[a.entries[i].ID]; ok {
			a.entries[i].Role = role
		}
	}
}
