package memory

import (
	"time"

	"ai-scribe-be/pkg/session"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// LiveStore holds the in-memory state of active consultation sessions.
// Idle sessions expire after the configured TTL; closed sessions are
// deleted explicitly.
type LiveStore struct {
	cache *cache.Cache
}

func NewLiveStore(ttl time.Duration) *LiveStore {
	c := cache.New(ttl, 10*time.Minute)
	return &LiveStore{
		cache: c,
	}
}

func (s *LiveStore) Save(state *session.State) {
	s.cache.Set(state.ID.String(), state, cache.DefaultExpiration)
}

func (s *LiveStore) Get(id uuid.UUID) (*session.State, bool) {
	if x, found := s.cache.Get(id.String()); found {
		return x.(*session.State), true
	}
	return nil, false
}

func (s *LiveStore) Delete(id uuid.UUID) {
	s.cache.Delete(id.String())
}
