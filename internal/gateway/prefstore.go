package gateway

import (
	"sync"
	"time"

	"github.com/helmdeck/notify-agent/pkg/models"
)

// PrefStore is the gateway's in-memory preference backend. First access
// seeds the same defaults the agent assumes before its initial load.
type PrefStore struct {
	mu    sync.Mutex
	users map[string]models.UserPreferences
}

// NewPrefStore builds an empty preference backend.
func NewPrefStore() *PrefStore {
	return &PrefStore{users: make(map[string]models.UserPreferences)}
}

// Get returns the stored preferences for the user, seeding defaults on
// first access.
func (p *PrefStore) Get(userID string) models.UserPreferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	current := p.currentLocked(userID)
	return current.Clone()
}

// Apply merges a patch into the stored copy and returns the result.
func (p *PrefStore) Apply(userID string, patch models.PreferencesPatch) models.UserPreferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	current := p.currentLocked(userID)
	updated := patch.Apply(current)
	updated.UpdatedAt = time.Now().UTC()
	p.users[userID] = updated
	return updated.Clone()
}

func (p *PrefStore) currentLocked(userID string) models.UserPreferences {
	if existing, ok := p.users[userID]; ok {
		return existing
	}
	seeded := models.DefaultPreferences(userID)
	p.users[userID] = seeded
	return seeded
}
