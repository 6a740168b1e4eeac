// Package prefs caches the user's delivery preferences for the session.
package prefs

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/logger"
	"github.com/helmdeck/notify-agent/pkg/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Store holds the session's preference cache. Defaults apply until the
// single load succeeds; updates replace the cache only after the service
// accepted them.
type Store struct {
	mu       sync.Mutex
	fetcher  Fetcher
	logg     *logger.Logger
	userID   string
	current  models.UserPreferences
	loaded   bool
	loading  bool
	closed   bool
	loadErr  error
	loadDone chan struct{}
}

// StoreParams configures a Store.
type StoreParams struct {
	UserID  string
	Fetcher Fetcher
	Logger  *logger.Logger
}

// NewStore builds a preference store seeded with defaults.
func NewStore(params StoreParams) (*Store, error) {
	if params.UserID == "" {
		return nil, fmt.Errorf("user id required")
	}
	if params.Fetcher == nil {
		return nil, fmt.Errorf("preference fetcher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Store{
		fetcher: params.Fetcher,
		logg:    params.Logger,
		userID:  params.UserID,
		current: models.DefaultPreferences(params.UserID),
	}, nil
}

// Load fetches the preferences once. Concurrent callers wait for the
// in-flight fetch. A load that completes after Close is discarded.
func (s *Store) Load(ctx context.Context) (models.UserPreferences, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.UserPreferences{}, pkgerrors.New(pkgerrors.CodeConflict, "preference store is closed")
	}
	if s.loaded {
		current := s.current.Clone()
		s.mu.Unlock()
		return current, nil
	}
	if s.loading {
		done := s.loadDone
		s.mu.Unlock()
		select {
		case <-done:
			return s.loadResult()
		case <-ctx.Done():
			return models.UserPreferences{}, ctx.Err()
		}
	}
	s.loading = true
	s.loadDone = make(chan struct{})
	done := s.loadDone
	s.mu.Unlock()

	fetched, err := s.fetcher.Fetch(ctx, s.userID)

	s.mu.Lock()
	s.loading = false
	if s.closed {
		s.loadErr = pkgerrors.New(pkgerrors.CodeConflict, "preference store is closed")
		s.mu.Unlock()
		close(done)
		return models.UserPreferences{}, s.loadErr
	}
	if err != nil {
		s.loadErr = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading preferences")
		s.logg.Warn(s.logg.WithUserID(ctx, s.userID), "preference load failed, defaults remain active")
		s.mu.Unlock()
		close(done)
		return models.UserPreferences{}, s.loadErr
	}
	s.current = fetched
	s.loaded = true
	s.loadErr = nil
	current := s.current.Clone()
	s.mu.Unlock()
	close(done)
	return current, nil
}

func (s *Store) loadResult() (models.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return models.UserPreferences{}, s.loadErr
	}
	return s.current.Clone(), nil
}

// Current returns the working copy and whether a load has succeeded.
// Before a successful load the working copy is the defaults.
func (s *Store) Current() (models.UserPreferences, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone(), s.loaded
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Update validates the merged result, persists the patch, and replaces the
// cache only when the service accepted it. Any failure leaves the cache
// untouched.
func (s *Store) Update(ctx context.Context, patch models.PreferencesPatch) (models.UserPreferences, error) {
	if patch.IsEmpty() {
		return models.UserPreferences{}, pkgerrors.New(pkgerrors.CodeValidation, "empty preferences patch")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.UserPreferences{}, pkgerrors.New(pkgerrors.CodeConflict, "preference store is closed")
	}
	if s.loading {
		s.mu.Unlock()
		return models.UserPreferences{}, pkgerrors.New(pkgerrors.CodeConflict, "preference load in flight")
	}
	merged := patch.Apply(s.current)
	s.mu.Unlock()

	if err := validate.Struct(&merged); err != nil {
		return models.UserPreferences{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid preferences")
	}
	if merged.QuietHoursStart != "" || merged.QuietHoursEnd != "" {
		if _, err := NewQuietWindow(merged.QuietHoursStart, merged.QuietHoursEnd); err != nil {
			return models.UserPreferences{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quiet hours")
		}
	}

	persisted, err := s.fetcher.Persist(ctx, s.userID, patch)
	if err != nil {
		return models.UserPreferences{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.UserPreferences{}, pkgerrors.New(pkgerrors.CodeConflict, "preference store is closed")
	}
	s.current = persisted
	s.loaded = true
	return s.current.Clone(), nil
}

// Close detaches the store; later loads and updates are refused and
// in-flight completions are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
