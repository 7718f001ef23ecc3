package climate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/saaga0h/jeeves-comfort/internal/comfort"
	"github.com/saaga0h/jeeves-comfort/pkg/redis"
)

var (
	// ErrUnknownCategory is returned when a limits update names no known category
	ErrUnknownCategory = errors.New("unknown room category")

	// ErrNotPersisted is returned when an update was applied but could not be saved
	ErrNotPersisted = errors.New("limits not persisted")
)

var knownCategories = map[comfort.Category]bool{
	comfort.CategoryLiving:   true,
	comfort.CategorySleeping: true,
	comfort.CategoryBathroom: true,
	comfort.CategoryStorage:  true,
	comfort.CategoryOther:    true,
	comfort.CategoryDefault:  true,
}

// LimitStore holds the editable comfort profiles. Edits are persisted to Redis
// when a client is configured and survive restarts.
type LimitStore struct {
	mu       sync.RWMutex
	profiles map[comfort.Category]comfort.LimitProfile
	redis    redis.Client
	logger   *slog.Logger
}

// NewLimitStore starts from the given profiles. redisClient may be nil.
func NewLimitStore(defaults map[comfort.Category]comfort.LimitProfile, redisClient redis.Client, logger *slog.Logger) *LimitStore {
	profiles := make(map[comfort.Category]comfort.LimitProfile, len(defaults))
	for k, v := range defaults {
		profiles[k] = v
	}
	return &LimitStore{
		profiles: profiles,
		redis:    redisClient,
		logger:   logger,
	}
}

// Load overlays persisted edits. Failures and invalid entries leave the defaults in place.
func (s *LimitStore) Load(ctx context.Context) {
	if s.redis == nil {
		return
	}

	fields, err := s.redis.HGetAll(ctx, redis.ComfortLimitsKey)
	if err != nil {
		s.logger.Warn("Failed to load comfort limits, using defaults", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, raw := range fields {
		var profile comfort.LimitProfile
		if err := json.Unmarshal([]byte(raw), &profile); err != nil {
			s.logger.Warn("Skipping corrupt comfort limits", "category", name, "error", err)
			continue
		}
		if err := profile.Validate(); err != nil {
			s.logger.Warn("Skipping invalid comfort limits", "category", name, "error", err)
			continue
		}
		s.profiles[comfort.Category(name)] = profile
	}

	s.logger.Info("Comfort limits loaded", "overrides", len(fields))
}

// Profiles returns a copy of the current profiles
func (s *LimitStore) Profiles() map[comfort.Category]comfort.LimitProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[comfort.Category]comfort.LimitProfile, len(s.profiles))
	for k, v := range s.profiles {
		out[k] = v
	}
	return out
}

// Update validates and stores a profile. A persistence failure is returned
// after the in-memory value was already applied.
func (s *LimitStore) Update(ctx context.Context, category comfort.Category, profile comfort.LimitProfile) error {
	if !knownCategories[category] {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if profile.Label == "" {
		profile.Label = s.profiles[category].Label
	}
	s.profiles[category] = profile
	s.mu.Unlock()

	s.logger.Info("Comfort limits updated",
		"category", category,
		"temp_min", profile.TempMin,
		"temp_max", profile.TempMax,
		"hum_min", profile.HumMin,
		"hum_max", profile.HumMax)

	if s.redis == nil {
		return nil
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}
	if err := s.redis.HSet(ctx, redis.ComfortLimitsKey, string(category), string(data)); err != nil {
		return fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}
	return nil
}
