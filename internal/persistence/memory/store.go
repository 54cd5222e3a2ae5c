// Package memory provides an in-memory store for unit tests and local runs.
package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"example.com/progress/internal/domain"
)

const streakLockShards = 64

type summaryKey struct {
	userID string
	date   domain.Date
}

type streakKey struct {
	userID     string
	streakType domain.StreakType
}

// Store keeps summaries, streaks, and profiles in maps guarded by a single
// RWMutex. Streak advances additionally take a mutex sharded by key hash so
// conflicting writers for one (user, type) serialize while other users
// proceed, mirroring the row-lock discipline of the Postgres store.
type Store struct {
	mu        sync.RWMutex
	summaries map[summaryKey]domain.DailySummary
	applied   map[string]summaryKey
	streaks   map[streakKey]domain.Streak
	profiles  map[string]domain.Profile

	streakLocks [streakLockShards]sync.Mutex
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		summaries: make(map[summaryKey]domain.DailySummary),
		applied:   make(map[string]summaryKey),
		streaks:   make(map[streakKey]domain.Streak),
		profiles:  make(map[string]domain.Profile),
	}
}

// PutProfile seeds a user profile.
func (s *Store) PutProfile(profile domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
}

// Profile implements domain.ProfileSource.
func (s *Store) Profile(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

// ApplyEvent implements domain.SummaryStore with additive merge and an
// applied-event ledger keyed by event id.
func (s *Store) ApplyEvent(_ context.Context, apply domain.SummaryApply) (domain.DailySummary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, seen := s.applied[apply.EventID]; seen {
		return s.summaries[key], true, nil
	}

	now := time.Now().UTC()
	key := summaryKey{userID: apply.UserID, date: apply.Date}
	summary, ok := s.summaries[key]
	if !ok {
		summary = domain.DailySummary{
			UserID:    apply.UserID,
			Date:      apply.Date,
			CreatedAt: now,
		}
	}

	summary.TotalFocusMinutes += apply.FocusMinutes
	summary.CompletedAssignments += apply.CompletedAssignments
	summary.ProductivityScore = domain.Score(summary.TotalFocusMinutes, summary.CompletedAssignments, apply.DailyFocusGoal)
	summary.UpdatedAt = now

	s.summaries[key] = summary
	s.applied[apply.EventID] = key
	return summary, false, nil
}

// GetSummary implements domain.SummaryStore.
func (s *Store) GetSummary(_ context.Context, userID string, date domain.Date) (*domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[summaryKey{userID: userID, date: date}]
	if !ok {
		return nil, nil
	}
	return &summary, nil
}

// ListSummaries implements domain.SummaryStore, ordered by date descending.
func (s *Store) ListSummaries(_ context.Context, userID string, from, to *domain.Date) ([]domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.DailySummary, 0)
	for key, summary := range s.summaries {
		if key.userID != userID {
			continue
		}
		if from != nil && key.date.Before(*from) {
			continue
		}
		if to != nil && key.date.After(*to) {
			continue
		}
		results = append(results, summary)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[j].Date.Before(results[i].Date)
	})
	return results, nil
}

// Advance implements domain.StreakStore under a per-key sharded lock.
func (s *Store) Advance(_ context.Context, userID string, streakType domain.StreakType, day domain.Date) (domain.Streak, domain.Transition, error) {
	key := streakKey{userID: userID, streakType: streakType}
	shard := &s.streakLocks[shardFor(userID, streakType)]
	shard.Lock()
	defer shard.Unlock()

	s.mu.Lock()
	current, ok := s.streaks[key]
	s.mu.Unlock()

	now := time.Now().UTC()
	if !ok {
		current = domain.Streak{UserID: userID, Type: streakType, CreatedAt: now}
	}

	next, transition := domain.AdvanceStreak(current, day)
	if transition.Changed() {
		next.UpdatedAt = now
		s.mu.Lock()
		s.streaks[key] = next
		s.mu.Unlock()
	}
	return next, transition, nil
}

// GetStreak implements domain.StreakStore.
func (s *Store) GetStreak(_ context.Context, userID string, streakType domain.StreakType) (*domain.Streak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	streak, ok := s.streaks[streakKey{userID: userID, streakType: streakType}]
	if !ok {
		return nil, nil
	}
	return &streak, nil
}

// ListStreaks implements domain.StreakStore, ordered by type for stable output.
func (s *Store) ListStreaks(_ context.Context, userID string) ([]domain.Streak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.Streak, 0)
	for key, streak := range s.streaks {
		if key.userID == userID {
			results = append(results, streak)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Type < results[j].Type
	})
	return results, nil
}

func shardFor(userID string, streakType domain.StreakType) uint32 {
	h := fnv.New32a()
	h.Write([]byte(userID))
	h.Write([]byte{'|'})
	h.Write([]byte(streakType))
	return h.Sum32() % streakLockShards
}
