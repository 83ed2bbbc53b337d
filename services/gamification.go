package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tareahub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvariantViolation signals that a streak update would have persisted a
// historical maximum smaller than the current streak. The write is aborted
// instead of corrupting the stored record.
var ErrInvariantViolation = errors.New("streak invariant violation")

// StreakStore loads and saves per-user streak records
type StreakStore interface {
	Get(ctx context.Context, userID primitive.ObjectID) (*models.Streak, error)
	Save(ctx context.Context, streak *models.Streak) error
}

// AchievementCatalog lists achievement definitions in stable order
type AchievementCatalog interface {
	List(ctx context.Context) ([]models.Achievement, error)
}

// AchievementLedger records granted achievements. Grant reports false when
// the pair already exists.
type AchievementLedger interface {
	Grant(ctx context.Context, userID, achievementID primitive.ObjectID, at time.Time) (bool, error)
	UnlockedIDs(ctx context.Context, userID primitive.ObjectID) (map[primitive.ObjectID]bool, error)
}

// TaskCounter exposes the aggregate the task-count achievements trigger on
type TaskCounter interface {
	CountCompleted(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// Notifier pushes gamification events to connected clients. Implementations
// must not block.
type Notifier interface {
	Notify(event models.GamificationEvent)
}

// GamificationService is the completion dispatcher plus the two evaluators
// behind it. OnTaskCompleted is the single mutating entry point; the read
// paths never write.
type GamificationService struct {
	streaks  StreakStore
	catalog  AchievementCatalog
	ledger   AchievementLedger
	tasks    TaskCounter
	clock    DayClock
	notifier Notifier

	mu        sync.Mutex
	userLocks map[string]*userLock
}

// userLock serializes evaluations for one user. Entries are refcounted and
// removed when the last holder releases, so the map only holds users with an
// evaluation in flight.
type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewGamificationService(streaks StreakStore, catalog AchievementCatalog, ledger AchievementLedger, tasks TaskCounter, clock DayClock, notifier Notifier) *GamificationService {
	return &GamificationService{
		streaks:   streaks,
		catalog:   catalog,
		ledger:    ledger,
		tasks:     tasks,
		clock:     clock,
		notifier:  notifier,
		userLocks: make(map[string]*userLock),
	}
}

// lockUser blocks until this goroutine holds the user's lock. Different
// users never contend.
func (s *GamificationService) lockUser(userID primitive.ObjectID) *userLock {
	s.mu.Lock()
	key := userID.Hex()
	lock, ok := s.userLocks[key]
	if !ok {
		lock = &userLock{}
		s.userLocks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (s *GamificationService) unlockUser(userID primitive.ObjectID, lock *userLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.userLocks, userID.Hex())
	}
	s.mu.Unlock()
}

// OnTaskCompleted must be called exactly when a task's completed flag flips
// false to true, after the task itself has been persisted. It updates the
// user's streak and then grants any newly qualifying achievements, returning
// the definitions granted by this call. The whole sequence is safe to retry:
// a duplicate call on the same calendar day leaves both the streak and the
// ledger unchanged.
func (s *GamificationService) OnTaskCompleted(ctx context.Context, userID primitive.ObjectID, now time.Time) ([]models.Achievement, error) {
	lock := s.lockUser(userID)
	defer s.unlockUser(userID, lock)

	streak, err := s.evaluateStreak(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	granted, err := s.evaluateAchievements(ctx, userID, streak.DaysConsecutive, now)
	if err != nil {
		// The streak update is already committed and stays that way; a retry
		// of the whole call is safe.
		return granted, err
	}
	return granted, nil
}

// evaluateStreak applies the day-transition rules and persists the result.
// lastActivityDate never moves backwards and maxDaysConsecutive never
// decreases.
func (s *GamificationService) evaluateStreak(ctx context.Context, userID primitive.ObjectID, now time.Time) (*models.Streak, error) {
	streak, err := s.streaks.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load streak: %w", err)
	}
	if streak == nil {
		streak = &models.Streak{UserID: userID}
	}

	today := s.clock.Day(now)
	yesterday := s.clock.PreviousDay(today)

	switch {
	case streak.LastActivityDate == today:
		// Already counted today
		return streak, nil
	case streak.LastActivityDate > today:
		// Stored day is ahead of the clock; keep the stored state rather than
		// move lastActivityDate backwards
		log.Printf("streak for user %s has lastActivityDate %s after today %s; skipping update", userID.Hex(), streak.LastActivityDate, today)
		return streak, nil
	case streak.LastActivityDate == yesterday:
		streak.DaysConsecutive++
	default:
		// First ever activity, or a gap of two or more days
		streak.DaysConsecutive = 1
	}

	streak.LastActivityDate = today
	if streak.DaysConsecutive > streak.MaxDaysConsecutive {
		streak.MaxDaysConsecutive = streak.DaysConsecutive
	}

	if streak.MaxDaysConsecutive < streak.DaysConsecutive {
		log.Printf("refusing streak write for user %s: max %d < current %d", userID.Hex(), streak.MaxDaysConsecutive, streak.DaysConsecutive)
		return nil, ErrInvariantViolation
	}

	if err := s.streaks.Save(ctx, streak); err != nil {
		return nil, fmt.Errorf("save streak: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Notify(models.GamificationEvent{
			Type:       "streak_updated",
			UserID:     userID.Hex(),
			StreakDays: streak.DaysConsecutive,
			MaxStreak:  streak.MaxDaysConsecutive,
			Timestamp:  now,
		})
	}
	return streak, nil
}

// evaluateAchievements scans the catalog in order and grants every definition
// whose target is met and not yet in the ledger. Re-running with unchanged
// aggregates grants nothing.
func (s *GamificationService) evaluateAchievements(ctx context.Context, userID primitive.ObjectID, streakDays int, now time.Time) ([]models.Achievement, error) {
	totalCompleted, err := s.tasks.CountCompleted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count completed tasks: %w", err)
	}

	definitions, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load achievement catalog: %w", err)
	}

	unlocked, err := s.ledger.UnlockedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load granted achievements: %w", err)
	}

	var granted []models.Achievement
	for _, def := range definitions {
		var qualified bool
		switch def.Category {
		case models.CategoryTaskCount:
			qualified = int64(def.Target) <= totalCompleted
		case models.CategoryStreak:
			qualified = def.Target <= streakDays
		}
		if !qualified || unlocked[def.ID] {
			continue
		}

		inserted, err := s.ledger.Grant(ctx, userID, def.ID, now)
		if err != nil {
			return granted, fmt.Errorf("grant achievement %s: %w", def.Type, err)
		}
		if !inserted {
			continue
		}
		granted = append(granted, def)
		log.Printf("user %s unlocked achievement %s", userID.Hex(), def.Type)

		if s.notifier != nil {
			s.notifier.Notify(models.GamificationEvent{
				Type:        "achievement_unlocked",
				UserID:      userID.Hex(),
				Achievement: def.Type,
				Timestamp:   now,
			})
		}
	}
	return granted, nil
}

// StreakSnapshot is the read model for the streak display
type StreakSnapshot struct {
	CurrentStreak    int     `json:"currentStreak"`
	MaxStreak        int     `json:"maxStreak"`
	LastActivityDate *string `json:"lastActivityDate"`
}

// GetStreakSnapshot returns the user's current streak state, zeroes when no
// evaluation has ever run for them
func (s *GamificationService) GetStreakSnapshot(ctx context.Context, userID primitive.ObjectID) (*StreakSnapshot, error) {
	streak, err := s.streaks.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load streak: %w", err)
	}
	if streak == nil {
		return &StreakSnapshot{}, nil
	}

	snapshot := &StreakSnapshot{
		CurrentStreak: streak.DaysConsecutive,
		MaxStreak:     streak.MaxDaysConsecutive,
	}
	if streak.LastActivityDate != "" {
		snapshot.LastActivityDate = &streak.LastActivityDate
	}
	return snapshot, nil
}

// AchievementStatus is one catalog entry with the caller's unlock state. The
// numeric target stays internal.
type AchievementStatus struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
}

// ListAchievements returns the full catalog in order, locked entries
// included, with the unlocked flag computed from ledger membership
func (s *GamificationService) ListAchievements(ctx context.Context, userID primitive.ObjectID) ([]AchievementStatus, error) {
	definitions, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load achievement catalog: %w", err)
	}

	unlocked, err := s.ledger.UnlockedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load granted achievements: %w", err)
	}

	statuses := make([]AchievementStatus, 0, len(definitions))
	for _, def := range definitions {
		statuses = append(statuses, AchievementStatus{
			ID:          def.ID.Hex(),
			Type:        def.Type,
			Name:        def.Name,
			Description: def.Description,
			Unlocked:    unlocked[def.ID],
		})
	}
	return statuses, nil
}
