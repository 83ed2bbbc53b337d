package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tareahub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory stand-ins for the Mongo-backed stores

type memStreaks struct {
	mu     sync.Mutex
	byUser map[string]models.Streak
}

func newMemStreaks() *memStreaks {
	return &memStreaks{byUser: make(map[string]models.Streak)}
}

func (m *memStreaks) Get(_ context.Context, userID primitive.ObjectID) (*models.Streak, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	streak, ok := m.byUser[userID.Hex()]
	if !ok {
		return nil, nil
	}
	copied := streak
	return &copied, nil
}

func (m *memStreaks) Save(_ context.Context, streak *models.Streak) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser[streak.UserID.Hex()] = *streak
	return nil
}

type memCatalog struct {
	defs []models.Achievement
}

func (m *memCatalog) List(_ context.Context) ([]models.Achievement, error) {
	return m.defs, nil
}

type memLedger struct {
	mu      sync.Mutex
	entries map[string]map[primitive.ObjectID]bool
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[string]map[primitive.ObjectID]bool)}
}

func (m *memLedger) Grant(_ context.Context, userID, achievementID primitive.ObjectID, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.entries[userID.Hex()]
	if user == nil {
		user = make(map[primitive.ObjectID]bool)
		m.entries[userID.Hex()] = user
	}
	if user[achievementID] {
		return false, nil
	}
	user[achievementID] = true
	return true, nil
}

func (m *memLedger) UnlockedIDs(_ context.Context, userID primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	unlocked := make(map[primitive.ObjectID]bool)
	for id := range m.entries[userID.Hex()] {
		unlocked[id] = true
	}
	return unlocked, nil
}

func (m *memLedger) count(userID primitive.ObjectID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries[userID.Hex()])
}

type memCounter struct {
	mu    sync.Mutex
	total int64
	err   error
}

func (m *memCounter) CountCompleted(_ context.Context, _ primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return m.total, nil
}

func (m *memCounter) set(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = n
}

func (m *memCounter) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type fixture struct {
	svc     *GamificationService
	streaks *memStreaks
	ledger  *memLedger
	counter *memCounter
	primer  models.Achievement
	diez    models.Achievement
	racha   models.Achievement
	user    primitive.ObjectID
}

func newFixture() *fixture {
	primer := models.Achievement{ID: primitive.NewObjectID(), Type: "PrimerTarea", Category: models.CategoryTaskCount, Target: 1, Order: 1}
	diez := models.Achievement{ID: primitive.NewObjectID(), Type: "DiezTareas", Category: models.CategoryTaskCount, Target: 10, Order: 2}
	racha := models.Achievement{ID: primitive.NewObjectID(), Type: "Racha7Dias", Category: models.CategoryStreak, Target: 7, Order: 3}

	streaks := newMemStreaks()
	ledger := newMemLedger()
	counter := &memCounter{}
	catalog := &memCatalog{defs: []models.Achievement{primer, diez, racha}}
	svc := NewGamificationService(streaks, catalog, ledger, counter, NewDayClock(time.UTC), nil)

	return &fixture{
		svc:     svc,
		streaks: streaks,
		ledger:  ledger,
		counter: counter,
		primer:  primer,
		diez:    diez,
		racha:   racha,
		user:    primitive.NewObjectID(),
	}
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test time %s: %v", value, err)
	}
	return parsed
}

func (f *fixture) streakState(t *testing.T) models.Streak {
	t.Helper()
	streak, err := f.streaks.Get(context.Background(), f.user)
	if err != nil {
		t.Fatalf("get streak: %v", err)
	}
	if streak == nil {
		t.Fatal("expected a streak record")
	}
	return *streak
}

func TestFirstCompletionStartsStreak(t *testing.T) {
	f := newFixture()
	f.counter.set(1)

	granted, err := f.svc.OnTaskCompleted(context.Background(), f.user, mustTime(t, "2024-01-10T09:00:00Z"))
	if err != nil {
		t.Fatalf("OnTaskCompleted failed: %v", err)
	}

	streak := f.streakState(t)
	if streak.DaysConsecutive != 1 || streak.MaxDaysConsecutive != 1 {
		t.Errorf("expected streak 1/1, got %d/%d", streak.DaysConsecutive, streak.MaxDaysConsecutive)
	}
	if streak.LastActivityDate != "2024-01-10" {
		t.Errorf("expected lastActivityDate 2024-01-10, got %s", streak.LastActivityDate)
	}

	if len(granted) != 1 || granted[0].Type != "PrimerTarea" {
		t.Errorf("expected only PrimerTarea granted, got %v", granted)
	}
}

func TestConsecutiveDayIncrementsStreak(t *testing.T) {
	f := newFixture()
	f.streaks.Save(context.Background(), &models.Streak{
		UserID:             f.user,
		DaysConsecutive:    3,
		MaxDaysConsecutive: 5,
		LastActivityDate:   "2024-01-10",
	})
	f.counter.set(4)

	if _, err := f.svc.OnTaskCompleted(context.Background(), f.user, mustTime(t, "2024-01-11T20:00:00Z")); err != nil {
		t.Fatalf("OnTaskCompleted failed: %v", err)
	}

	streak := f.streakState(t)
	if streak.DaysConsecutive != 4 {
		t.Errorf("expected daysConsecutive 4, got %d", streak.DaysConsecutive)
	}
	if streak.MaxDaysConsecutive != 5 {
		t.Errorf("expected maxDaysConsecutive unchanged at 5, got %d", streak.MaxDaysConsecutive)
	}
	if streak.LastActivityDate != "2024-01-11" {
		t.Errorf("expected lastActivityDate 2024-01-11, got %s", streak.LastActivityDate)
	}
}

func TestGapResetsStreakAndKeepsMax(t *testing.T) {
	f := newFixture()
	f.streaks.Save(context.Background(), &models.Streak{
		UserID:             f.user,
		DaysConsecutive:    3,
		MaxDaysConsecutive: 5,
		LastActivityDate:   "2024-01-10",
	})
	f.counter.set(4)

	if _, err := f.svc.OnTaskCompleted(context.Background(), f.user, mustTime(t, "2024-01-14T08:00:00Z")); err != nil {
		t.Fatalf("OnTaskCompleted failed: %v", err)
	}

	streak := f.streakState(t)
	if streak.DaysConsecutive != 1 {
		t.Errorf("expected streak reset to 1, got %d", streak.DaysConsecutive)
	}
	if streak.MaxDaysConsecutive != 5 {
		t.Errorf("expected maxDaysConsecutive preserved at 5, got %d", streak.MaxDaysConsecutive)
	}
	if streak.LastActivityDate != "2024-01-14" {
		t.Errorf("expected lastActivityDate 2024-01-14, got %s", streak.LastActivityDate)
	}
}

func TestStreakAchievementGrantedExactlyOnce(t *testing.T) {
	f := newFixture()

	// Complete one task per day for eight consecutive days
	day := mustTime(t, "2024-02-01T12:00:00Z")
	for i := 0; i < 8; i++ {
		f.counter.set(int64(i + 1))
		granted, err := f.svc.OnTaskCompleted(context.Background(), f.user, day.AddDate(0, 0, i))
		if err != nil {
			t.Fatalf("day %d: OnTaskCompleted failed: %v", i, err)
		}
		for _, def := range granted {
			if def.Type == "Racha7Dias" && i != 6 {
				t.Errorf("Racha7Dias granted on day %d, expected day 6", i)
			}
		}
	}

	unlocked, _ := f.ledger.UnlockedIDs(context.Background(), f.user)
	if !unlocked[f.racha.ID] {
		t.Error("expected Racha7Dias to be unlocked")
	}
	if got := f.ledger.count(f.user); got != 2 {
		t.Errorf("expected 2 ledger entries (PrimerTarea, Racha7Dias), got %d", got)
	}
}

func TestTaskCountAchievementIndependentOfStreak(t *testing.T) {
	f := newFixture()
	f.ledger.Grant(context.Background(), f.user, f.primer.ID, time.Now())
	f.streaks.Save(context.Background(), &models.Streak{
		UserID:             f.user,
		DaysConsecutive:    1,
		MaxDaysConsecutive: 1,
		LastActivityDate:   "2024-03-04",
	})
	f.counter.set(10)

	granted, err := f.svc.OnTaskCompleted(context.Background(), f.user, mustTime(t, "2024-03-05T10:00:00Z"))
	if err != nil {
		t.Fatalf("OnTaskCompleted failed: %v", err)
	}

	if len(granted) != 1 || granted[0].Type != "DiezTareas" {
		t.Errorf("expected only DiezTareas granted, got %v", granted)
	}
}

func TestSameDayCompletionIsIdempotent(t *testing.T) {
	f := newFixture()
	f.counter.set(2)
	now := mustTime(t, "2024-01-10T09:00:00Z")

	if _, err := f.svc.OnTaskCompleted(context.Background(), f.user, now); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	first := f.streakState(t)
	firstGrants := f.ledger.count(f.user)

	if _, err := f.svc.OnTaskCompleted(context.Background(), f.user, now); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	second := f.streakState(t)

	if first.DaysConsecutive != second.DaysConsecutive || first.MaxDaysConsecutive != second.MaxDaysConsecutive || first.LastActivityDate != second.LastActivityDate {
		t.Errorf("repeated call changed streak state: %+v vs %+v", first, second)
	}
	if got := f.ledger.count(f.user); got != firstGrants {
		t.Errorf("repeated call changed ledger size: %d vs %d", firstGrants, got)
	}
}

func TestLastActivityDateNeverMovesBackwards(t *testing.T) {
	f := newFixture()
	f.counter.set(3)
	f.streaks.Save(context.Background(), &models.Streak{
		UserID:             f.user,
		DaysConsecutive:    2,
		MaxDaysConsecutive: 2,
		LastActivityDate:   "2024-01-12",
	})

	// A delayed retry arrives with an instant from two days earlier
	if _, err := f.svc.OnTaskCompleted(context.Background(), f.user, mustTime(t, "2024-01-10T23:00:00Z")); err != nil {
		t.Fatalf("OnTaskCompleted failed: %v", err)
	}

	streak := f.streakState(t)
	if streak.LastActivityDate != "2024-01-12" {
		t.Errorf("lastActivityDate moved backwards to %s", streak.LastActivityDate)
	}
	if streak.DaysConsecutive != 2 {
		t.Errorf("stale completion changed daysConsecutive to %d", streak.DaysConsecutive)
	}
}

func TestConcurrentSameDayCompletionsIncrementOnce(t *testing.T) {
	f := newFixture()
	f.counter.set(5)
	f.streaks.Save(context.Background(), &models.Streak{
		UserID:             f.user,
		DaysConsecutive:    3,
		MaxDaysConsecutive: 5,
		LastActivityDate:   "2024-01-10",
	})
	now := mustTime(t, "2024-01-11T12:00:00Z")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.OnTaskCompleted(context.Background(), f.user, now); err != nil {
				t.Errorf("OnTaskCompleted failed: %v", err)
			}
		}()
	}
	wg.Wait()

	streak := f.streakState(t)
	if streak.DaysConsecutive != 4 {
		t.Errorf("expected daysConsecutive 4 after concurrent completions, got %d", streak.DaysConsecutive)
	}
}

func TestMaxNeverBelowCurrent(t *testing.T) {
	f := newFixture()
	f.counter.set(1)

	day := mustTime(t, "2024-04-01T12:00:00Z")
	for i := 0; i < 10; i++ {
		f.counter.set(int64(i + 1))
		if _, err := f.svc.OnTaskCompleted(context.Background(), f.user, day.AddDate(0, 0, i)); err != nil {
			t.Fatalf("day %d failed: %v", i, err)
		}
		streak := f.streakState(t)
		if streak.MaxDaysConsecutive < streak.DaysConsecutive {
			t.Fatalf("invariant broken on day %d: max %d < current %d", i, streak.MaxDaysConsecutive, streak.DaysConsecutive)
		}
	}
}

func TestStreakStaysCommittedWhenAchievementEvaluationFails(t *testing.T) {
	f := newFixture()
	f.counter.set(1)
	storageErr := errors.New("count query failed")
	f.counter.setErr(storageErr)
	now := mustTime(t, "2024-01-10T09:00:00Z")

	if _, err := f.svc.OnTaskCompleted(context.Background(), f.user, now); !errors.Is(err, storageErr) {
		t.Fatalf("expected the storage error to propagate, got %v", err)
	}

	// The streak update landed before the failure and stays committed
	streak := f.streakState(t)
	if streak.DaysConsecutive != 1 || streak.LastActivityDate != "2024-01-10" {
		t.Errorf("expected committed streak 1 @ 2024-01-10, got %d @ %s", streak.DaysConsecutive, streak.LastActivityDate)
	}
	if got := f.ledger.count(f.user); got != 0 {
		t.Errorf("expected no grants after failed evaluation, got %d", got)
	}

	// A retry of the whole call completes the grants without double-counting
	f.counter.setErr(nil)
	granted, err := f.svc.OnTaskCompleted(context.Background(), f.user, now)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(granted) != 1 || granted[0].Type != "PrimerTarea" {
		t.Errorf("expected retry to grant PrimerTarea, got %v", granted)
	}

	streak = f.streakState(t)
	if streak.DaysConsecutive != 1 || streak.MaxDaysConsecutive != 1 {
		t.Errorf("retry changed streak to %d/%d", streak.DaysConsecutive, streak.MaxDaysConsecutive)
	}
}

func TestUserLocksDoNotOutliveEvaluations(t *testing.T) {
	f := newFixture()
	f.counter.set(5)
	f.streaks.Save(context.Background(), &models.Streak{
		UserID:             f.user,
		DaysConsecutive:    3,
		MaxDaysConsecutive: 5,
		LastActivityDate:   "2024-01-10",
	})
	now := mustTime(t, "2024-01-11T12:00:00Z")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.OnTaskCompleted(context.Background(), f.user, now); err != nil {
				t.Errorf("OnTaskCompleted failed: %v", err)
			}
		}()
	}
	wg.Wait()

	f.svc.mu.Lock()
	remaining := len(f.svc.userLocks)
	f.svc.mu.Unlock()
	if remaining != 0 {
		t.Errorf("expected no retained user locks, got %d", remaining)
	}
}

func TestGetStreakSnapshot(t *testing.T) {
	f := newFixture()

	snapshot, err := f.svc.GetStreakSnapshot(context.Background(), f.user)
	if err != nil {
		t.Fatalf("GetStreakSnapshot failed: %v", err)
	}
	if snapshot.CurrentStreak != 0 || snapshot.MaxStreak != 0 || snapshot.LastActivityDate != nil {
		t.Errorf("expected zero snapshot for new user, got %+v", snapshot)
	}

	f.counter.set(1)
	if _, err := f.svc.OnTaskCompleted(context.Background(), f.user, mustTime(t, "2024-01-10T09:00:00Z")); err != nil {
		t.Fatalf("OnTaskCompleted failed: %v", err)
	}

	snapshot, err = f.svc.GetStreakSnapshot(context.Background(), f.user)
	if err != nil {
		t.Fatalf("GetStreakSnapshot failed: %v", err)
	}
	if snapshot.CurrentStreak != 1 || snapshot.MaxStreak != 1 {
		t.Errorf("expected snapshot 1/1, got %+v", snapshot)
	}
	if snapshot.LastActivityDate == nil || *snapshot.LastActivityDate != "2024-01-10" {
		t.Errorf("expected lastActivityDate 2024-01-10, got %v", snapshot.LastActivityDate)
	}
}

func TestListAchievementsCoversFullCatalog(t *testing.T) {
	f := newFixture()
	f.counter.set(1)
	if _, err := f.svc.OnTaskCompleted(context.Background(), f.user, mustTime(t, "2024-01-10T09:00:00Z")); err != nil {
		t.Fatalf("OnTaskCompleted failed: %v", err)
	}

	statuses, err := f.svc.ListAchievements(context.Background(), f.user)
	if err != nil {
		t.Fatalf("ListAchievements failed: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("expected 3 catalog entries, got %d", len(statuses))
	}

	want := map[string]bool{"PrimerTarea": true, "DiezTareas": false, "Racha7Dias": false}
	for i, status := range statuses {
		if unlocked, ok := want[status.Type]; !ok || status.Unlocked != unlocked {
			t.Errorf("entry %d (%s): unlocked=%v, want %v", i, status.Type, status.Unlocked, want[status.Type])
		}
	}
	if statuses[0].Type != "PrimerTarea" || statuses[2].Type != "Racha7Dias" {
		t.Errorf("catalog order not preserved: %v", statuses)
	}
}
