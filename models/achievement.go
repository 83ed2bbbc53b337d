package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trigger categories for achievement definitions
const (
	CategoryTaskCount = "task_count" // target compared against total completed tasks
	CategoryStreak    = "streak"     // target compared against current streak length
)

// Achievement is a catalog definition. Definitions are seeded at startup and
// never edited afterwards; Order fixes the evaluation and listing order.
type Achievement struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Type        string             `bson:"type" json:"type"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`
	Target      int                `bson:"target" json:"target"`
	Order       int                `bson:"order" json:"order"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// UserAchievement is a ledger entry pairing a user with a granted definition.
// A unique index on (userId, achievementId) makes grants append-only and
// at-most-once.
type UserAchievement struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID        primitive.ObjectID `bson:"userId" json:"userId"`
	AchievementID primitive.ObjectID `bson:"achievementId" json:"achievementId"`
	EarnedAt      time.Time          `bson:"earnedAt" json:"earnedAt"`
}

// GamificationEvent is pushed to connected clients when streaks move or
// achievements unlock
type GamificationEvent struct {
	Type        string    `json:"type"` // "streak_updated", "achievement_unlocked"
	UserID      string    `json:"userId"`
	Achievement string    `json:"achievement,omitempty"`
	StreakDays  int       `json:"streakDays,omitempty"`
	MaxStreak   int       `json:"maxStreak,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
