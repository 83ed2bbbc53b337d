package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tareahub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StreakStore persists one streak document per user in the "streaks"
// collection. The document is written as a whole, so an update either lands
// completely or not at all.
type StreakStore struct {
	collection *mongo.Collection
}

func NewStreakStore(database *Database) *StreakStore {
	return &StreakStore{collection: database.Collection("streaks")}
}

// Get returns the user's streak, or nil when no evaluation has run yet
func (s *StreakStore) Get(ctx context.Context, userID primitive.ObjectID) (*models.Streak, error) {
	var streak models.Streak
	err := s.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&streak)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch streak: %w", err)
	}
	return &streak, nil
}

// Save upserts the streak document keyed by userId
func (s *StreakStore) Save(ctx context.Context, streak *models.Streak) error {
	streak.UpdatedAt = time.Now()

	update := bson.M{"$set": bson.M{
		"daysConsecutive":    streak.DaysConsecutive,
		"maxDaysConsecutive": streak.MaxDaysConsecutive,
		"lastActivityDate":   streak.LastActivityDate,
		"updatedAt":          streak.UpdatedAt,
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := s.collection.UpdateOne(ctx, bson.M{"userId": streak.UserID}, update, opts); err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	return nil
}
