package db

import (
	"context"
	"fmt"
	"time"

	"tareahub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AchievementStore covers both the read-only catalog ("achievements") and the
// per-user ledger ("user_achievements").
type AchievementStore struct {
	catalog *mongo.Collection
	ledger  *mongo.Collection
}

func NewAchievementStore(database *Database) *AchievementStore {
	return &AchievementStore{
		catalog: database.Collection("achievements"),
		ledger:  database.Collection("user_achievements"),
	}
}

// List returns every catalog definition in its seeded order
func (s *AchievementStore) List(ctx context.Context) ([]models.Achievement, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "order", Value: 1}})
	cursor, err := s.catalog.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch achievements: %w", err)
	}
	defer cursor.Close(ctx)

	var achievements []models.Achievement
	if err := cursor.All(ctx, &achievements); err != nil {
		return nil, fmt.Errorf("failed to decode achievements: %w", err)
	}
	return achievements, nil
}

// EnsureDefinition inserts a catalog definition if its type is not present
// yet. Existing definitions are left untouched so redeploys never change
// semantics for already-seeded achievements.
func (s *AchievementStore) EnsureDefinition(ctx context.Context, def models.Achievement) error {
	update := bson.M{"$setOnInsert": bson.M{
		"type":        def.Type,
		"name":        def.Name,
		"description": def.Description,
		"category":    def.Category,
		"target":      def.Target,
		"order":       def.Order,
		"createdAt":   time.Now(),
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := s.catalog.UpdateOne(ctx, bson.M{"type": def.Type}, update, opts); err != nil {
		return fmt.Errorf("failed to seed achievement %s: %w", def.Type, err)
	}
	return nil
}

// Grant appends a ledger entry for (userID, achievementID). It reports false
// when the pair was already granted; the unique index guards the at-most-once
// property even under concurrent calls.
func (s *AchievementStore) Grant(ctx context.Context, userID, achievementID primitive.ObjectID, at time.Time) (bool, error) {
	entry := models.UserAchievement{
		ID:            primitive.NewObjectID(),
		UserID:        userID,
		AchievementID: achievementID,
		EarnedAt:      at,
	}

	if _, err := s.ledger.InsertOne(ctx, entry); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to grant achievement: %w", err)
	}
	return true, nil
}

// UnlockedIDs returns the set of achievement ids already granted to the user
func (s *AchievementStore) UnlockedIDs(ctx context.Context, userID primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	cursor, err := s.ledger.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch granted achievements: %w", err)
	}
	defer cursor.Close(ctx)

	unlocked := make(map[primitive.ObjectID]bool)
	for cursor.Next(ctx) {
		var entry models.UserAchievement
		if err := cursor.Decode(&entry); err != nil {
			return nil, fmt.Errorf("failed to decode ledger entry: %w", err)
		}
		unlocked[entry.AchievementID] = true
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return unlocked, nil
}
