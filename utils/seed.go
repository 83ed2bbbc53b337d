package utils

import (
	"context"
	"log"

	"tareahub/db"
	"tareahub/models"
)

// SeedAchievements ensures the catalog definitions exist. Seeding is
// idempotent; a definition already present keeps its stored id and targets.
func SeedAchievements(ctx context.Context, store *db.AchievementStore) error {
	definitions := []models.Achievement{
		{Type: "PrimerTarea", Name: "Primera tarea", Description: "Completar tu primera tarea.", Category: models.CategoryTaskCount, Target: 1, Order: 1},
		{Type: "DiezTareas", Name: "Diez tareas", Description: "Completar 10 tareas.", Category: models.CategoryTaskCount, Target: 10, Order: 2},
		{Type: "Racha7Dias", Name: "Racha de 7 días", Description: "Mantener una racha de 7 días.", Category: models.CategoryStreak, Target: 7, Order: 3},
	}

	for _, def := range definitions {
		if err := store.EnsureDefinition(ctx, def); err != nil {
			return err
		}
	}
	log.Println("Achievement catalog verified")
	return nil
}
