package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"tareahub/services"

	"github.com/gin-gonic/gin"
)

// GamificationController owns the read paths over streaks and achievements.
// Both are pure queries; all mutation happens through the completion event
// flow.
type GamificationController struct {
	gamification *services.GamificationService
}

func NewGamificationController(gamification *services.GamificationService) *GamificationController {
	return &GamificationController{gamification: gamification}
}

// GetStreak returns the current streak state for the streak display
func (g *GamificationController) GetStreak(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshot, err := g.gamification.GetStreakSnapshot(ctx, userID)
	if err != nil {
		log.Printf("Error fetching streak: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch streak"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetAchievements returns the full catalog with the user's unlock state
func (g *GamificationController) GetAchievements(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	achievements, err := g.gamification.ListAchievements(ctx, userID)
	if err != nil {
		log.Printf("Error fetching achievements: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch achievements"})
		return
	}
	c.JSON(http.StatusOK, achievements)
}
