package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"tareahub/db"
	"tareahub/services"

	"github.com/gin-gonic/gin"
)

// ProfileController serves the profile screen: identity plus the streak
// snapshot shown next to it
type ProfileController struct {
	users        *db.UserStore
	gamification *services.GamificationService
}

func NewProfileController(users *db.UserStore, gamification *services.GamificationService) *ProfileController {
	return &ProfileController{users: users, gamification: gamification}
}

// GetProfile retrieves and returns the authenticated user's profile data
func (p *ProfileController) GetProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := p.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		log.Printf("Error fetching profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	snapshot, err := p.gamification.GetStreakSnapshot(ctx, userID)
	if err != nil {
		log.Printf("Error fetching streak for profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID.Hex(),
		"name":      user.Name,
		"email":     user.Email,
		"createdAt": user.CreatedAt,
		"streak":    snapshot,
	})
}
