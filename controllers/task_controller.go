package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"tareahub/db"
	"tareahub/internal/completion"
	"tareahub/models"
	"tareahub/structs"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskController handles task CRUD. It is the component that observes
// completion transitions and emits the corresponding events; it never touches
// streaks or achievements itself.
type TaskController struct {
	tasks     *db.TaskStore
	publisher completion.Publisher
}

func NewTaskController(tasks *db.TaskStore, publisher completion.Publisher) *TaskController {
	return &TaskController{tasks: tasks, publisher: publisher}
}

func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return primitive.NilObjectID, false
	}
	return userID.(primitive.ObjectID), true
}

// ListTasks returns the user's tasks, newest first
func (t *TaskController) ListTasks(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tasks, err := t.tasks.List(ctx, userID)
	if err != nil {
		log.Printf("Error fetching tasks: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tasks"})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// GetTask returns one task owned by the user
func (t *TaskController) GetTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	taskID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task id"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	task, err := t.tasks.Get(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		log.Printf("Error fetching task: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch task"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// CreateTask creates a task for the user
func (t *TaskController) CreateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request structs.CreateTaskRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	task := models.Task{
		UserID:      userID,
		Title:       request.Title,
		Description: request.Description,
		DueDate:     request.DueDate,
		Tag:         request.Tag,
	}
	if err := t.tasks.Create(ctx, &task); err != nil {
		log.Printf("Error creating task: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}
	c.JSON(http.StatusCreated, task)
}

// UpdateTask applies a partial update. When the completed flag flips from
// false to true it stamps completedAt, persists the task, and only then
// publishes the completion event; a failing evaluation never fails the
// request.
func (t *TaskController) UpdateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	taskID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task id"})
		return
	}

	var request structs.UpdateTaskRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	task, err := t.tasks.Get(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		log.Printf("Error fetching task: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}

	if request.Title != nil {
		task.Title = *request.Title
	}
	if request.Description != nil {
		task.Description = *request.Description
	}
	if request.DueDate != nil {
		task.DueDate = request.DueDate
	}
	if request.Tag != nil {
		task.Tag = *request.Tag
	}

	completedNow := false
	now := time.Now()
	if request.Completed != nil {
		wasCompleted := task.Completed
		task.Completed = *request.Completed

		if !wasCompleted && task.Completed {
			task.CompletedAt = &now
			completedNow = true
		} else if wasCompleted && !task.Completed {
			task.CompletedAt = nil
		}
	}

	if err := t.tasks.Update(ctx, task); err != nil {
		log.Printf("Error updating task: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}

	if completedNow {
		ev := completion.Event{
			UserID:      userID.Hex(),
			TaskID:      task.ID.Hex(),
			CompletedAt: now.Unix(),
		}
		if err := t.publisher.Publish(ctx, ev); err != nil {
			// The task update already succeeded; gamification bookkeeping is
			// reconciled on retry or redelivery
			log.Printf("Error publishing completion event for task %s: %v", task.ID.Hex(), err)
		}
	}

	c.JSON(http.StatusOK, task)
}

// DeleteTask removes a task owned by the user
func (t *TaskController) DeleteTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	taskID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task id"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.tasks.Delete(ctx, taskID, userID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		log.Printf("Error deleting task: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		return
	}
	c.Status(http.StatusNoContent)
}
