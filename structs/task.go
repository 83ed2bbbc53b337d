package structs

import "time"

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Tag         string     `json:"tag"`
}

// UpdateTaskRequest carries partial updates; nil fields keep the stored value
type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Tag         *string    `json:"tag"`
	Completed   *bool      `json:"completed"`
}
