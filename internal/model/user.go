package model

import (
	"time"

	"github.com/google/uuid"
)

// User is an account owned by the external auth system. This service only
// maintains its counters; credentials and contact fields are never serialized.
type User struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"-"`
	PasswordHash   string    `json:"-"`
	DisplayName    string    `json:"display_name"`
	AvatarURL      string    `json:"avatar_url"`
	QuizzesCreated int       `json:"quizzes_created"`
	QuizzesTaken   int       `json:"quizzes_taken"`
	TotalScore     int       `json:"total_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserSummary is the creator reference embedded in quizzes.
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
}

// UpdateProfileRequest changes the caller's public profile. Omitted fields
// keep their current value; an empty string clears the field.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,max=100"`
	AvatarURL   *string `json:"avatar_url" binding:"omitempty,url,max=500"`
}
