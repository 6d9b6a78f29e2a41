package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is one recorded response inside an attempt. At most one per question index.
type Answer struct {
	QuestionIndex  int       `json:"question_index"`
	SelectedOption int       `json:"selected_option"`
	IsCorrect      bool      `json:"is_correct"`
	TimeTaken      int       `json:"time_taken"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// QuizAttempt is a single user's run through one quiz.
// Score and CorrectAnswers are provisional until Completed is true.
type QuizAttempt struct {
	ID             uuid.UUID    `json:"id"`
	UserID         uuid.UUID    `json:"user_id"`
	QuizID         uuid.UUID    `json:"quiz_id"`
	Quiz           *QuizSummary `json:"quiz,omitempty"`
	Answers        []Answer     `json:"answers"`
	Score          int          `json:"score"`
	TotalQuestions int          `json:"total_questions"`
	CorrectAnswers int          `json:"correct_answers"`
	TimeSpent      int          `json:"time_spent"`
	Completed      bool         `json:"completed"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// SubmitAnswerRequest is the payload for answering one question.
type SubmitAnswerRequest struct {
	AttemptID      uuid.UUID `json:"attempt_id" binding:"required"`
	QuestionIndex  *int      `json:"question_index" binding:"required,min=0"`
	SelectedOption *int      `json:"selected_option" binding:"required,min=0"`
	TimeTaken      int       `json:"time_taken" binding:"omitempty,min=0,max=86400"`
}

// CompleteAttemptRequest is the payload for finalizing an attempt.
type CompleteAttemptRequest struct {
	AttemptID uuid.UUID `json:"attempt_id" binding:"required"`
	TimeSpent int       `json:"time_spent" binding:"omitempty,min=0,max=86400"`
}

// StartAttemptResult is returned when an attempt begins.
type StartAttemptResult struct {
	AttemptID uuid.UUID    `json:"attempt_id"`
	Quiz      *QuizPayload `json:"quiz"`
	TimeLimit int          `json:"time_limit"`
}

// AnswerResult reveals the key for the single question just answered.
type AnswerResult struct {
	IsCorrect     bool   `json:"is_correct"`
	CorrectAnswer int    `json:"correct_answer"`
	Explanation   string `json:"explanation,omitempty"`
}

// AttemptDetail is an attempt together with the quiz it was taken against.
// Quiz is a *Quiz once the attempt is completed, otherwise a *QuizPayload.
// It is nil when the quiz has since been deleted.
type AttemptDetail struct {
	Attempt *QuizAttempt `json:"attempt"`
	Quiz    interface{}  `json:"quiz"`
}
