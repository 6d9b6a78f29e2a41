package model

import (
	"time"

	"github.com/google/uuid"
)

// Category enumerates the quiz catalog sections.
type Category string

const (
	CategoryGeneralKnowledge Category = "General Knowledge"
	CategoryScience          Category = "Science"
	CategoryHistory          Category = "History"
	CategoryGeography        Category = "Geography"
	CategoryMathematics      Category = "Mathematics"
	CategoryProgramming      Category = "Programming"
	CategorySports           Category = "Sports"
	CategoryEntertainment    Category = "Entertainment"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryGeneralKnowledge,
	CategoryScience,
	CategoryHistory,
	CategoryGeography,
	CategoryMathematics,
	CategoryProgramming,
	CategorySports,
	CategoryEntertainment,
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Difficulty enumerates quiz difficulty levels.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

const (
	DefaultQuestionPoints = 10
	DefaultTimeLimit      = 10 // minutes
	DefaultMaxAttempts    = 3
)

// QuizStats are the running aggregates over completed attempts.
type QuizStats struct {
	TotalAttempts int     `json:"total_attempts"`
	AverageScore  float64 `json:"average_score"`
	BestScore     int     `json:"best_score"`
}

// Quiz represents a quiz definition with its embedded questions.
type Quiz struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    Category     `json:"category"`
	Difficulty  Difficulty   `json:"difficulty"`
	Questions   []Question   `json:"questions"`
	TimeLimit   int          `json:"time_limit"`
	MaxAttempts int          `json:"max_attempts"`
	IsPublic    bool         `json:"is_public"`
	Tags        []string     `json:"tags"`
	CreatedBy   uuid.UUID    `json:"created_by"`
	Creator     *UserSummary `json:"creator,omitempty"`
	Stats       QuizStats    `json:"stats"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsOwner reports whether userID created the quiz.
func (q *Quiz) IsOwner(userID uuid.UUID) bool {
	return q.CreatedBy == userID
}

// VisibleTo reports whether userID may view or attempt the quiz.
func (q *Quiz) VisibleTo(userID uuid.UUID) bool {
	return q.IsPublic || q.IsOwner(userID)
}

// TotalPoints sums the point value of every question.
func (q *Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.PointValue()
	}
	return total
}

// Payload builds the taker-facing view with the answer key stripped.
func (q *Quiz) Payload() *QuizPayload {
	questions := make([]QuestionForTaker, len(q.Questions))
	for i, question := range q.Questions {
		questions[i] = QuestionForTaker{
			Index:    i,
			Question: question.Question,
			Options:  question.Options,
			Points:   question.PointValue(),
		}
	}
	return &QuizPayload{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Category:    q.Category,
		Difficulty:  q.Difficulty,
		TimeLimit:   q.TimeLimit,
		MaxAttempts: q.MaxAttempts,
		IsPublic:    q.IsPublic,
		Tags:        q.Tags,
		CreatedBy:   q.CreatedBy,
		Creator:     q.Creator,
		Stats:       q.Stats,
		Questions:   questions,
	}
}

// AnswerKey extracts the grading data for every question.
func (q *Quiz) AnswerKey() AnswerKey {
	key := make(AnswerKey, len(q.Questions))
	for i, question := range q.Questions {
		key[i] = AnswerKeyEntry{
			CorrectAnswer: question.CorrectAnswer,
			Points:        question.PointValue(),
			OptionCount:   len(question.Options),
			Explanation:   question.Explanation,
		}
	}
	return key
}

// QuizPayload is the Redis-cached quiz sent to takers (no correct answers).
type QuizPayload struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Category    Category           `json:"category"`
	Difficulty  Difficulty         `json:"difficulty"`
	TimeLimit   int                `json:"time_limit"`
	MaxAttempts int                `json:"max_attempts"`
	IsPublic    bool               `json:"is_public"`
	Tags        []string           `json:"tags"`
	CreatedBy   uuid.UUID          `json:"created_by"`
	Creator     *UserSummary       `json:"creator,omitempty"`
	Stats       QuizStats          `json:"stats"`
	Questions   []QuestionForTaker `json:"questions"`
}

// QuizSummary is the short quiz reference embedded in attempt listings.
type QuizSummary struct {
	ID         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	Category   Category   `json:"category"`
	Difficulty Difficulty `json:"difficulty"`
}

// CreateQuizRequest is the payload for creating a new quiz.
type CreateQuizRequest struct {
	Title       string          `json:"title" binding:"required,min=1,max=100"`
	Description string          `json:"description" binding:"omitempty,max=500"`
	Category    string          `json:"category" binding:"required,quiz_category"`
	Difficulty  string          `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Questions   []QuestionInput `json:"questions" binding:"required,min=1,max=100,dive"`
	TimeLimit   int             `json:"time_limit" binding:"omitempty,min=1,max=240"`
	MaxAttempts int             `json:"max_attempts" binding:"omitempty,min=1,max=100"`
	IsPublic    *bool           `json:"is_public"`
	Tags        []string        `json:"tags" binding:"omitempty,max=10,dive,min=1,max=30"`
}

// ToQuiz converts the request into a Quiz owned by createdBy, applying defaults.
func (r *CreateQuizRequest) ToQuiz(createdBy uuid.UUID) *Quiz {
	q := &Quiz{
		Title:       r.Title,
		Description: r.Description,
		Category:    Category(r.Category),
		Difficulty:  Difficulty(r.Difficulty),
		TimeLimit:   r.TimeLimit,
		MaxAttempts: r.MaxAttempts,
		IsPublic:    true,
		Tags:        r.Tags,
		CreatedBy:   createdBy,
		Questions:   make([]Question, len(r.Questions)),
	}
	if q.Difficulty == "" {
		q.Difficulty = DifficultyMedium
	}
	if q.TimeLimit == 0 {
		q.TimeLimit = DefaultTimeLimit
	}
	if q.MaxAttempts == 0 {
		q.MaxAttempts = DefaultMaxAttempts
	}
	if r.IsPublic != nil {
		q.IsPublic = *r.IsPublic
	}
	if q.Tags == nil {
		q.Tags = []string{}
	}
	for i, in := range r.Questions {
		q.Questions[i] = in.ToQuestion()
	}
	return q
}

// ListQuizzesQuery holds the catalog listing filters. MyQuizzesAlias accepts
// the camelCase spelling of my_quizzes.
type ListQuizzesQuery struct {
	Category       string `form:"category" binding:"omitempty,quiz_category"`
	Difficulty     string `form:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Search         string `form:"search" binding:"omitempty,max=100"`
	Page           int    `form:"page" binding:"omitempty,min=1"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=100"`
	MyQuizzes      bool   `form:"my_quizzes"`
	MyQuizzesAlias bool   `form:"myQuizzes"`
}

// OwnOnly reports whether the caller asked for their own quizzes.
func (q ListQuizzesQuery) OwnOnly() bool {
	return q.MyQuizzes || q.MyQuizzesAlias
}

// QuizFilter is the repository-level form of ListQuizzesQuery.
type QuizFilter struct {
	Category   Category
	Difficulty Difficulty
	Search     string
	// CreatedBy restricts to one creator regardless of visibility; nil means public only.
	CreatedBy *uuid.UUID
}
