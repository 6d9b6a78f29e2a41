package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quizcraft/quizcraft-backend/internal/model"
	"github.com/quizcraft/quizcraft-backend/internal/repository"
)

// Domain errors. Handlers map these to response codes with errors.Is.
var (
	ErrQuizNotFound         = errors.New("quiz not found")
	ErrQuizForbidden        = errors.New("quiz is not accessible to this user")
	ErrNotQuizOwner         = errors.New("not the quiz creator")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrAttemptForbidden     = errors.New("attempt belongs to another user")
	ErrAttemptLimitExceeded = errors.New("maximum attempts reached")
	ErrInvalidQuestion      = errors.New("question index out of range")
	ErrInvalidOption        = errors.New("option index out of range")
	ErrInvalidTimeframe     = errors.New("invalid timeframe")
	ErrUserNotFound         = errors.New("user not found")
)

// QuizStore is the persistence the quiz catalog needs.
type QuizStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
	Create(ctx context.Context, q *model.Quiz) error
	List(ctx context.Context, filter model.QuizFilter, limit, offset int) ([]model.Quiz, int, error)
	ListRecentPublic(ctx context.Context, limit int) ([]model.Quiz, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	RefreshStats(ctx context.Context, quizID uuid.UUID) (*model.QuizStats, error)
	RecomputeStats(ctx context.Context, quizID uuid.UUID) (*model.QuizStats, error)
}

// AttemptStore is the persistence the attempt engine needs.
type AttemptStore interface {
	CreateWithinLimit(ctx context.Context, a *model.QuizAttempt) error
	FindActive(ctx context.Context, attemptID, userID, quizID uuid.UUID) (*model.QuizAttempt, error)
	UpsertAnswer(ctx context.Context, attemptID, userID, quizID uuid.UUID, ans model.Answer) error
	Complete(ctx context.Context, attemptID, userID, quizID uuid.UUID, timeSpent int, grade repository.GradeFunc) (*model.QuizAttempt, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.QuizAttempt, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.QuizAttempt, int, error)
}

// UserStore is the persistence for user counters and profiles.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	RecordCompletion(ctx context.Context, userID uuid.UUID, score int) error
	UpdateProfile(ctx context.Context, id uuid.UUID, displayName, avatarURL *string) (*model.User, error)
}

// LeaderboardStore aggregates completed attempts.
type LeaderboardStore interface {
	Top(ctx context.Context, category string, since *time.Time, limit int) ([]model.LeaderboardEntry, error)
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// normalizePage clamps page/limit and returns the row offset.
func normalizePage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, (page - 1) * limit
}
