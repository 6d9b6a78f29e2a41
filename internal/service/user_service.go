package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizcraft/quizcraft-backend/internal/model"
	"github.com/quizcraft/quizcraft-backend/internal/response"
)

// UserService serves the caller's profile and attempt history.
type UserService struct {
	userRepo    UserStore
	attemptRepo AttemptStore
	quizzes     *QuizService
}

// NewUserService creates a new UserService.
func NewUserService(userRepo UserStore, attemptRepo AttemptStore, quizzes *QuizService) *UserService {
	return &UserService{
		userRepo:    userRepo,
		attemptRepo: attemptRepo,
		quizzes:     quizzes,
	}
}

// Profile returns the user's record without credentials.
func (s *UserService) Profile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the user's display name and avatar. Surrounding
// whitespace is trimmed from both.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req model.UpdateProfileRequest) (*model.User, error) {
	user, err := s.userRepo.UpdateProfile(ctx, userID, trimmed(req.DisplayName), trimmed(req.AvatarURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

// ListAttempts returns one page of the user's attempts, latest completion first.
func (s *UserService) ListAttempts(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.QuizAttempt, *response.Pagination, error) {
	page, limit, offset := normalizePage(page, limit)

	attempts, total, err := s.attemptRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []model.QuizAttempt{}
	}
	return attempts, response.NewPagination(page, limit, total), nil
}

// GetAttempt returns one of the user's attempts with the quiz it was taken on.
// The full quiz, answer key included, is only attached once the attempt is completed.
func (s *UserService) GetAttempt(ctx context.Context, attemptID, userID uuid.UUID) (*model.AttemptDetail, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.UserID != userID {
		return nil, ErrAttemptForbidden
	}

	detail := &model.AttemptDetail{Attempt: attempt}
	if attempt.Completed {
		quiz, err := s.quizzes.load(ctx, attempt.QuizID)
		switch {
		case err == nil:
			detail.Quiz = quiz
		case !errors.Is(err, ErrQuizNotFound):
			return nil, err
		}
		return detail, nil
	}

	payload, err := s.quizzes.GetPayload(ctx, attempt.QuizID)
	switch {
	case err == nil:
		detail.Quiz = payload
	case !errors.Is(err, ErrQuizNotFound):
		return nil, err
	}
	return detail, nil
}
