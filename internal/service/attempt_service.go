package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizcraft/quizcraft-backend/internal/model"
	"github.com/quizcraft/quizcraft-backend/internal/repository"
	"github.com/rs/zerolog"
)

// AttemptService runs the attempt lifecycle: start, answer, complete.
type AttemptService struct {
	attemptRepo AttemptStore
	userRepo    UserStore
	quizzes     *QuizService
	leaderboard *LeaderboardService
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo AttemptStore,
	userRepo UserStore,
	quizzes *QuizService,
	leaderboard *LeaderboardService,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		userRepo:    userRepo,
		quizzes:     quizzes,
		leaderboard: leaderboard,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start opens a new attempt for userID, enforcing visibility and the quiz's
// attempt cap.
func (s *AttemptService) Start(ctx context.Context, quizID, userID uuid.UUID) (*model.StartAttemptResult, error) {
	payload, err := s.quizzes.GetPayload(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !payload.IsPublic && payload.CreatedBy != userID {
		return nil, ErrQuizForbidden
	}

	attempt := &model.QuizAttempt{
		UserID:         userID,
		QuizID:         quizID,
		TotalQuestions: len(payload.Questions),
	}
	if err := s.attemptRepo.CreateWithinLimit(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrAttemptLimitReached) {
			return nil, ErrAttemptLimitExceeded
		}
		if errors.Is(err, pgx.ErrNoRows) {
			s.quizzes.dropCache(ctx, quizID)
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.log.Debug().
		Str("attempt_id", attempt.ID.String()).
		Str("quiz_id", quizID.String()).
		Str("user_id", userID.String()).
		Msg("Attempt started")

	return &model.StartAttemptResult{
		AttemptID: attempt.ID,
		Quiz:      payload,
		TimeLimit: payload.TimeLimit,
	}, nil
}

// SubmitAnswer grades one answer and records it on the attempt, replacing any
// earlier answer to the same question.
func (s *AttemptService) SubmitAnswer(ctx context.Context, quizID, userID uuid.UUID, req model.SubmitAnswerRequest) (*model.AnswerResult, error) {
	if req.QuestionIndex == nil || req.SelectedOption == nil {
		return nil, ErrInvalidQuestion
	}
	questionIndex, selected := *req.QuestionIndex, *req.SelectedOption

	if _, err := s.attemptRepo.FindActive(ctx, req.AttemptID, userID, quizID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("find attempt: %w", err)
	}

	key, err := s.quizzes.GetAnswerKey(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if questionIndex < 0 || questionIndex >= len(key) {
		return nil, ErrInvalidQuestion
	}
	entry := key[questionIndex]
	if selected < 0 || selected >= entry.OptionCount {
		return nil, ErrInvalidOption
	}

	answer := model.Answer{
		QuestionIndex:  questionIndex,
		SelectedOption: selected,
		IsCorrect:      selected == entry.CorrectAnswer,
		TimeTaken:      req.TimeTaken,
	}
	if err := s.attemptRepo.UpsertAnswer(ctx, req.AttemptID, userID, quizID, answer); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("record answer: %w", err)
	}

	return &model.AnswerResult{
		IsCorrect:     answer.IsCorrect,
		CorrectAnswer: entry.CorrectAnswer,
		Explanation:   entry.Explanation,
	}, nil
}

// Complete finalizes an attempt exactly once, computes its points-weighted
// percentage, and updates quiz stats and user counters.
func (s *AttemptService) Complete(ctx context.Context, quizID, userID uuid.UUID, req model.CompleteAttemptRequest) (*model.QuizAttempt, error) {
	key, err := s.quizzes.GetAnswerKey(ctx, quizID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.attemptRepo.Complete(ctx, req.AttemptID, userID, quizID, req.TimeSpent,
		func(answers []model.Answer) (int, int) {
			return Grade(key, answers)
		},
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("complete attempt: %w", err)
	}
	score, correct := attempt.Score, attempt.CorrectAnswers

	s.quizzes.RecordCompletion(ctx, quizID)

	if err := s.userRepo.RecordCompletion(ctx, userID, score); err != nil {
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to update user counters")
	}

	s.leaderboard.Invalidate(ctx)

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("quiz_id", quizID.String()).
		Int("score", score).
		Int("correct", correct).
		Int("total", len(key)).
		Msg("Attempt completed")

	return attempt, nil
}
