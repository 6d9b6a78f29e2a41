package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/quizcraft/quizcraft-backend/internal/config"
	"github.com/quizcraft/quizcraft-backend/internal/model"
)

func TestStartAttemptHidesAnswerKey(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	taker := env.db.AddUser("taker")
	quiz := env.createQuiz(t, owner, true, 3)

	res, err := env.attempts.Start(ctx, quiz.ID, taker)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.AttemptID == uuid.Nil {
		t.Fatalf("expected attempt id")
	}
	if res.TimeLimit != 5 {
		t.Fatalf("expected time limit 5, got %d", res.TimeLimit)
	}
	if len(res.Quiz.Questions) != 2 || res.Quiz.Questions[1].Index != 1 {
		t.Fatalf("unexpected payload questions: %+v", res.Quiz.Questions)
	}

	attempt, err := env.db.Attempts().GetByID(ctx, res.AttemptID)
	if err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if attempt.TotalQuestions != 2 || attempt.Completed || len(attempt.Answers) != 0 {
		t.Fatalf("unexpected new attempt: %+v", attempt)
	}
}

func TestStartAttemptEnforcesLimit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	taker := env.db.AddUser("taker")
	quiz := env.createQuiz(t, owner, true, 2)

	for i := 0; i < 2; i++ {
		if _, err := env.attempts.Start(ctx, quiz.ID, taker); err != nil {
			t.Fatalf("start %d: %v", i+1, err)
		}
	}
	if _, err := env.attempts.Start(ctx, quiz.ID, taker); !errors.Is(err, ErrAttemptLimitExceeded) {
		t.Fatalf("expected ErrAttemptLimitExceeded, got %v", err)
	}
	if n := env.db.Attempts().Count(taker, quiz.ID); n != 2 {
		t.Fatalf("expected 2 stored attempts, got %d", n)
	}

	// The cap is per user.
	other := env.db.AddUser("other")
	if _, err := env.attempts.Start(ctx, quiz.ID, other); err != nil {
		t.Fatalf("start for other user: %v", err)
	}
}

func TestStartAttemptConcurrentNeverExceedsLimit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	taker := env.db.AddUser("taker")
	quiz := env.createQuiz(t, owner, true, 3)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.attempts.Start(ctx, quiz.ID, taker); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("expected 3 successful starts, got %d", succeeded)
	}
}

func TestStartAttemptVisibility(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	taker := env.db.AddUser("taker")
	quiz := env.createQuiz(t, owner, false, 3)

	if _, err := env.attempts.Start(ctx, quiz.ID, taker); !errors.Is(err, ErrQuizForbidden) {
		t.Fatalf("expected ErrQuizForbidden, got %v", err)
	}
	if _, err := env.attempts.Start(ctx, quiz.ID, owner); err != nil {
		t.Fatalf("owner should start private quiz: %v", err)
	}
	if _, err := env.attempts.Start(ctx, uuid.New(), taker); !errors.Is(err, ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestStartAttemptRejectsDeletedQuizWithStaleCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	taker := env.db.AddUser("taker")
	quiz := env.createQuiz(t, owner, true, 3)

	// A cache miss loaded the quiz, the owner deleted it, then the stale
	// copy was written back.
	loaded := env.db.Quiz(quiz.ID)
	if err := env.quizzes.Delete(ctx, quiz.ID, owner); err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if err := env.quizzes.WarmQuizCache(ctx, loaded); err != nil {
		t.Fatalf("warm stale quiz: %v", err)
	}

	if _, err := env.attempts.Start(ctx, quiz.ID, taker); !errors.Is(err, ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	if n := env.db.Attempts().Count(taker, quiz.ID); n != 0 {
		t.Fatalf("expected no attempts on deleted quiz, got %d", n)
	}
	if env.mr.Exists(config.CacheKey.QuizPayloadKey(quiz.ID.String())) {
		t.Fatalf("expected stale payload to be dropped")
	}
	if _, err := env.quizzes.GetPayload(ctx, quiz.ID); !errors.Is(err, ErrQuizNotFound) {
		t.Fatalf("expected deleted quiz to stay unretrievable, got %v", err)
	}
}

func TestSubmitAnswerRevealsAndReplaces(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	taker := env.db.AddUser("taker")
	quiz := env.createQuiz(t, owner, true, 3)

	started, err := env.attempts.Start(ctx, quiz.ID, taker)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := env.attempts.SubmitAnswer(ctx, quiz.ID, taker, model.SubmitAnswerRequest{
		AttemptID:      started.AttemptID,
		QuestionIndex:  intPtr(0),
		SelectedOption: intPtr(0),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.IsCorrect || res.CorrectAnswer != 1 || res.Explanation != "Gas giant" {
		t.Fatalf("unexpected result for wrong answer: %+v", res)
	}

	res, err = env.attempts.SubmitAnswer(ctx, quiz.ID, taker, model.SubmitAnswerRequest{
		AttemptID:      started.AttemptID,
		QuestionIndex:  intPtr(0),
		SelectedOption: intPtr(1),
		TimeTaken:      4,
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if !res.IsCorrect {
		t.Fatalf("expected corrected answer to be right")
	}

	attempt, err := env.db.Attempts().GetByID(ctx, started.AttemptID)
	if err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if len(attempt.Answers) != 1 {
		t.Fatalf("expected a single answer for question 0, got %d", len(attempt.Answers))
	}
	if a := attempt.Answers[0]; a.SelectedOption != 1 || !a.IsCorrect || a.TimeTaken != 4 {
		t.Fatalf("expected replaced answer, got %+v", a)
	}
	if attempt.CorrectAnswers != 1 {
		t.Fatalf("expected provisional correct count 1, got %d", attempt.CorrectAnswers)
	}
}

func TestSubmitAnswerRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	taker := env.db.AddUser("taker")
	quiz := env.createQuiz(t, owner, true, 3)

	started, err := env.attempts.Start(ctx, quiz.ID, taker)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	tests := []struct {
		name     string
		userID   uuid.UUID
		req      model.SubmitAnswerRequest
		expected error
	}{
		{
			name:     "question out of range",
			userID:   taker,
			req:      model.SubmitAnswerRequest{AttemptID: started.AttemptID, QuestionIndex: intPtr(2), SelectedOption: intPtr(0)},
			expected: ErrInvalidQuestion,
		},
		{
			name:     "option out of range",
			userID:   taker,
			req:      model.SubmitAnswerRequest{AttemptID: started.AttemptID, QuestionIndex: intPtr(1), SelectedOption: intPtr(3)},
			expected: ErrInvalidOption,
		},
		{
			name:     "unknown attempt",
			userID:   taker,
			req:      model.SubmitAnswerRequest{AttemptID: uuid.New(), QuestionIndex: intPtr(0), SelectedOption: intPtr(0)},
			expected: ErrAttemptNotFound,
		},
		{
			name:     "someone else's attempt",
			userID:   owner,
			req:      model.SubmitAnswerRequest{AttemptID: started.AttemptID, QuestionIndex: intPtr(0), SelectedOption: intPtr(0)},
			expected: ErrAttemptNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.attempts.SubmitAnswer(ctx, quiz.ID, tt.userID, tt.req); !errors.Is(err, tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestSubmitAnswerFallsBackWhenCacheEmpty(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	taker := env.db.AddUser("taker")
	quiz := env.createQuiz(t, owner, true, 3)

	started, err := env.attempts.Start(ctx, quiz.ID, taker)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	env.mr.FlushAll()

	res, err := env.attempts.SubmitAnswer(ctx, quiz.ID, taker, model.SubmitAnswerRequest{
		AttemptID:      started.AttemptID,
		QuestionIndex:  intPtr(1),
		SelectedOption: intPtr(2),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.IsCorrect {
		t.Fatalf("expected correct answer from reloaded key")
	}
	if !env.mr.Exists(config.CacheKey.QuizAnswerKey(quiz.ID.String())) {
		t.Fatalf("expected answer key to be re-warmed")
	}
}

func TestCompleteAttemptScoresOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	taker := env.db.AddUser("taker")
	quiz := env.createQuiz(t, owner, true, 3)

	started, err := env.attempts.Start(ctx, quiz.ID, taker)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	answers := []struct{ question, option int }{{0, 1}, {1, 0}}
	for _, a := range answers {
		if _, err := env.attempts.SubmitAnswer(ctx, quiz.ID, taker, model.SubmitAnswerRequest{
			AttemptID:      started.AttemptID,
			QuestionIndex:  intPtr(a.question),
			SelectedOption: intPtr(a.option),
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	staleKey := config.CacheKey.LeaderboardKey("", "all")
	if err := env.mr.Set(staleKey, "[]"); err != nil {
		t.Fatalf("seed leaderboard cache: %v", err)
	}

	req := model.CompleteAttemptRequest{AttemptID: started.AttemptID, TimeSpent: 90}
	attempt, err := env.attempts.Complete(ctx, quiz.ID, taker, req)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !attempt.Completed || attempt.CompletedAt == nil {
		t.Fatalf("expected completed attempt, got %+v", attempt)
	}
	if attempt.Score != 33 || attempt.CorrectAnswers != 1 || attempt.TimeSpent != 90 {
		t.Fatalf("expected score 33 with 1 correct, got score=%d correct=%d time=%d",
			attempt.Score, attempt.CorrectAnswers, attempt.TimeSpent)
	}

	if _, err := env.attempts.Complete(ctx, quiz.ID, taker, req); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("expected second completion to fail with ErrAttemptNotFound, got %v", err)
	}
	if _, err := env.attempts.SubmitAnswer(ctx, quiz.ID, taker, model.SubmitAnswerRequest{
		AttemptID:      started.AttemptID,
		QuestionIndex:  intPtr(1),
		SelectedOption: intPtr(2),
	}); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("expected answer after completion to fail, got %v", err)
	}

	user := env.db.User(taker)
	if user.QuizzesTaken != 1 || user.TotalScore != 33 {
		t.Fatalf("expected counters taken=1 score=33, got taken=%d score=%d", user.QuizzesTaken, user.TotalScore)
	}
	stored := env.db.Quiz(quiz.ID)
	if stored.Stats.TotalAttempts != 1 || stored.Stats.BestScore != 33 || stored.Stats.AverageScore != 33 {
		t.Fatalf("unexpected quiz stats: %+v", stored.Stats)
	}
	if env.mr.Exists(staleKey) {
		t.Fatalf("expected leaderboard cache to be invalidated")
	}
}

func TestCompleteAttemptQueuesRecomputeOnStatsFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	taker := env.db.AddUser("taker")
	quiz := env.createQuiz(t, owner, true, 3)

	started, err := env.attempts.Start(ctx, quiz.ID, taker)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	env.db.StatsErr = errors.New("connection reset")
	if _, err := env.attempts.Complete(ctx, quiz.ID, taker, model.CompleteAttemptRequest{AttemptID: started.AttemptID}); err != nil {
		t.Fatalf("complete should succeed despite stats failure: %v", err)
	}

	queued, err := env.mr.List(config.WorkerKey.RecomputeStatsQueue)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	if len(queued) != 1 || queued[0] != quiz.ID.String() {
		t.Fatalf("expected quiz to be queued for recompute, got %v", queued)
	}
}
