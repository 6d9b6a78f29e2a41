package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/quizcraft/quizcraft-backend/internal/model"
	"github.com/quizcraft/quizcraft-backend/internal/service/servicetest"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type testEnv struct {
	mr          *miniredis.Miniredis
	rdb         *redis.Client
	db          *servicetest.DB
	quizzes     *QuizService
	leaderboard *LeaderboardService
	attempts    *AttemptService
	users       *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := servicetest.NewDB()
	log := zerolog.Nop()

	quizzes := NewQuizService(db.Quizzes(), rdb, time.Hour, log)
	leaderboard := NewLeaderboardService(db.Leaderboard(), rdb, 30*time.Second, log)
	return &testEnv{
		mr:          mr,
		rdb:         rdb,
		db:          db,
		quizzes:     quizzes,
		leaderboard: leaderboard,
		attempts:    NewAttemptService(db.Attempts(), db.Users(), quizzes, leaderboard, log),
		users:       NewUserService(db.Users(), db.Attempts(), quizzes),
	}
}

// createQuiz stores a two-question quiz worth 10 and 20 points.
// Question 0 expects option 1, question 1 expects option 2.
func (e *testEnv) createQuiz(t *testing.T, owner uuid.UUID, public bool, maxAttempts int) *model.Quiz {
	t.Helper()
	q := &model.Quiz{
		Title:       "Planets",
		Category:    model.CategoryScience,
		Difficulty:  model.DifficultyEasy,
		TimeLimit:   5,
		MaxAttempts: maxAttempts,
		IsPublic:    public,
		Tags:        []string{},
		CreatedBy:   owner,
		Questions: []model.Question{
			{Question: "Largest planet?", Options: []string{"Mars", "Jupiter", "Venus"}, CorrectAnswer: 1, Points: 10, Explanation: "Gas giant"},
			{Question: "Closest to the sun?", Options: []string{"Earth", "Venus", "Mercury"}, CorrectAnswer: 2, Points: 20},
		},
	}
	if err := e.quizzes.Create(context.Background(), q); err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return q
}

func intPtr(v int) *int { return &v }
