package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/quizcraft/quizcraft-backend/internal/config"
	"github.com/quizcraft/quizcraft-backend/internal/model"
)

func TestGetQuizVisibility(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	stranger := env.db.AddUser("stranger")
	private := env.createQuiz(t, owner, false, 3)

	if _, err := env.quizzes.Get(ctx, private.ID, stranger); !errors.Is(err, ErrQuizForbidden) {
		t.Fatalf("expected ErrQuizForbidden, got %v", err)
	}
	got, err := env.quizzes.Get(ctx, private.ID, owner)
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if got.Creator == nil || got.Creator.Username != "owner" {
		t.Fatalf("expected creator summary, got %+v", got.Creator)
	}
	if _, err := env.quizzes.Get(ctx, uuid.New(), owner); !errors.Is(err, ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestCreateQuizWarmsCache(t *testing.T) {
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	quiz := env.createQuiz(t, owner, true, 3)

	raw, err := env.mr.Get(config.CacheKey.QuizPayloadKey(quiz.ID.String()))
	if err != nil {
		t.Fatalf("payload not cached: %v", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	questions, _ := payload["questions"].([]interface{})
	if len(questions) != 2 {
		t.Fatalf("expected 2 cached questions, got %d", len(questions))
	}
	for _, q := range questions {
		fields := q.(map[string]interface{})
		if _, leaked := fields["correct_answer"]; leaked {
			t.Fatalf("payload leaked correct_answer: %v", fields)
		}
	}

	keys, err := env.mr.HKeys(config.CacheKey.QuizAnswerKey(quiz.ID.String()))
	if err != nil {
		t.Fatalf("answer key not cached: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 answer key fields, got %v", keys)
	}
	if env.db.User(owner).QuizzesCreated != 1 {
		t.Fatalf("expected quizzes_created to be incremented")
	}
}

func TestGetAnswerKeyPrefersCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	quiz := env.createQuiz(t, owner, true, 3)

	key, err := env.quizzes.GetAnswerKey(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get answer key: %v", err)
	}
	if len(key) != 2 || key[1].CorrectAnswer != 2 || key[1].Points != 20 || key[0].OptionCount != 3 {
		t.Fatalf("unexpected answer key: %+v", key)
	}

	// A partial hash is a miss and gets rebuilt from the store.
	env.mr.HDel(config.CacheKey.QuizAnswerKey(quiz.ID.String()), "0")
	key, err = env.quizzes.GetAnswerKey(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get answer key after eviction: %v", err)
	}
	if len(key) != 2 || key[0].CorrectAnswer != 1 {
		t.Fatalf("unexpected rebuilt answer key: %+v", key)
	}
}

func TestDecodeAnswerKey(t *testing.T) {
	if _, ok := decodeAnswerKey(nil); ok {
		t.Fatalf("expected empty hash to be a miss")
	}
	if _, ok := decodeAnswerKey(map[string]string{"0": `{"c":1,"p":10,"o":2}`, "2": `{"c":0,"p":10,"o":2}`}); ok {
		t.Fatalf("expected gap to be a miss")
	}
	if _, ok := decodeAnswerKey(map[string]string{"0": `not json`}); ok {
		t.Fatalf("expected malformed entry to be a miss")
	}
	key, ok := decodeAnswerKey(map[string]string{"1": `{"c":0,"p":5,"o":4}`, "0": `{"c":3,"p":10,"o":4,"e":"why"}`})
	if !ok {
		t.Fatalf("expected contiguous hash to decode")
	}
	if key[0].CorrectAnswer != 3 || key[0].Explanation != "why" || key[1].Points != 5 {
		t.Fatalf("unexpected decoded key: %+v", key)
	}
}

func TestGetPayloadFallsBackOnMiss(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	quiz := env.createQuiz(t, owner, true, 3)

	env.mr.FlushAll()

	payload, err := env.quizzes.GetPayload(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get payload: %v", err)
	}
	if payload.Title != "Planets" || len(payload.Questions) != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if !env.mr.Exists(config.CacheKey.QuizPayloadKey(quiz.ID.String())) {
		t.Fatalf("expected payload to be re-warmed")
	}
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	quiz := env.createQuiz(t, owner, true, 3)

	env.mr.FlushAll()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := env.quizzes.GetAnswerKey(ctx, quiz.ID)
			if err == nil && len(key) != 2 {
				err = errors.New("short answer key")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent load: %v", err)
		}
	}
	if !env.mr.Exists(config.CacheKey.QuizAnswerKey(quiz.ID.String())) {
		t.Fatalf("expected answer key to be re-warmed")
	}
}

func TestListQuizzesFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	viewer := env.db.AddUser("viewer")

	for i := 0; i < 3; i++ {
		env.createQuiz(t, owner, true, 3)
	}
	env.createQuiz(t, owner, false, 3)

	quizzes, page, err := env.quizzes.List(ctx, model.ListQuizzesQuery{Page: 1, Limit: 2}, viewer)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(quizzes) != 2 || page.TotalItems != 3 || page.TotalPages != 2 {
		t.Fatalf("expected 2 of 3 public quizzes over 2 pages, got %d items page=%+v", len(quizzes), page)
	}
	if !quizzes[0].CreatedAt.After(quizzes[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}

	quizzes, _, err = env.quizzes.List(ctx, model.ListQuizzesQuery{Category: string(model.CategoryHistory)}, viewer)
	if err != nil {
		t.Fatalf("list by category: %v", err)
	}
	if len(quizzes) != 0 {
		t.Fatalf("expected no history quizzes, got %d", len(quizzes))
	}

	mine, page, err := env.quizzes.ListByCreator(ctx, owner, 1, 10)
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 4 || page.TotalItems != 4 {
		t.Fatalf("expected owner to see all 4 quizzes, got %d", len(mine))
	}
}

func TestDeleteQuizOwnerOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	stranger := env.db.AddUser("stranger")
	quiz := env.createQuiz(t, owner, true, 3)

	if err := env.quizzes.Delete(ctx, quiz.ID, stranger); !errors.Is(err, ErrNotQuizOwner) {
		t.Fatalf("expected ErrNotQuizOwner, got %v", err)
	}
	if err := env.quizzes.Delete(ctx, quiz.ID, owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if env.mr.Exists(config.CacheKey.QuizPayloadKey(quiz.ID.String())) ||
		env.mr.Exists(config.CacheKey.QuizAnswerKey(quiz.ID.String())) {
		t.Fatalf("expected cache entries to be dropped")
	}
	if _, err := env.quizzes.Get(ctx, quiz.ID, owner); !errors.Is(err, ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound after delete, got %v", err)
	}
	if err := env.quizzes.Delete(ctx, quiz.ID, owner); !errors.Is(err, ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound on second delete, got %v", err)
	}
	if env.db.User(owner).QuizzesCreated != 0 {
		t.Fatalf("expected quizzes_created to drop back to 0")
	}
}

func TestRecomputeStatsFromAttempts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	taker := env.db.AddUser("taker")
	quiz := env.createQuiz(t, owner, true, 3)

	now := env.db.Now()
	env.db.AddCompletedAttempt(taker, quiz.ID, 40, now)
	env.db.AddCompletedAttempt(taker, quiz.ID, 80, now)

	if err := env.quizzes.RecomputeStats(ctx, quiz.ID); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	stats := env.db.Quiz(quiz.ID).Stats
	if stats.TotalAttempts != 2 || stats.AverageScore != 60 || stats.BestScore != 80 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := env.quizzes.RecomputeStats(ctx, uuid.New()); !errors.Is(err, ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestPrewarmPublicCaches(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.db.AddUser("owner")
	public := env.createQuiz(t, owner, true, 3)
	private := env.createQuiz(t, owner, false, 3)

	env.mr.FlushAll()
	if err := env.quizzes.PrewarmPublicCaches(ctx, 10); err != nil {
		t.Fatalf("prewarm: %v", err)
	}
	if !env.mr.Exists(config.CacheKey.QuizPayloadKey(public.ID.String())) {
		t.Fatalf("expected public quiz to be warmed")
	}
	if env.mr.Exists(config.CacheKey.QuizPayloadKey(private.ID.String())) {
		t.Fatalf("expected private quiz to stay cold")
	}
}
