package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizcraft/quizcraft-backend/internal/config"
	"github.com/quizcraft/quizcraft-backend/internal/model"
	"github.com/quizcraft/quizcraft-backend/internal/response"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// QuizService handles the quiz catalog and its Redis read-through cache.
type QuizService struct {
	quizRepo QuizStore
	rdb      *redis.Client
	cacheTTL time.Duration
	log      zerolog.Logger
	warming  singleflight.Group
}

// NewQuizService creates a new QuizService.
func NewQuizService(quizRepo QuizStore, rdb *redis.Client, cacheTTL time.Duration, log zerolog.Logger) *QuizService {
	return &QuizService{
		quizRepo: quizRepo,
		rdb:      rdb,
		cacheTTL: cacheTTL,
		log:      log.With().Str("component", "quiz_service").Logger(),
	}
}

// Create stores a new quiz and warms its cache.
func (s *QuizService) Create(ctx context.Context, quiz *model.Quiz) error {
	if err := s.quizRepo.Create(ctx, quiz); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	if err := s.WarmQuizCache(ctx, quiz); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", quiz.ID.String()).Msg("Failed to warm new quiz")
	}
	return nil
}

// Get returns a quiz the viewer is allowed to see.
func (s *QuizService) Get(ctx context.Context, id, viewerID uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !quiz.VisibleTo(viewerID) {
		return nil, ErrQuizForbidden
	}
	return quiz, nil
}

// List returns one page of the catalog. With mine set only the viewer's own
// quizzes are listed, otherwise only public ones.
func (s *QuizService) List(ctx context.Context, q model.ListQuizzesQuery, viewerID uuid.UUID) ([]model.Quiz, *response.Pagination, error) {
	page, limit, offset := normalizePage(q.Page, q.Limit)

	filter := model.QuizFilter{
		Category:   model.Category(q.Category),
		Difficulty: model.Difficulty(q.Difficulty),
		Search:     q.Search,
	}
	if q.OwnOnly() {
		filter.CreatedBy = &viewerID
	}

	quizzes, total, err := s.quizRepo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("list quizzes: %w", err)
	}
	if quizzes == nil {
		quizzes = []model.Quiz{}
	}
	return quizzes, response.NewPagination(page, limit, total), nil
}

// ListByCreator returns one page of the quizzes userID created.
func (s *QuizService) ListByCreator(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Quiz, *response.Pagination, error) {
	return s.List(ctx, model.ListQuizzesQuery{Page: page, Limit: limit, MyQuizzes: true}, userID)
}

// Delete removes a quiz owned by userID and drops its cache entries.
func (s *QuizService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	quiz, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !quiz.IsOwner(userID) {
		return ErrNotQuizOwner
	}

	if err := s.quizRepo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("delete quiz: %w", err)
	}

	s.dropCache(ctx, id)
	return nil
}

// dropCache removes a quiz's payload and answer key from Redis.
func (s *QuizService) dropCache(ctx context.Context, id uuid.UUID) {
	if err := s.rdb.Del(ctx,
		config.CacheKey.QuizPayloadKey(id.String()),
		config.CacheKey.QuizAnswerKey(id.String()),
	).Err(); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Failed to drop quiz cache")
	}
}

// WarmQuizCache writes a quiz's taker payload and answer key into Redis.
func (s *QuizService) WarmQuizCache(ctx context.Context, quiz *model.Quiz) error {
	payloadJSON, err := json.Marshal(quiz.Payload())
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	key := quiz.AnswerKey()
	fields := make(map[string]interface{}, len(key))
	for i, entry := range key {
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal answer key: %w", err)
		}
		fields[strconv.Itoa(i)] = raw
	}

	answerKey := config.CacheKey.QuizAnswerKey(quiz.ID.String())

	// Cache both atomically via pipeline.
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.QuizPayloadKey(quiz.ID.String()), payloadJSON, s.cacheTTL)
	pipe.Del(ctx, answerKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, answerKey, fields)
		pipe.Expire(ctx, answerKey, s.cacheTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("quiz_id", quiz.ID.String()).
		Int("questions", len(key)).
		Msg("Cache warmed")
	return nil
}

// PrewarmPublicCaches loads the newest public quizzes into Redis at startup.
func (s *QuizService) PrewarmPublicCaches(ctx context.Context, limit int) error {
	quizzes, err := s.quizRepo.ListRecentPublic(ctx, limit)
	if err != nil {
		return fmt.Errorf("list public quizzes: %w", err)
	}

	if len(quizzes) == 0 {
		s.log.Info().Msg("No public quizzes to prewarm")
		return nil
	}

	warmed := 0
	for i := range quizzes {
		if err := s.WarmQuizCache(ctx, &quizzes[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("quiz_id", quizzes[i].ID.String()).
				Msg("Failed to warm quiz, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(quizzes)).
		Msg("Prewarming complete")
	return nil
}

// GetPayload returns the taker view of a quiz, from Redis when cached.
// A miss or Redis failure falls back to Postgres and re-warms the entry.
func (s *QuizService) GetPayload(ctx context.Context, id uuid.UUID) (*model.QuizPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.QuizPayloadKey(id.String())).Bytes()
	if err == nil {
		var payload model.QuizPayload
		if err := json.Unmarshal(data, &payload); err == nil {
			return &payload, nil
		}
		s.log.Warn().Str("quiz_id", id.String()).Msg("Corrupt payload cache, reloading")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Payload cache read failed")
	}

	quiz, err := s.loadAndWarm(ctx, id)
	if err != nil {
		return nil, err
	}
	return quiz.Payload(), nil
}

// GetAnswerKey returns the grading data for a quiz, from Redis when cached.
func (s *QuizService) GetAnswerKey(ctx context.Context, id uuid.UUID) (model.AnswerKey, error) {
	result, err := s.rdb.HGetAll(ctx, config.CacheKey.QuizAnswerKey(id.String())).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Answer key cache read failed")
	}
	if key, ok := decodeAnswerKey(result); ok {
		return key, nil
	}

	quiz, err := s.loadAndWarm(ctx, id)
	if err != nil {
		return nil, err
	}
	return quiz.AnswerKey(), nil
}

// RecordCompletion updates a quiz's running stats after an attempt finishes.
// When the update fails the quiz is queued for a full recompute.
func (s *QuizService) RecordCompletion(ctx context.Context, quizID uuid.UUID) {
	if _, err := s.quizRepo.RefreshStats(ctx, quizID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return // quiz deleted meanwhile
		}
		s.log.Error().Err(err).Str("quiz_id", quizID.String()).Msg("Stats update failed, queueing recompute")
		if qErr := s.rdb.RPush(ctx, config.WorkerKey.RecomputeStatsQueue, quizID.String()).Err(); qErr != nil {
			s.log.Error().Err(qErr).Str("quiz_id", quizID.String()).Msg("Failed to queue stats recompute")
		}
	}
}

// RecomputeStats rebuilds a quiz's stats from every completed attempt.
func (s *QuizService) RecomputeStats(ctx context.Context, quizID uuid.UUID) error {
	stats, err := s.quizRepo.RecomputeStats(ctx, quizID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("recompute stats: %w", err)
	}
	s.log.Debug().
		Str("quiz_id", quizID.String()).
		Int("total_attempts", stats.TotalAttempts).
		Msg("Stats recomputed")
	return nil
}

func (s *QuizService) load(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	return quiz, nil
}

// loadAndWarm reads a quiz from Postgres and re-warms its cache. Concurrent
// misses for the same quiz share one load. The returned quiz is shared and
// must not be mutated.
func (s *QuizService) loadAndWarm(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	v, err, _ := s.warming.Do(id.String(), func() (interface{}, error) {
		quiz, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.WarmQuizCache(ctx, quiz); err != nil {
			s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Failed to re-warm quiz")
		}
		return quiz, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Quiz), nil
}

// decodeAnswerKey rebuilds an AnswerKey from its hash fields. Any gap or
// malformed entry is treated as a miss.
func decodeAnswerKey(fields map[string]string) (model.AnswerKey, bool) {
	if len(fields) == 0 {
		return nil, false
	}
	idx := make([]int, 0, len(fields))
	for f := range fields {
		i, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		idx = append(idx, i)
	}
	sort.Ints(idx)

	key := make(model.AnswerKey, len(idx))
	for pos, i := range idx {
		if i != pos {
			return nil, false
		}
		if err := json.Unmarshal([]byte(fields[strconv.Itoa(i)]), &key[pos]); err != nil {
			return nil, false
		}
	}
	return key, true
}
