package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quizcraft/quizcraft-backend/internal/config"
	"github.com/quizcraft/quizcraft-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LeaderboardSize is the number of ranked users returned.
const LeaderboardSize = 50

// LeaderboardService ranks users by summed attempt scores with a short Redis cache.
type LeaderboardService struct {
	repo     LeaderboardStore
	rdb      *redis.Client
	cacheTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(repo LeaderboardStore, rdb *redis.Client, cacheTTL time.Duration, log zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		repo:     repo,
		rdb:      rdb,
		cacheTTL: cacheTTL,
		log:      log.With().Str("component", "leaderboard_service").Logger(),
		now:      time.Now,
	}
}

// Get returns the top users for an optional category and timeframe.
func (s *LeaderboardService) Get(ctx context.Context, category, timeframe string) ([]model.LeaderboardEntry, error) {
	tf := model.Timeframe(timeframe)
	if tf == "" {
		tf = model.TimeframeAll
	}
	since, ok := tf.Since(s.now())
	if !ok {
		return nil, ErrInvalidTimeframe
	}

	cacheKey := config.CacheKey.LeaderboardKey(category, string(tf))
	if data, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
		var entries []model.LeaderboardEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			return entries, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("Leaderboard cache read failed")
	}

	entries, err := s.repo.Top(ctx, category, since, LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("aggregate leaderboard: %w", err)
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}

	if data, err := json.Marshal(entries); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", cacheKey).Msg("Leaderboard cache write failed")
		}
	}
	return entries, nil
}

// Invalidate drops every cached leaderboard snapshot.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	iter := s.rdb.Scan(ctx, 0, config.CacheKey.LeaderboardPattern(), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.log.Warn().Err(err).Msg("Leaderboard cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Leaderboard cache invalidation failed")
	}
}
