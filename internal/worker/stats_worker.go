package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quizcraft/quizcraft-backend/internal/config"
	"github.com/quizcraft/quizcraft-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	StatsBatchSize    = 50
	StatsBatchTimeout = 2 * time.Second
	StatsPollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// StatsRecomputer rebuilds a quiz's aggregate stats from its completed attempts.
type StatsRecomputer interface {
	RecomputeStats(ctx context.Context, quizID uuid.UUID) error
}

// StatsWorker consumes recompute_stats_queue. Quiz ids land there when the
// in-request stats update after a completion fails.
type StatsWorker struct {
	stats StatsRecomputer
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewStatsWorker creates a new StatsWorker.
func NewStatsWorker(stats StatsRecomputer, rdb *redis.Client, log zerolog.Logger) *StatsWorker {
	return &StatsWorker{
		stats: stats,
		rdb:   rdb,
		log:   log.With().Str("component", "stats_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *StatsWorker) Start(ctx context.Context) {
	w.log.Info().Msg("StatsWorker started")

	// Duplicate ids within a batch collapse into one recompute.
	batch := make(map[uuid.UUID]struct{}, StatsBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= StatsBatchSize || time.Since(lastFlush) >= StatsBatchTimeout) {

			w.flush(ctx, batch)
			batch = make(map[uuid.UUID]struct{}, StatsBatchSize)
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flush(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, StatsPollTimeout, config.WorkerKey.RecomputeStatsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(StatsPollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			quizID, err := uuid.Parse(item[1])
			if err != nil {
				w.log.Error().Err(err).Str("payload", item[1]).Msg("Invalid quiz id")
				continue
			}
			batch[quizID] = struct{}{}
		}
	}
}

// flush recomputes every queued quiz. Failures are requeued for the next pass.
func (w *StatsWorker) flush(ctx context.Context, batch map[uuid.UUID]struct{}) {
	for quizID := range batch {
		if err := w.stats.RecomputeStats(ctx, quizID); err != nil {
			w.log.Error().Err(err).Str("quiz_id", quizID.String()).Msg("Recompute failed")
			if errors.Is(err, service.ErrQuizNotFound) {
				continue
			}
			if qErr := w.rdb.RPush(ctx, config.WorkerKey.RecomputeStatsQueue, quizID.String()).Err(); qErr != nil {
				w.log.Error().Err(qErr).Str("quiz_id", quizID.String()).Msg("Requeue failed")
			}
		}
	}
}
