package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizcraft/quizcraft-backend/internal/model"
)

const quizColumns = `
	q.id, q.title, q.description, q.category, q.difficulty, q.questions,
	q.time_limit, q.max_attempts, q.is_public, q.tags, q.created_by,
	q.total_attempts, q.average_score, q.best_score, q.created_at, q.updated_at,
	u.username, u.display_name, u.avatar_url`

const quizFrom = `
	FROM quizzes q
	LEFT JOIN users u ON u.id = q.created_by`

// QuizRepository handles quiz data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

func scanQuiz(row rowScanner) (*model.Quiz, error) {
	q := &model.Quiz{}
	var username, displayName, avatarURL *string
	err := row.Scan(
		&q.ID, &q.Title, &q.Description, &q.Category, &q.Difficulty, &q.Questions,
		&q.TimeLimit, &q.MaxAttempts, &q.IsPublic, &q.Tags, &q.CreatedBy,
		&q.Stats.TotalAttempts, &q.Stats.AverageScore, &q.Stats.BestScore, &q.CreatedAt, &q.UpdatedAt,
		&username, &displayName, &avatarURL,
	)
	if err != nil {
		return nil, err
	}
	if username != nil {
		q.Creator = &model.UserSummary{ID: q.CreatedBy, Username: *username}
		if displayName != nil {
			q.Creator.DisplayName = *displayName
		}
		if avatarURL != nil {
			q.Creator.AvatarURL = *avatarURL
		}
	}
	if q.Tags == nil {
		q.Tags = []string{}
	}
	return q, nil
}

// GetByID retrieves a quiz and its creator. Returns pgx.ErrNoRows if absent.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	return scanQuiz(r.pool.QueryRow(ctx, `SELECT `+quizColumns+quizFrom+` WHERE q.id = $1`, id))
}

// Create inserts a quiz and bumps the creator's quizzes_created counter in one transaction.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO quizzes (title, description, category, difficulty, questions,
		                      time_limit, max_attempts, is_public, tags, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		q.Title, q.Description, q.Category, q.Difficulty, q.Questions,
		q.TimeLimit, q.MaxAttempts, q.IsPublic, q.Tags, q.CreatedBy,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET quizzes_created = quizzes_created + 1 WHERE id = $1`, q.CreatedBy,
	); err != nil {
		return fmt.Errorf("increment quizzes_created: %w", err)
	}

	return tx.Commit(ctx)
}

// List returns one page of quizzes matching filter, newest first, and the total match count.
func (r *QuizRepository) List(ctx context.Context, filter model.QuizFilter, limit, offset int) ([]model.Quiz, int, error) {
	where := ` WHERE TRUE`
	var args []any

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		where += fmt.Sprintf(" AND q.created_by = $%d", len(args))
	} else {
		where += " AND q.is_public"
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where += fmt.Sprintf(" AND q.category = $%d", len(args))
	}
	if filter.Difficulty != "" {
		args = append(args, filter.Difficulty)
		where += fmt.Sprintf(" AND q.difficulty = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		where += fmt.Sprintf(" AND (q.title ILIKE $%d OR q.description ILIKE $%d)", len(args), len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quizzes q`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count quizzes: %w", err)
	}

	query := `SELECT ` + quizColumns + quizFrom + where +
		fmt.Sprintf(" ORDER BY q.created_at DESC, q.id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, 0, err
		}
		quizzes = append(quizzes, *q)
	}
	return quizzes, total, rows.Err()
}

// ListRecentPublic returns the newest public quizzes. Used for cache prewarming.
func (r *QuizRepository) ListRecentPublic(ctx context.Context, limit int) ([]model.Quiz, error) {
	quizzes, _, err := r.List(ctx, model.QuizFilter{}, limit, 0)
	return quizzes, err
}

// Delete removes a quiz owned by ownerID and decrements the owner's
// quizzes_created counter. Returns pgx.ErrNoRows if no such owned quiz exists.
func (r *QuizRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM quizzes WHERE id = $1 AND created_by = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET quizzes_created = GREATEST(quizzes_created - 1, 0) WHERE id = $1`, ownerID,
	); err != nil {
		return fmt.Errorf("decrement quizzes_created: %w", err)
	}

	return tx.Commit(ctx)
}

// RefreshStats is called once per completion: it increments total_attempts and
// recomputes average_score and best_score from every completed attempt.
// The quiz row lock serializes concurrent completions of the same quiz.
func (r *QuizRepository) RefreshStats(ctx context.Context, quizID uuid.UUID) (*model.QuizStats, error) {
	return r.updateStats(ctx, quizID, false)
}

// RecomputeStats rebuilds every stat, including total_attempts, from a full scan.
func (r *QuizRepository) RecomputeStats(ctx context.Context, quizID uuid.UUID) (*model.QuizStats, error) {
	return r.updateStats(ctx, quizID, true)
}

func (r *QuizRepository) updateStats(ctx context.Context, quizID uuid.UUID, recount bool) (*model.QuizStats, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM quizzes WHERE id = $1 FOR UPDATE`, quizID).Scan(&locked); err != nil {
		return nil, err
	}

	var count int
	stats := &model.QuizStats{}
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(score), 0)::float8, COALESCE(MAX(score), 0)
		 FROM quiz_attempts
		 WHERE quiz_id = $1 AND completed`, quizID,
	).Scan(&count, &stats.AverageScore, &stats.BestScore)
	if err != nil {
		return nil, fmt.Errorf("aggregate scores: %w", err)
	}

	err = tx.QueryRow(ctx,
		`UPDATE quizzes
		 SET total_attempts = CASE WHEN $4 THEN $5 ELSE total_attempts + 1 END,
		     average_score = $2,
		     best_score = $3,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING total_attempts`,
		quizID, stats.AverageScore, stats.BestScore, recount, count,
	).Scan(&stats.TotalAttempts)
	if err != nil {
		return nil, fmt.Errorf("update stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit stats: %w", err)
	}
	return stats, nil
}
