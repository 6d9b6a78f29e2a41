package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizcraft/quizcraft-backend/internal/model"
)

// answersJSON aggregates an attempt's answers into a JSON array ordered by question index.
const answersJSON = `
	COALESCE((
		SELECT json_agg(json_build_object(
			'question_index', aa.question_index,
			'selected_option', aa.selected_option,
			'is_correct', aa.is_correct,
			'time_taken', aa.time_taken,
			'answered_at', aa.answered_at
		) ORDER BY aa.question_index)
		FROM attempt_answers aa
		WHERE aa.attempt_id = a.id
	), '[]'::json)`

const attemptColumns = `
	a.id, a.user_id, a.quiz_id, a.score, a.total_questions, a.correct_answers,
	a.time_spent, a.completed, a.completed_at, a.created_at, a.updated_at,
	q.title, q.category, q.difficulty, ` + answersJSON

const attemptFrom = `
	FROM quiz_attempts a
	LEFT JOIN quizzes q ON q.id = a.quiz_id`

// AttemptRepository handles quiz attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row rowScanner) (*model.QuizAttempt, error) {
	a := &model.QuizAttempt{}
	var title, category, difficulty *string
	err := row.Scan(
		&a.ID, &a.UserID, &a.QuizID, &a.Score, &a.TotalQuestions, &a.CorrectAnswers,
		&a.TimeSpent, &a.Completed, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt,
		&title, &category, &difficulty, &a.Answers,
	)
	if err != nil {
		return nil, err
	}
	// The quiz may have been deleted since; the attempt is kept without it.
	if title != nil {
		a.Quiz = &model.QuizSummary{ID: a.QuizID, Title: *title}
		if category != nil {
			a.Quiz.Category = model.Category(*category)
		}
		if difficulty != nil {
			a.Quiz.Difficulty = model.Difficulty(*difficulty)
		}
	}
	if a.Answers == nil {
		a.Answers = []model.Answer{}
	}
	return a, nil
}

// CreateWithinLimit inserts a new attempt unless the user already has the
// quiz's max_attempts attempts on it. The quiz row is read FOR SHARE so a
// concurrent delete either waits for the start or makes it fail with
// pgx.ErrNoRows. An advisory lock keyed on (user, quiz) makes the
// count-then-insert atomic against concurrent starts.
func (r *AttemptRepository) CreateWithinLimit(ctx context.Context, a *model.QuizAttempt) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var maxAttempts int
	if err := tx.QueryRow(ctx,
		`SELECT max_attempts FROM quizzes WHERE id = $1 FOR SHARE`, a.QuizID,
	).Scan(&maxAttempts); err != nil {
		return err
	}

	lockKey := a.UserID.String() + ":" + a.QuizID.String()
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return fmt.Errorf("acquire attempt lock: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_attempts WHERE user_id = $1 AND quiz_id = $2`,
		a.UserID, a.QuizID,
	).Scan(&count); err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}
	if count >= maxAttempts {
		return ErrAttemptLimitReached
	}

	if err := tx.QueryRow(ctx,
		`INSERT INTO quiz_attempts (user_id, quiz_id, total_questions)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		a.UserID, a.QuizID, a.TotalQuestions,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	return tx.Commit(ctx)
}

// FindActive retrieves an in-progress attempt owned by userID on quizID.
// Returns pgx.ErrNoRows when missing, completed, or owned by someone else.
func (r *AttemptRepository) FindActive(ctx context.Context, attemptID, userID, quizID uuid.UUID) (*model.QuizAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+attemptFrom+`
		 WHERE a.id = $1 AND a.user_id = $2 AND a.quiz_id = $3 AND NOT a.completed`,
		attemptID, userID, quizID,
	))
}

// UpsertAnswer records ans, replacing any earlier answer for the same question
// index, and refreshes the provisional correct count and raw-ratio score.
// The attempt row is locked with completed = false so an answer can never land
// after completion. Returns pgx.ErrNoRows if the attempt is not active.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, attemptID, userID, quizID uuid.UUID, ans model.Answer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	if err := tx.QueryRow(ctx,
		`SELECT id FROM quiz_attempts
		 WHERE id = $1 AND user_id = $2 AND quiz_id = $3 AND NOT completed
		 FOR UPDATE`,
		attemptID, userID, quizID,
	).Scan(&locked); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_index, selected_option, is_correct, time_taken, answered_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (attempt_id, question_index) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option,
		     is_correct = EXCLUDED.is_correct,
		     time_taken = EXCLUDED.time_taken,
		     answered_at = EXCLUDED.answered_at`,
		attemptID, ans.QuestionIndex, ans.SelectedOption, ans.IsCorrect, ans.TimeTaken,
	); err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE quiz_attempts a
		 SET correct_answers = c.correct,
		     score = CASE WHEN a.total_questions > 0
		                  THEN ROUND(c.correct * 100.0 / a.total_questions)::int
		                  ELSE 0 END,
		     updated_at = NOW()
		 FROM (SELECT COUNT(*) FILTER (WHERE is_correct) AS correct
		       FROM attempt_answers WHERE attempt_id = $1) c
		 WHERE a.id = $1`, attemptID,
	); err != nil {
		return fmt.Errorf("update provisional score: %w", err)
	}

	return tx.Commit(ctx)
}

// GradeFunc turns an attempt's final answers into its score and correct count.
type GradeFunc func(answers []model.Answer) (score, correct int)

// Complete flips completed to true only if it is still false, then grades the
// final answer set and stores the score in the same transaction. Exactly one
// concurrent caller can win; the rest get pgx.ErrNoRows.
func (r *AttemptRepository) Complete(ctx context.Context, attemptID, userID, quizID uuid.UUID, timeSpent int, grade GradeFunc) (*model.QuizAttempt, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	if err := tx.QueryRow(ctx,
		`UPDATE quiz_attempts
		 SET completed = TRUE, time_spent = $4, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND quiz_id = $3 AND NOT completed
		 RETURNING id`,
		attemptID, userID, quizID, timeSpent,
	).Scan(&id); err != nil {
		return nil, err
	}

	attempt, err := scanAttempt(tx.QueryRow(ctx, `SELECT `+attemptColumns+attemptFrom+` WHERE a.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("load attempt: %w", err)
	}

	attempt.Score, attempt.CorrectAnswers = grade(attempt.Answers)
	if _, err := tx.Exec(ctx,
		`UPDATE quiz_attempts SET score = $2, correct_answers = $3 WHERE id = $1`,
		id, attempt.Score, attempt.CorrectAnswers,
	); err != nil {
		return nil, fmt.Errorf("save score: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit completion: %w", err)
	}
	return attempt, nil
}

// GetByID retrieves an attempt with its answers and quiz summary.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QuizAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx, `SELECT `+attemptColumns+attemptFrom+` WHERE a.id = $1`, id))
}

// ListByUser returns one page of a user's attempts, most recently completed first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.QuizAttempt, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_attempts WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count attempts: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+attemptFrom+`
		 WHERE a.user_id = $1
		 ORDER BY a.completed_at DESC NULLS LAST, a.created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []model.QuizAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, total, rows.Err()
}
