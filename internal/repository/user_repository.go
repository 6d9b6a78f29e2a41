package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizcraft/quizcraft-backend/internal/model"
)

// UserRepository handles user data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID retrieves a user. Returns pgx.ErrNoRows if absent.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, display_name, avatar_url,
		        quizzes_created, quizzes_taken, total_score, created_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.AvatarURL,
		&u.QuizzesCreated, &u.QuizzesTaken, &u.TotalScore, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, display_name)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		u.Username, u.Email, u.PasswordHash, u.DisplayName,
	).Scan(&u.ID, &u.CreatedAt)
}

// UpdateProfile sets the non-nil profile fields and returns the updated user.
// Returns pgx.ErrNoRows if the user does not exist.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, displayName, avatarURL *string) (*model.User, error) {
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`UPDATE users
		 SET display_name = COALESCE($2, display_name),
		     avatar_url = COALESCE($3, avatar_url)
		 WHERE id = $1
		 RETURNING id, username, email, display_name, avatar_url,
		           quizzes_created, quizzes_taken, total_score, created_at`,
		id, displayName, avatarURL,
	).Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.AvatarURL,
		&u.QuizzesCreated, &u.QuizzesTaken, &u.TotalScore, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// RecordCompletion credits a finished attempt to the user's counters.
func (r *UserRepository) RecordCompletion(ctx context.Context, userID uuid.UUID, score int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET quizzes_taken = quizzes_taken + 1, total_score = total_score + $2
		 WHERE id = $1`,
		userID, score)
	return err
}
