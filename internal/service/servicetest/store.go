// Package servicetest provides in-memory stores satisfying the service
// persistence interfaces, for tests that do not need Postgres.
package servicetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizcraft/quizcraft-backend/internal/model"
	"github.com/quizcraft/quizcraft-backend/internal/repository"
)

// DB is the shared in-memory state behind the stores.
type DB struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*model.User
	quizzes  map[uuid.UUID]*model.Quiz
	attempts map[uuid.UUID]*model.QuizAttempt
	clock    time.Time

	// StatsErr, when set, makes RefreshStats fail.
	StatsErr error
}

// NewDB creates an empty DB.
func NewDB() *DB {
	return &DB{
		users:    make(map[uuid.UUID]*model.User),
		quizzes:  make(map[uuid.UUID]*model.Quiz),
		attempts: make(map[uuid.UUID]*model.QuizAttempt),
		clock:    time.Now().UTC().Truncate(time.Second),
	}
}

// tick advances the fake clock so orderings by time are deterministic.
func (db *DB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

// Now returns the current fake time.
func (db *DB) Now() time.Time {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.clock
}

// AddUser inserts a user and returns its id.
func (db *DB) AddUser(username string) uuid.UUID {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := &model.User{ID: uuid.New(), Username: username, DisplayName: username, CreatedAt: db.tick()}
	db.users[u.ID] = u
	return u.ID
}

// User returns a copy of a user, or nil.
func (db *DB) User(id uuid.UUID) *model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u, ok := db.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

// Quiz returns a copy of a quiz, or nil.
func (db *DB) Quiz(id uuid.UUID) *model.Quiz {
	db.mu.Lock()
	defer db.mu.Unlock()
	if q, ok := db.quizzes[id]; ok {
		return db.copyQuiz(q)
	}
	return nil
}

// AddCompletedAttempt seeds a finished attempt completed at the given time.
func (db *DB) AddCompletedAttempt(userID, quizID uuid.UUID, score int, completedAt time.Time) uuid.UUID {
	db.mu.Lock()
	defer db.mu.Unlock()
	a := &model.QuizAttempt{
		ID:          uuid.New(),
		UserID:      userID,
		QuizID:      quizID,
		Answers:     []model.Answer{},
		Score:       score,
		Completed:   true,
		CompletedAt: &completedAt,
		CreatedAt:   completedAt,
		UpdatedAt:   completedAt,
	}
	db.attempts[a.ID] = a
	return a.ID
}

func (db *DB) copyQuiz(q *model.Quiz) *model.Quiz {
	cp := *q
	cp.Questions = append([]model.Question(nil), q.Questions...)
	cp.Tags = append([]string{}, q.Tags...)
	if u, ok := db.users[q.CreatedBy]; ok {
		cp.Creator = &model.UserSummary{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
	}
	return &cp
}

func (db *DB) copyAttempt(a *model.QuizAttempt) *model.QuizAttempt {
	cp := *a
	cp.Answers = append([]model.Answer{}, a.Answers...)
	if q, ok := db.quizzes[a.QuizID]; ok {
		cp.Quiz = &model.QuizSummary{ID: q.ID, Title: q.Title, Category: q.Category, Difficulty: q.Difficulty}
	}
	return &cp
}

func (db *DB) activeAttempt(attemptID, userID, quizID uuid.UUID) (*model.QuizAttempt, error) {
	a, ok := db.attempts[attemptID]
	if !ok || a.UserID != userID || a.QuizID != quizID || a.Completed {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

// ─── Quizzes ────────────────────────────────────────────────────────

// QuizStore implements service.QuizStore.
type QuizStore struct{ db *DB }

// Quizzes returns the quiz store view of db.
func (db *DB) Quizzes() *QuizStore { return &QuizStore{db: db} }

func (s *QuizStore) GetByID(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	q, ok := s.db.quizzes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s.db.copyQuiz(q), nil
}

func (s *QuizStore) Create(_ context.Context, q *model.Quiz) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	q.ID = uuid.New()
	q.CreatedAt = s.db.tick()
	q.UpdatedAt = q.CreatedAt
	stored := *q
	s.db.quizzes[q.ID] = &stored
	if u, ok := s.db.users[q.CreatedBy]; ok {
		u.QuizzesCreated++
	}
	return nil
}

func (s *QuizStore) List(_ context.Context, filter model.QuizFilter, limit, offset int) ([]model.Quiz, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var matched []model.Quiz
	for _, q := range s.db.quizzes {
		if filter.CreatedBy != nil {
			if q.CreatedBy != *filter.CreatedBy {
				continue
			}
		} else if !q.IsPublic {
			continue
		}
		if filter.Category != "" && q.Category != filter.Category {
			continue
		}
		if filter.Difficulty != "" && q.Difficulty != filter.Difficulty {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(q.Title), needle) &&
				!strings.Contains(strings.ToLower(q.Description), needle) {
				continue
			}
		}
		matched = append(matched, *s.db.copyQuiz(q))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *QuizStore) ListRecentPublic(ctx context.Context, limit int) ([]model.Quiz, error) {
	quizzes, _, err := s.List(ctx, model.QuizFilter{}, limit, 0)
	return quizzes, err
}

func (s *QuizStore) Delete(_ context.Context, id, ownerID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	q, ok := s.db.quizzes[id]
	if !ok || q.CreatedBy != ownerID {
		return pgx.ErrNoRows
	}
	delete(s.db.quizzes, id)
	if u, ok := s.db.users[ownerID]; ok && u.QuizzesCreated > 0 {
		u.QuizzesCreated--
	}
	return nil
}

func (s *QuizStore) RefreshStats(_ context.Context, quizID uuid.UUID) (*model.QuizStats, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.StatsErr != nil {
		return nil, s.db.StatsErr
	}
	return s.db.updateStats(quizID, false)
}

func (s *QuizStore) RecomputeStats(_ context.Context, quizID uuid.UUID) (*model.QuizStats, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.updateStats(quizID, true)
}

func (db *DB) updateStats(quizID uuid.UUID, recount bool) (*model.QuizStats, error) {
	q, ok := db.quizzes[quizID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	count, sum, best := 0, 0, 0
	for _, a := range db.attempts {
		if a.QuizID != quizID || !a.Completed {
			continue
		}
		count++
		sum += a.Score
		if a.Score > best {
			best = a.Score
		}
	}
	if recount {
		q.Stats.TotalAttempts = count
	} else {
		q.Stats.TotalAttempts++
	}
	q.Stats.AverageScore = 0
	if count > 0 {
		q.Stats.AverageScore = float64(sum) / float64(count)
	}
	q.Stats.BestScore = best
	stats := q.Stats
	return &stats, nil
}

// ─── Attempts ───────────────────────────────────────────────────────

// AttemptStore implements service.AttemptStore.
type AttemptStore struct{ db *DB }

// Attempts returns the attempt store view of db.
func (db *DB) Attempts() *AttemptStore { return &AttemptStore{db: db} }

func (s *AttemptStore) CreateWithinLimit(_ context.Context, a *model.QuizAttempt) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	quiz, ok := s.db.quizzes[a.QuizID]
	if !ok {
		return pgx.ErrNoRows
	}
	maxAttempts := quiz.MaxAttempts
	count := 0
	for _, existing := range s.db.attempts {
		if existing.UserID == a.UserID && existing.QuizID == a.QuizID {
			count++
		}
	}
	if count >= maxAttempts {
		return repository.ErrAttemptLimitReached
	}
	a.ID = uuid.New()
	a.CreatedAt = s.db.tick()
	a.UpdatedAt = a.CreatedAt
	a.Answers = []model.Answer{}
	stored := *a
	s.db.attempts[a.ID] = &stored
	return nil
}

func (s *AttemptStore) FindActive(_ context.Context, attemptID, userID, quizID uuid.UUID) (*model.QuizAttempt, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, err := s.db.activeAttempt(attemptID, userID, quizID)
	if err != nil {
		return nil, err
	}
	return s.db.copyAttempt(a), nil
}

func (s *AttemptStore) UpsertAnswer(_ context.Context, attemptID, userID, quizID uuid.UUID, ans model.Answer) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, err := s.db.activeAttempt(attemptID, userID, quizID)
	if err != nil {
		return err
	}
	ans.AnsweredAt = s.db.tick()
	replaced := false
	for i := range a.Answers {
		if a.Answers[i].QuestionIndex == ans.QuestionIndex {
			a.Answers[i] = ans
			replaced = true
		}
	}
	if !replaced {
		a.Answers = append(a.Answers, ans)
		sort.Slice(a.Answers, func(i, j int) bool {
			return a.Answers[i].QuestionIndex < a.Answers[j].QuestionIndex
		})
	}
	correct := 0
	for _, x := range a.Answers {
		if x.IsCorrect {
			correct++
		}
	}
	a.CorrectAnswers = correct
	if a.TotalQuestions > 0 {
		a.Score = (correct*100 + a.TotalQuestions/2) / a.TotalQuestions
	}
	return nil
}

func (s *AttemptStore) Complete(_ context.Context, attemptID, userID, quizID uuid.UUID, timeSpent int, grade repository.GradeFunc) (*model.QuizAttempt, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, err := s.db.activeAttempt(attemptID, userID, quizID)
	if err != nil {
		return nil, err
	}
	now := s.db.tick()
	a.Completed = true
	a.CompletedAt = &now
	a.TimeSpent = timeSpent
	a.UpdatedAt = now
	a.Score, a.CorrectAnswers = grade(append([]model.Answer{}, a.Answers...))
	return s.db.copyAttempt(a), nil
}

func (s *AttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.QuizAttempt, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s.db.copyAttempt(a), nil
}

func (s *AttemptStore) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]model.QuizAttempt, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var mine []model.QuizAttempt
	for _, a := range s.db.attempts {
		if a.UserID == userID {
			mine = append(mine, *s.db.copyAttempt(a))
		}
	}
	sort.Slice(mine, func(i, j int) bool {
		ci, cj := mine[i].CompletedAt, mine[j].CompletedAt
		switch {
		case ci == nil && cj != nil:
			return false
		case ci != nil && cj == nil:
			return true
		case ci != nil && cj != nil && !ci.Equal(*cj):
			return ci.After(*cj)
		}
		return mine[i].CreatedAt.After(mine[j].CreatedAt)
	})
	total := len(mine)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return mine[offset:end], total, nil
}

// Count returns how many attempts userID has on quizID.
func (s *AttemptStore) Count(userID, quizID uuid.UUID) int {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, a := range s.db.attempts {
		if a.UserID == userID && a.QuizID == quizID {
			n++
		}
	}
	return n
}

// ─── Users ──────────────────────────────────────────────────────────

// UserStore implements service.UserStore.
type UserStore struct{ db *DB }

// Users returns the user store view of db.
func (db *DB) Users() *UserStore { return &UserStore{db: db} }

func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	if u := s.db.User(id); u != nil {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *UserStore) UpdateProfile(_ context.Context, id uuid.UUID, displayName, avatarURL *string) (*model.User, error) {
	s.db.mu.Lock()
	u, ok := s.db.users[id]
	if !ok {
		s.db.mu.Unlock()
		return nil, pgx.ErrNoRows
	}
	if displayName != nil {
		u.DisplayName = *displayName
	}
	if avatarURL != nil {
		u.AvatarURL = *avatarURL
	}
	s.db.mu.Unlock()
	return s.db.User(id), nil
}

func (s *UserStore) RecordCompletion(_ context.Context, userID uuid.UUID, score int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if u, ok := s.db.users[userID]; ok {
		u.QuizzesTaken++
		u.TotalScore += score
	}
	return nil
}

// ─── Leaderboard ────────────────────────────────────────────────────

// LeaderboardStore implements service.LeaderboardStore.
type LeaderboardStore struct{ db *DB }

// Leaderboard returns the leaderboard store view of db.
func (db *DB) Leaderboard() *LeaderboardStore { return &LeaderboardStore{db: db} }

func (s *LeaderboardStore) Top(_ context.Context, category string, since *time.Time, limit int) ([]model.LeaderboardEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	byUser := map[uuid.UUID]*model.LeaderboardEntry{}
	for _, a := range s.db.attempts {
		if !a.Completed {
			continue
		}
		if category != "" {
			q, ok := s.db.quizzes[a.QuizID]
			if !ok || string(q.Category) != category {
				continue
			}
		}
		if since != nil && (a.CompletedAt == nil || a.CompletedAt.Before(*since)) {
			continue
		}
		u, ok := s.db.users[a.UserID]
		if !ok {
			continue
		}
		e, ok := byUser[a.UserID]
		if !ok {
			e = &model.LeaderboardEntry{UserID: a.UserID, User: *u}
			byUser[a.UserID] = e
		}
		e.TotalScore += a.Score
		e.TotalQuizzes++
	}

	entries := make([]model.LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		e.AverageScore = float64(e.TotalScore) / float64(e.TotalQuizzes)
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].UserID.String() < entries[j].UserID.String()
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
