package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizcraft/quizcraft-backend/internal/middleware"
	"github.com/quizcraft/quizcraft-backend/internal/model"
	"github.com/quizcraft/quizcraft-backend/internal/response"
	"github.com/quizcraft/quizcraft-backend/internal/service"
	"github.com/quizcraft/quizcraft-backend/internal/validator"
)

// UserHandler handles the caller's profile, history and the leaderboard.
type UserHandler struct {
	userService        *service.UserService
	quizService        *service.QuizService
	leaderboardService *service.LeaderboardService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService, quizService *service.QuizService, leaderboardService *service.LeaderboardService) *UserHandler {
	return &UserHandler{
		userService:        userService,
		quizService:        quizService,
		leaderboardService: leaderboardService,
	}
}

// GetProfile godoc
// GET /api/v1/users/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	user, err := h.userService.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// UpdateProfile godoc
// PUT /api/v1/users/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.UpdateProfileRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// ListAttempts godoc
// GET /api/v1/users/attempts
// Lists the caller's attempts, most recently completed first.
func (h *UserHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var query model.PageQuery
	if fields := validator.BindQuery(c, &query); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempts, pagination, err := h.userService.ListAttempts(c.Request.Context(), claims.UserID, query.Page, query.Limit)
	if err != nil {
		failService(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, pagination)
}

// GetAttempt godoc
// GET /api/v1/users/attempts/:id
func (h *UserHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := paramID(c, "id")
	if !ok {
		return
	}

	detail, err := h.userService.GetAttempt(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, detail)
}

// ListQuizzes godoc
// GET /api/v1/users/quizzes
// Lists quizzes the caller created, private ones included.
func (h *UserHandler) ListQuizzes(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var query model.PageQuery
	if fields := validator.BindQuery(c, &query); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quizzes, pagination, err := h.quizService.ListByCreator(c.Request.Context(), claims.UserID, query.Page, query.Limit)
	if err != nil {
		failService(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"quizzes": quizzes}, pagination)
}

// GetLeaderboard godoc
// GET /api/v1/users/leaderboard
// Public. Top users by summed score, optionally per category and timeframe.
func (h *UserHandler) GetLeaderboard(c *gin.Context) {
	var query model.LeaderboardQuery
	if fields := validator.BindQuery(c, &query); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	entries, err := h.leaderboardService.Get(c.Request.Context(), query.Category, query.Timeframe)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"leaderboard": entries})
}
