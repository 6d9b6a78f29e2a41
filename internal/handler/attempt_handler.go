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

// AttemptHandler handles the quiz-taking endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// StartAttempt godoc
// POST /api/v1/quizzes/:id/attempt
// Opens a new attempt and returns the quiz without its answer key.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.attemptService.Start(c.Request.Context(), quizID, claims.UserID)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// SubmitAnswer godoc
// POST /api/v1/quizzes/:id/answer
// Records one answer and reveals whether it was correct.
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attemptService.SubmitAnswer(c.Request.Context(), quizID, claims.UserID, req)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// CompleteAttempt godoc
// POST /api/v1/quizzes/:id/complete
// Finalizes the attempt and returns its score. A second call fails with 404.
func (h *AttemptHandler) CompleteAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.CompleteAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Complete(c.Request.Context(), quizID, claims.UserID, req)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}
