package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizcraft/quizcraft-backend/internal/middleware"
	"github.com/quizcraft/quizcraft-backend/internal/model"
	"github.com/quizcraft/quizcraft-backend/internal/response"
	"github.com/quizcraft/quizcraft-backend/internal/service"
	"github.com/quizcraft/quizcraft-backend/internal/validator"
)

// QuizHandler handles quiz catalog endpoints.
type QuizHandler struct {
	quizService *service.QuizService
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

// ListQuizzes godoc
// GET /api/v1/quizzes
// Lists public quizzes, or the caller's own with my_quizzes=true (or myQuizzes=true).
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var query model.ListQuizzesQuery
	if fields := validator.BindQuery(c, &query); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quizzes, pagination, err := h.quizService.List(c.Request.Context(), query, claims.UserID)
	if err != nil {
		failService(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"quizzes": quizViews(quizzes, claims.UserID)}, pagination)
}

// GetQuiz godoc
// GET /api/v1/quizzes/:id
// Owners see the full quiz; everyone else gets it without the answer key.
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, ok := paramID(c, "id")
	if !ok {
		return
	}

	quiz, err := h.quizService.Get(c.Request.Context(), quizID, claims.UserID)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quizView(quiz, claims.UserID)})
}

// CreateQuiz godoc
// POST /api/v1/quizzes
// Creates a quiz owned by the caller.
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz := req.ToQuiz(claims.UserID)
	if err := h.quizService.Create(c.Request.Context(), quiz); err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// DeleteQuiz godoc
// DELETE /api/v1/quizzes/:id
// Deletes a quiz. Only its creator may do so.
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.quizService.Delete(c.Request.Context(), quizID, claims.UserID); err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Quiz deleted"})
}

// quizView hides the answer key from everyone but the creator.
func quizView(q *model.Quiz, viewerID uuid.UUID) interface{} {
	if q.IsOwner(viewerID) {
		return q
	}
	return q.Payload()
}

func quizViews(quizzes []model.Quiz, viewerID uuid.UUID) []interface{} {
	views := make([]interface{}, len(quizzes))
	for i := range quizzes {
		views[i] = quizView(&quizzes[i], viewerID)
	}
	return views
}
