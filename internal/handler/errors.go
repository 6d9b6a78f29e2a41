package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizcraft/quizcraft-backend/internal/response"
	"github.com/quizcraft/quizcraft-backend/internal/service"
)

// failService writes the response for an error returned by a service.
func failService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrQuizNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrQuizForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrQuizPrivate)
	case errors.Is(err, service.ErrNotQuizOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotQuizOwner)
	case errors.Is(err, service.ErrAttemptForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrAttemptLimitExceeded):
		response.Fail(c, http.StatusBadRequest, response.ErrAttemptLimitExceeded)
	case errors.Is(err, service.ErrInvalidQuestion):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"question_index": "question_index is out of range"})
	case errors.Is(err, service.ErrInvalidOption):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"selected_option": "selected_option is out of range"})
	case errors.Is(err, service.ErrInvalidTimeframe):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"timeframe": "timeframe must be one of [week month year all]"})
	default:
		response.FailInternal(c, err)
	}
}

// paramID parses a UUID path parameter, writing a 400 on failure.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
