package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden    ErrCode = "FORBIDDEN"
	ErrQuizPrivate  ErrCode = "QUIZ_PRIVATE"
	ErrNotQuizOwner ErrCode = "NOT_QUIZ_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrQuizNotFound    ErrCode = "QUIZ_NOT_FOUND"
	ErrAttemptNotFound ErrCode = "ATTEMPT_NOT_FOUND"

	// ─── Attempts ──────────────────────────────────────────────────────
	ErrAttemptLimitExceeded ErrCode = "ATTEMPT_LIMIT_EXCEEDED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrQuizPrivate:
		return "This quiz is private."
	case ErrNotQuizOwner:
		return "Only the quiz creator can perform this action."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrQuizNotFound:
		return "Quiz not found."
	case ErrAttemptNotFound:
		return "Attempt not found or already completed."

	// ─── Attempts ──────────────────────────────────────────────────────
	case ErrAttemptLimitExceeded:
		return "Maximum number of attempts reached for this quiz."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
