package repository

import (
	"errors"
	"strings"
)

// ErrAttemptLimitReached is returned when a user has used every allowed attempt.
var ErrAttemptLimitReached = errors.New("attempt limit reached")

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// escapeLike escapes LIKE wildcards so user search text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
