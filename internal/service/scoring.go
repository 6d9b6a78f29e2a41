package service

import (
	"math"

	"github.com/quizcraft/quizcraft-backend/internal/model"
)

// Grade scores a completed attempt against the full answer key. Unanswered
// questions count toward the total but earn nothing.
func Grade(key model.AnswerKey, answers []model.Answer) (score, correct int) {
	earned := 0
	for _, a := range answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(key) {
			continue
		}
		if a.SelectedOption == key[a.QuestionIndex].CorrectAnswer {
			earned += key[a.QuestionIndex].Points
			correct++
		}
	}
	return Percentage(earned, key.TotalPoints()), correct
}

// Percentage returns round(earned / total * 100), or 0 for an empty total.
func Percentage(earned, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(earned) / float64(total) * 100))
}
