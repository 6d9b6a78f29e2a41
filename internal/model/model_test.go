package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTimeframeSince(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		tf   Timeframe
		want *time.Time
		ok   bool
	}{
		{TimeframeWeek, ptr(time.Date(2024, 3, 24, 12, 0, 0, 0, time.UTC)), true},
		// Calendar month back from Mar 31 normalizes past Feb 29.
		{TimeframeMonth, ptr(time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)), true},
		{TimeframeYear, ptr(time.Date(2023, 3, 31, 12, 0, 0, 0, time.UTC)), true},
		{TimeframeAll, nil, true},
		{"", nil, true},
		{"decade", nil, false},
	}

	for _, tt := range tests {
		got, ok := tt.tf.Since(now)
		if ok != tt.ok {
			t.Fatalf("%q: expected ok=%v", tt.tf, tt.ok)
		}
		switch {
		case tt.want == nil && got != nil:
			t.Fatalf("%q: expected unbounded, got %v", tt.tf, got)
		case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
			t.Fatalf("%q: expected %v, got %v", tt.tf, tt.want, got)
		}
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestToQuizDefaults(t *testing.T) {
	zero := 0
	req := CreateQuizRequest{
		Title:    "Basics",
		Category: "Programming",
		Questions: []QuestionInput{
			{Question: "Go keyword for goroutines?", Options: []string{"go", "async"}, CorrectAnswer: &zero},
		},
	}
	owner := uuid.New()
	q := req.ToQuiz(owner)

	if q.Difficulty != DifficultyMedium || q.TimeLimit != DefaultTimeLimit || q.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("unexpected defaults: %+v", q)
	}
	if !q.IsPublic || q.CreatedBy != owner || q.Tags == nil {
		t.Fatalf("expected public quiz owned by caller with empty tags")
	}
	if q.Questions[0].Points != DefaultQuestionPoints {
		t.Fatalf("expected default points, got %d", q.Questions[0].Points)
	}

	private := false
	req.IsPublic = &private
	if req.ToQuiz(owner).IsPublic {
		t.Fatalf("expected explicit is_public=false to stick")
	}
}

func TestPayloadStripsAnswerKey(t *testing.T) {
	q := &Quiz{
		ID: uuid.New(),
		Questions: []Question{
			{Question: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: 1, Points: 5, Explanation: "arithmetic"},
			{Question: "3*3?", Options: []string{"9", "6", "3"}, CorrectAnswer: 0},
		},
	}

	raw, err := json.Marshal(q.Payload())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, secret := range []string{"correct_answer", "explanation", "arithmetic"} {
		if strings.Contains(string(raw), secret) {
			t.Fatalf("payload leaked %q: %s", secret, raw)
		}
	}

	key := q.AnswerKey()
	if len(key) != 2 || key[0].CorrectAnswer != 1 || key[0].OptionCount != 2 || key[1].Points != DefaultQuestionPoints {
		t.Fatalf("unexpected answer key: %+v", key)
	}
	if key.TotalPoints() != 15 || q.TotalPoints() != 15 {
		t.Fatalf("expected 15 total points, got %d/%d", key.TotalPoints(), q.TotalPoints())
	}
}

func TestCategoryValid(t *testing.T) {
	if !CategoryGeneralKnowledge.Valid() {
		t.Fatalf("expected General Knowledge to be valid")
	}
	if Category("general knowledge").Valid() {
		t.Fatalf("expected category matching to be case sensitive")
	}
}
