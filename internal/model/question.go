package model

// Question is a multiple-choice question embedded in a Quiz.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Points        int      `json:"points"`
	Explanation   string   `json:"explanation"`
}

// PointValue returns the question's weight, defaulting unset values.
func (q Question) PointValue() int {
	if q.Points <= 0 {
		return DefaultQuestionPoints
	}
	return q.Points
}

// QuestionForTaker is a question without the correct answer or explanation.
type QuestionForTaker struct {
	Index    int      `json:"index"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Points   int      `json:"points"`
}

// QuestionInput is one question inside CreateQuizRequest.
// CorrectAnswer is a pointer so that index 0 passes the required check.
type QuestionInput struct {
	Question      string   `json:"question" binding:"required,min=1,max=1000"`
	Options       []string `json:"options" binding:"required,min=2,max=10,dive,required,max=500"`
	CorrectAnswer *int     `json:"correct_answer" binding:"required,min=0"`
	Points        int      `json:"points" binding:"omitempty,min=1,max=1000"`
	Explanation   string   `json:"explanation" binding:"omitempty,max=1000"`
}

// ToQuestion converts the input, applying the default point value.
func (in QuestionInput) ToQuestion() Question {
	q := Question{
		Question:    in.Question,
		Options:     in.Options,
		Points:      in.Points,
		Explanation: in.Explanation,
	}
	if in.CorrectAnswer != nil {
		q.CorrectAnswer = *in.CorrectAnswer
	}
	if q.Points == 0 {
		q.Points = DefaultQuestionPoints
	}
	return q
}

// AnswerKeyEntry is the grading data for one question, cached per quiz in Redis.
type AnswerKeyEntry struct {
	CorrectAnswer int    `json:"c"`
	Points        int    `json:"p"`
	OptionCount   int    `json:"o"`
	Explanation   string `json:"e,omitempty"`
}

// AnswerKey is indexed by question position.
type AnswerKey []AnswerKeyEntry

// TotalPoints sums every question's weight.
func (k AnswerKey) TotalPoints() int {
	total := 0
	for _, e := range k {
		total += e.Points
	}
	return total
}
