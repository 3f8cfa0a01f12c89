package progression

import "github.com/JunoAX/greenquest-go/internal/models"

// QuizResult is the outcome of scoring one quiz attempt
type QuizResult struct {
	Correct      int `json:"correct"`
	Total        int `json:"total"`
	ScorePercent int `json:"score"`
}

// ScoreQuiz scores answers against the answer key.
// Every answer counts toward the total, including ones for unknown questions,
// which can never be correct. The percentage is rounded half up.
func ScoreQuiz(answers []models.QuizAnswer, key map[string]int) (QuizResult, error) {
	if len(answers) == 0 {
		return QuizResult{}, ErrEmptySubmission
	}

	correct := 0
	for _, a := range answers {
		want, ok := key[a.QuestionID]
		if ok && want == a.SelectedAnswer {
			correct++
		}
	}

	total := len(answers)
	return QuizResult{
		Correct:      correct,
		Total:        total,
		ScorePercent: (200*correct + total) / (2 * total),
	}, nil
}
