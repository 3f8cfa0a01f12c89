package models

import (
	"time"

	"github.com/google/uuid"
)

// GameProgressRecord is one append-only entry of the per-session game log
type GameProgressRecord struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	AccountID    uuid.UUID  `json:"user_id" db:"account_id"`
	GameType     GameType   `json:"game_type" db:"game_type"`
	Level        int        `json:"level" db:"level"`
	Score        int        `json:"score" db:"score"`
	Completed    bool       `json:"completed" db:"completed"`
	SessionToken string     `json:"session_token" db:"session_token"`
	Awarded      bool       `json:"awarded" db:"awarded"` // Whether this append carried the ledger effect
	CreatedAt    time.Time  `json:"timestamp" db:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// QuizQuestion is a question bank entry including its answer key
type QuizQuestion struct {
	ID            string   `json:"id" yaml:"id"`
	Category      string   `json:"category" yaml:"category"`
	Question      string   `json:"question" yaml:"question"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer int      `json:"-" yaml:"correct_answer"`
	Difficulty    int      `json:"difficulty" yaml:"difficulty"`
}

// QuizQuestionResponse is what players see (no answer key)
type QuizQuestionResponse struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// ToResponse strips the answer key
func (q *QuizQuestion) ToResponse() QuizQuestionResponse {
	return QuizQuestionResponse{
		ID:       q.ID,
		Category: q.Category,
		Question: q.Question,
		Options:  q.Options,
	}
}

// QuizAnswer is one submitted answer
type QuizAnswer struct {
	QuestionID     string `json:"question_id" validate:"required,notblank"`
	SelectedAnswer int    `json:"selected_answer"`
}
