package models

import "fmt"

// GameType identifies which mini-game produced a progress record
type GameType string

const (
	GameQuiz         GameType = "quiz"
	GameWasteSorting GameType = "waste_sorting"
	GameEnergySaving GameType = "energy_saving"
)

// GameTypes lists every accepted game type
var GameTypes = []GameType{GameQuiz, GameWasteSorting, GameEnergySaving}

func (g GameType) Valid() bool {
	switch g {
	case GameQuiz, GameWasteSorting, GameEnergySaving:
		return true
	}
	return false
}

// ParseGameType rejects unknown tags instead of letting them fall through
func ParseGameType(s string) (GameType, error) {
	g := GameType(s)
	if !g.Valid() {
		return "", fmt.Errorf("unknown game type %q", s)
	}
	return g, nil
}

// ChallengeCategory groups catalog challenges
type ChallengeCategory string

const (
	CategoryWasteReduction ChallengeCategory = "waste_reduction"
	CategoryNature         ChallengeCategory = "nature"
	CategoryEnergy         ChallengeCategory = "energy"
	CategoryTransportation ChallengeCategory = "transportation"
	CategoryCommunity      ChallengeCategory = "community"
)

func (c ChallengeCategory) Valid() bool {
	switch c {
	case CategoryWasteReduction, CategoryNature, CategoryEnergy, CategoryTransportation, CategoryCommunity:
		return true
	}
	return false
}

// NotificationType is the kind of user-visible event
type NotificationType string

const (
	NotificationAchievement     NotificationType = "achievement"
	NotificationChallengeUnlock NotificationType = "challenge_unlock"
	NotificationReminder        NotificationType = "reminder"
)

func (n NotificationType) Valid() bool {
	switch n {
	case NotificationAchievement, NotificationChallengeUnlock, NotificationReminder:
		return true
	}
	return false
}

// SubmissionStatus is the review state of a challenge proof
type SubmissionStatus string

const (
	SubmissionNone     SubmissionStatus = "none"
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Terminal reports whether no further review transition is possible
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionApproved || s == SubmissionRejected
}

func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionApproved, SubmissionRejected:
		return true
	}
	return false
}
