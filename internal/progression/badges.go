package progression

import "github.com/JunoAX/greenquest-go/internal/models"

const (
	// QuizMasterScore is the quiz score that earns Quiz Master
	QuizMasterScore = 80
	// MasteryLevel is the final level of the sorting and energy games
	MasteryLevel = 5
	// SteadyRun is how many consecutive levels from 1 must be completed for the steady badges.
	// Quizzes are always level 1, so only the sorting and energy games have one.
	SteadyRun = 3
)

var (
	rookieBadges = map[models.GameType]string{
		models.GameQuiz:         "Quiz Rookie",
		models.GameWasteSorting: "Sorting Rookie",
		models.GameEnergySaving: "Energy Rookie",
	}
	masteryBadges = map[models.GameType]string{
		models.GameWasteSorting: "Sorting Champion",
		models.GameEnergySaving: "Energy Hero",
	}
	steadyBadges = map[models.GameType]string{
		models.GameWasteSorting: "Steady Sorter",
		models.GameEnergySaving: "Steady Saver",
	}
)

// MilestoneBadges evaluates every milestone rule over an account's game log and
// returns the badges it qualifies for, in rule order. Incomplete sessions never count.
// The ledger drops the ones the account already holds.
func MilestoneBadges(history []models.GameProgressRecord) []string {
	completedLevels := make(map[models.GameType]map[int]bool)
	quizMaster := false

	for _, r := range history {
		if !r.Completed {
			continue
		}
		if completedLevels[r.GameType] == nil {
			completedLevels[r.GameType] = make(map[int]bool)
		}
		completedLevels[r.GameType][r.Level] = true
		if r.GameType == models.GameQuiz && r.Score >= QuizMasterScore {
			quizMaster = true
		}
	}

	badges := []string{}
	for _, g := range models.GameTypes {
		if len(completedLevels[g]) > 0 {
			badges = append(badges, rookieBadges[g])
		}
	}
	if quizMaster {
		badges = append(badges, "Quiz Master")
	}
	for _, g := range models.GameTypes {
		if name, ok := masteryBadges[g]; ok && completedLevels[g][MasteryLevel] {
			badges = append(badges, name)
		}
	}
	for _, g := range models.GameTypes {
		if name, ok := steadyBadges[g]; ok && steadyRun(completedLevels[g]) {
			badges = append(badges, name)
		}
	}
	return badges
}

func steadyRun(levels map[int]bool) bool {
	for l := 1; l <= SteadyRun; l++ {
		if !levels[l] {
			return false
		}
	}
	return true
}
