package progression

import "github.com/JunoAX/greenquest-go/internal/models"

// PointsPerLevel is the width of every level band
const PointsPerLevel = 100

// Level derives the level for a point total. Level 1 starts at 0 points.
func Level(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}

// LevelProgress returns the level together with progress toward the next one.
// On a band boundary the fraction is 0 and PointsToNext is a full band.
func LevelProgress(points int) models.LevelProgress {
	if points < 0 {
		points = 0
	}
	rem := points % PointsPerLevel
	return models.LevelProgress{
		Level:            Level(points),
		ProgressFraction: float64(rem) / PointsPerLevel,
		ProgressPercent:  rem * 100 / PointsPerLevel,
		PointsToNext:     PointsPerLevel - rem,
	}
}
