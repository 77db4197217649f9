package game

import (
	"math"
	"sort"
)

type ScoringConfig struct {
	BasePoints   int
	MaxTimeBonus int
}

// scorePoints computes one player's points for one answered part. Pure:
// identical inputs always produce identical output.
//
// A correct answer earns the base plus a bonus that decays linearly with
// elapsed time; claiming the hint halves the total (floored).
func scorePoints(correct, hintUsed bool, elapsedMs, roundDurationMs int64, cfg ScoringConfig) int {
	if !correct {
		return 0
	}

	frac := 1 - float64(elapsedMs)/float64(roundDurationMs)
	if frac < 0 {
		frac = 0
	}

	points := cfg.BasePoints + int(math.Round(float64(cfg.MaxTimeBonus)*frac))
	if hintUsed {
		points = points / 2
	}
	return points
}

// sortResults orders round results for display: correct before incorrect,
// correct ranked by ascending elapsed time, everyone else in join order.
func sortResults(results []PlayerResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Correct != b.Correct {
			return a.Correct
		}
		if a.Correct {
			return a.ElapsedMs < b.ElapsedMs
		}
		return a.joinOrder < b.joinOrder
	})
}
