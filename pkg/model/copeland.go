package model

import "sort"

// Ranking runs a Copeland-style tournament over n candidates. Every ordered
// pair of distinct candidates (a, b) is scored by predict; a win is
// recorded for a when P(a over b) exceeds 0.5. Each candidate's score is
// its win count normalized by n-1, and the returned ranking sorts by score
// descending with ties broken by ascending index.
//
// The result is deterministic for a fixed model state and derivable purely
// from PredictPreference.
func Ranking(n int, predict func(i, j int) (float64, error)) ([]int, []float64, error) {
	scores := make([]float64, n)
	wins := make([]int, n)

	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			if a == b {
				continue
			}
			p, err := predict(a, b)
			if err != nil {
				return nil, nil, err
			}
			if p > 0.5 {
				wins[a]++
			}
		}
	}

	if n > 1 {
		for i := range scores {
			scores[i] = float64(wins[i]) / float64(n-1)
		}
	}

	ranking := make([]int, n)
	for i := range ranking {
		ranking[i] = i
	}
	sort.SliceStable(ranking, func(a, b int) bool {
		return scores[ranking[a]] > scores[ranking[b]]
	})

	return ranking, scores, nil
}
