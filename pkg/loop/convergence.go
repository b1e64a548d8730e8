package loop

import "github.com/prefopt/maskrank/pkg/session"

// stableTopK implements the top-K stability rule: looking at the top-K list
// of each of the last window snapshots, it counts the distinct candidates
// that appear in at least threshold of those lists, and reports stability
// once that count reaches topK. Membership may rotate within the top-K;
// what matters is that enough individual members persist.
func stableTopK(history []session.Snapshot, window, threshold, topK int) bool {
	if len(history) < window {
		return false
	}

	counts := make(map[int]int)
	for _, snap := range history[len(history)-window:] {
		for _, candidate := range snap.TopK {
			counts[candidate]++
		}
	}

	stable := 0
	for _, c := range counts {
		if c >= threshold {
			stable++
		}
	}

	return stable >= topK
}
