// Package vote resolves voter→target mappings into a single target.
package vote

import (
	"math/rand/v2"
	"slices"
)

// Count is the number of votes one target received.
type Count struct {
	Target string
	Votes  int
}

// Counts tallies votes per target, ordered by first appearance in voters.
// Voters absent from votes are skipped; an empty target is an abstention.
func Counts(voters []string, votes map[string]string) []Count {
	var out []Count
	idx := make(map[string]int)
	for _, voter := range voters {
		target, ok := votes[voter]
		if !ok || target == "" {
			continue
		}
		i, seen := idx[target]
		if !seen {
			i = len(out)
			idx[target] = i
			out = append(out, Count{Target: target})
		}
		out[i].Votes++
	}
	return out
}

// Leaders returns the targets holding the maximum count, sorted by name,
// and that maximum.
func Leaders(counts []Count) ([]string, int) {
	best := 0
	var names []string
	for _, c := range counts {
		switch {
		case c.Votes > best:
			best = c.Votes
			names = []string{c.Target}
		case c.Votes == best:
			names = append(names, c.Target)
		}
	}
	slices.Sort(names)
	return names, best
}

// Tally picks uniformly at random among the targets with the most votes.
// Leaders are sorted before drawing so the result depends only on the vote
// mapping and the state of rng. It returns "" and 0 when no votes were cast.
func Tally(votes map[string]string, rng *rand.Rand) (string, int) {
	voters := make([]string, 0, len(votes))
	for v := range votes {
		voters = append(voters, v)
	}
	slices.Sort(voters)

	leaders, best := Leaders(Counts(voters, votes))
	if len(leaders) == 0 {
		return "", 0
	}
	return leaders[rng.IntN(len(leaders))], best
}

// Plurality returns the first target, in voter order, to hold the highest
// count. It returns "" when no votes were cast.
func Plurality(voters []string, votes map[string]string) (string, int) {
	counts := Counts(voters, votes)
	var best Count
	for _, c := range counts {
		if c.Votes > best.Votes {
			best = c
		}
	}
	return best.Target, best.Votes
}
