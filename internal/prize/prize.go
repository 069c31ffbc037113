// Package prize splits the pot across a winning faction.
package prize

// DefaultPool is the fixed prize pool of a standard game.
const DefaultPool = 500000.0

// Split pays every winner pool/len(winners). No winners, no payout.
func Split(pool float64, winners []string) map[string]float64 {
	out := make(map[string]float64, len(winners))
	if len(winners) == 0 {
		return out
	}
	share := pool / float64(len(winners))
	for _, w := range winners {
		out[w] = share
	}
	return out
}
