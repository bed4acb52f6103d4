package playback

import "math/rand"

// shuffleOrder tracks which queue indices have been visited in the
// current shuffle round. Once every index has been played the round is
// exhausted; the session either resets it (repeat all) or stops.
type shuffleOrder struct {
	rng     *rand.Rand
	visited map[int]bool
}

func newShuffleOrder(seed int64) *shuffleOrder {
	return &shuffleOrder{
		rng:     rand.New(rand.NewSource(seed)),
		visited: make(map[int]bool),
	}
}

// reset clears the visited set for a new round.
func (o *shuffleOrder) reset() {
	o.visited = make(map[int]bool)
}

// mark records an index as played in this round.
func (o *shuffleOrder) mark(index int) {
	o.visited[index] = true
}

// next picks a pseudo-random unvisited index from a queue of length n.
// It returns ok=false when the round is exhausted.
func (o *shuffleOrder) next(n int) (index int, ok bool) {
	candidates := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !o.visited[i] {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[o.rng.Intn(len(candidates))], true
}
