package decoder

import (
	"math"
	"math/rand"

	"github.com/ieee0824/las-go/internal/mathutil"
)

const gumbelEps = 1e-10

// GumbelArgmax draws one id per row from softmax(logits) by adding
// Gumbel(0, 1) noise and taking the argmax.
func GumbelArgmax(logits mathutil.Mat, rng *rand.Rand) []int {
	ids := make([]int, len(logits))
	for b, row := range logits {
		best, bestScore := 0, math.Inf(-1)
		for v, l := range row {
			u := rng.Float64()
			s := l - math.Log(gumbelEps-math.Log(u+gumbelEps))
			if s > bestScore {
				best, bestScore = v, s
			}
		}
		ids[b] = best
	}
	return ids
}
