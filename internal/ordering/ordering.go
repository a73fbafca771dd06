// Package ordering derives the display order of questions for a session.
package ordering

// LCG constants. The modulus keeps seed*multiplier well inside int64 for
// epoch-millisecond seeds.
const (
	multiplier = 9301
	increment  = 49297
	modulus    = 233280
)

// lcg is a linear-congruential generator producing floats in [0, 1).
type lcg struct {
	state int64
}

func newLCG(seed int64) *lcg {
	s := seed % modulus
	if s < 0 {
		s += modulus
	}
	return &lcg{state: s}
}

func (g *lcg) next() float64 {
	g.state = (g.state*multiplier + increment) % modulus
	return float64(g.state) / float64(modulus)
}

// Order returns a permutation of [0, n). Without shuffle it is the identity;
// with shuffle it is a Fisher-Yates shuffle driven by an LCG seeded with seed,
// so the same (n, seed) always yields the same permutation.
func Order(n int, shuffle bool, seed int64) []int {
	if n <= 0 {
		return []int{}
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	if !shuffle || n == 1 {
		return perm
	}
	rng := newLCG(seed)
	for i := n - 1; i > 0; i-- {
		j := int(rng.next() * float64(i+1))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// Sections orders each section independently. Section i is seeded with seed+i.
func Sections(sizes []int, shuffle bool, seed int64) [][]int {
	out := make([][]int, len(sizes))
	for i, n := range sizes {
		out[i] = Order(n, shuffle, seed+int64(i))
	}
	return out
}
