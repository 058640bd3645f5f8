package quiz

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/knowcheck/policyquiz/internal/model"
)

// ErrInsufficientPool is returned when a no-repeat draw asks for more
// questions than the eligible pool holds.
var ErrInsufficientPool = errors.New("not enough eligible questions for the requested count")

// Mode selects the sampling policy. It is fixed when the sampler is
// created and never switches implicitly.
type Mode string

const (
	// ModeNoRepeat draws without replacement and fails fast with
	// ErrInsufficientPool when the pool is too small.
	ModeNoRepeat Mode = "no-repeat"
	// ModeAllowRepeats draws with replacement; duplicates are possible
	// and pool size never causes a failure.
	ModeAllowRepeats Mode = "allow-repeats"
)

// Sampler draws weighted question subsets. Not safe for concurrent use;
// create one per draw.
type Sampler struct {
	rng  *rand.Rand
	mode Mode
}

// NewSampler creates a sampler. A zero seed yields a fresh random
// source; a non-zero seed makes draws reproducible.
func NewSampler(seed uint64, mode Mode) *Sampler {
	if seed == 0 {
		seed = rand.Uint64() | 1
	}
	return &Sampler{
		rng:  rand.New(rand.NewPCG(seed, seed<<32|seed>>32)),
		mode: mode,
	}
}

// Mode reports the active sampling policy.
func (s *Sampler) Mode() Mode {
	return s.mode
}

// Sample draws count questions from the weighted pool and returns them
// in random presentation order. With balanceByChapter the draw is
// spread across chapters first (floor(count/numChapters) each, capped
// at chapter size) and any shortfall is filled from the not-yet-picked
// remainder of the pool.
func (s *Sampler) Sample(pool []Weighted, count int, balanceByChapter bool) ([]model.QuestionRecord, error) {
	if count < 1 {
		return nil, fmt.Errorf("sample count must be positive, got %d", count)
	}

	var picked []int
	if balanceByChapter {
		var err error
		picked, err = s.balancedDraw(pool, count)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		picked, err = s.draw(pool, allIndices(len(pool)), count)
		if err != nil {
			return nil, err
		}
	}

	s.rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})

	selected := make([]model.QuestionRecord, 0, len(picked))
	for _, i := range picked {
		selected = append(selected, pool[i].Record.Clone())
	}
	return selected, nil
}

// balancedDraw groups the pool by chapter (first-seen order, records
// without a chapter stay in the leftover pool only) and draws each
// chapter's quota without replacement before filling the remainder.
func (s *Sampler) balancedDraw(pool []Weighted, count int) ([]int, error) {
	var chapters []string
	groups := make(map[string][]int)
	for i, w := range pool {
		ch := w.Record.Chapter
		if ch == "" {
			continue
		}
		if _, ok := groups[ch]; !ok {
			chapters = append(chapters, ch)
		}
		groups[ch] = append(groups[ch], i)
	}
	if len(chapters) == 0 {
		return s.draw(pool, allIndices(len(pool)), count)
	}

	perChapter := count / len(chapters)
	var picked []int
	for _, ch := range chapters {
		group := groups[ch]
		quota := min(len(group), perChapter)
		if quota == 0 {
			continue
		}
		// The quota never exceeds the group, so this cannot fail.
		idx, err := s.drawNoRepeat(pool, group, quota)
		if err != nil {
			return nil, err
		}
		picked = append(picked, idx...)
	}

	shortfall := count - len(picked)
	if shortfall == 0 {
		return picked, nil
	}

	if s.mode == ModeAllowRepeats {
		idx, err := s.draw(pool, allIndices(len(pool)), shortfall)
		if err != nil {
			return nil, err
		}
		return append(picked, idx...), nil
	}

	taken := make(map[int]bool, len(picked))
	for _, i := range picked {
		taken[i] = true
	}
	var leftover []int
	for i := range pool {
		if !taken[i] {
			leftover = append(leftover, i)
		}
	}
	idx, err := s.drawNoRepeat(pool, leftover, shortfall)
	if err != nil {
		return nil, err
	}
	return append(picked, idx...), nil
}

// draw picks n pool indices from candidates according to the sampler mode.
func (s *Sampler) draw(pool []Weighted, candidates []int, n int) ([]int, error) {
	if s.mode == ModeAllowRepeats {
		if len(candidates) == 0 {
			return nil, ErrInsufficientPool
		}
		picked := make([]int, 0, n)
		for range n {
			picked = append(picked, candidates[s.pickOne(pool, candidates)])
		}
		return picked, nil
	}
	return s.drawNoRepeat(pool, candidates, n)
}

// drawNoRepeat picks n distinct pool indices from candidates, each step
// proportional to the weights of the not-yet-picked items.
func (s *Sampler) drawNoRepeat(pool []Weighted, candidates []int, n int) ([]int, error) {
	if n > len(candidates) {
		return nil, ErrInsufficientPool
	}
	remaining := append([]int(nil), candidates...)
	picked := make([]int, 0, n)
	for range n {
		j := s.pickOne(pool, remaining)
		picked = append(picked, remaining[j])
		remaining[j] = remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]
	}
	return picked, nil
}

// pickOne returns the position within candidates of one weighted pick.
func (s *Sampler) pickOne(pool []Weighted, candidates []int) int {
	var total float64
	for _, i := range candidates {
		total += pool[i].Weight
	}
	if total <= 0 {
		return s.rng.IntN(len(candidates))
	}
	r := s.rng.Float64() * total
	for j, i := range candidates {
		r -= pool[i].Weight
		if r < 0 {
			return j
		}
	}
	return len(candidates) - 1
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
