package sampler

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"local-assistant/pkg/llm"
)

// Params configures the sampling chain. The stage order is fixed:
// penalties, top-k, top-p, temperature, then a seeded categorical draw.
type Params struct {
	PenaltyLastN     int
	RepeatPenalty    float32
	FrequencyPenalty float32
	PresencePenalty  float32
	TopK             int
	TopP             float32
	MinKeep          int
	Temperature      float32
	Seed             uint64
}

func DefaultParams() Params {
	return Params{
		PenaltyLastN:  64,
		RepeatPenalty: 1.1,
		TopK:          40,
		TopP:          0.9,
		MinKeep:       1,
		Temperature:   0.8,
		Seed:          0,
	}
}

type candidate struct {
	id    llm.Token
	logit float32
	p     float64
}

// Chain is a stateful sampler. Not safe for concurrent use.
type Chain struct {
	params Params
	rng    *rand.Rand
	recent []llm.Token
	cands  []candidate
}

func New(params Params) *Chain {
	if params.MinKeep < 1 {
		params.MinKeep = 1
	}
	return &Chain{
		params: params,
		rng:    rand.New(rand.NewPCG(params.Seed, params.Seed)),
	}
}

func (c *Chain) Params() Params {
	return c.params
}

// Accept records a token in the penalty window.
func (c *Chain) Accept(token llm.Token) {
	if c.params.PenaltyLastN <= 0 {
		return
	}
	c.recent = append(c.recent, token)
	if over := len(c.recent) - c.params.PenaltyLastN; over > 0 {
		c.recent = c.recent[over:]
	}
}

// Reset clears the penalty window and reseeds the generator.
func (c *Chain) Reset() {
	c.recent = c.recent[:0]
	c.rng = rand.New(rand.NewPCG(c.params.Seed, c.params.Seed))
}

// Sample picks the next token from a full-vocabulary logit vector.
func (c *Chain) Sample(logits []float32) llm.Token {
	if len(logits) == 0 {
		return 0
	}

	c.cands = c.cands[:0]
	for i, l := range logits {
		c.cands = append(c.cands, candidate{id: llm.Token(i), logit: l})
	}

	c.applyPenalties()
	c.applyTopK()
	c.applyTopP()
	c.applyTemperature()

	return c.draw()
}

func (c *Chain) applyPenalties() {
	p := c.params
	if len(c.recent) == 0 || (p.RepeatPenalty == 1 && p.FrequencyPenalty == 0 && p.PresencePenalty == 0) {
		return
	}

	counts := make(map[llm.Token]int, len(c.recent))
	for _, t := range c.recent {
		counts[t]++
	}

	// Candidates are still in vocabulary order here, so the id is the index
	for id, n := range counts {
		if int(id) < 0 || int(id) >= len(c.cands) {
			continue
		}
		cand := &c.cands[id]
		if cand.logit <= 0 {
			cand.logit *= p.RepeatPenalty
		} else {
			cand.logit /= p.RepeatPenalty
		}
		cand.logit -= float32(n)*p.FrequencyPenalty + p.PresencePenalty
	}
}

func (c *Chain) sortByLogit() {
	slices.SortFunc(c.cands, func(a, b candidate) int {
		if a.logit != b.logit {
			return cmp.Compare(b.logit, a.logit)
		}
		return cmp.Compare(a.id, b.id)
	})
}

func (c *Chain) applyTopK() {
	k := c.params.TopK
	if k <= 0 {
		return
	}
	k = max(k, c.params.MinKeep)
	c.sortByLogit()
	if k < len(c.cands) {
		c.cands = c.cands[:k]
	}
}

func (c *Chain) applyTopP() {
	topP := float64(c.params.TopP)
	if topP >= 1 {
		return
	}

	c.sortByLogit()
	softmax(c.cands)

	var cum float64
	keep := len(c.cands)
	for i := range c.cands {
		cum += c.cands[i].p
		if cum >= topP && i+1 >= c.params.MinKeep {
			keep = i + 1
			break
		}
	}
	c.cands = c.cands[:keep]
}

func (c *Chain) applyTemperature() {
	t := c.params.Temperature
	if t <= 0 {
		// Zero temperature degenerates to greedy selection
		c.sortByLogit()
		c.cands = c.cands[:1]
		return
	}
	for i := range c.cands {
		c.cands[i].logit /= t
	}
}

func (c *Chain) draw() llm.Token {
	if len(c.cands) == 1 {
		return c.cands[0].id
	}

	softmax(c.cands)

	r := c.rng.Float64()
	var cum float64
	for _, cand := range c.cands {
		cum += cand.p
		if r < cum {
			return cand.id
		}
	}
	return c.cands[len(c.cands)-1].id
}

func softmax(cands []candidate) {
	maxLogit := float32(math.Inf(-1))
	for _, cand := range cands {
		maxLogit = max(maxLogit, cand.logit)
	}

	var sum float64
	for i := range cands {
		cands[i].p = math.Exp(float64(cands[i].logit - maxLogit))
		sum += cands[i].p
	}
	for i := range cands {
		cands[i].p /= sum
	}
}

