package sampler

import (
	"testing"

	"local-assistant/pkg/llm"

	"github.com/stretchr/testify/assert"
)

func TestChain_Sample(t *testing.T) {
	logits := []float32{0.1, 2.5, 0.3, 1.9, -1.0}

	tests := []struct {
		name   string
		params Params
		want   llm.Token
	}{
		{
			name:   "zero temperature is greedy",
			params: Params{Temperature: 0, TopP: 1, MinKeep: 1},
			want:   1,
		},
		{
			name:   "top-k of one keeps the best token",
			params: Params{TopK: 1, TopP: 1, Temperature: 0.8},
			want:   1,
		},
		{
			name:   "tiny top-p keeps min_keep tokens",
			params: Params{TopP: 0.01, MinKeep: 1, Temperature: 1},
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.params)
			for i := 0; i < 10; i++ {
				assert.Equal(t, tt.want, c.Sample(logits))
			}
		})
	}
}

func TestChain_RepeatPenalty(t *testing.T) {
	logits := []float32{0, 2.0, 1.9}

	c := New(Params{PenaltyLastN: 64, RepeatPenalty: 1.5, Temperature: 0, TopP: 1})
	assert.Equal(t, llm.Token(1), c.Sample(logits))

	// 2.0 / 1.5 drops below 1.9
	c.Accept(1)
	assert.Equal(t, llm.Token(2), c.Sample(logits))
}

func TestChain_PenaltyWindow(t *testing.T) {
	c := New(Params{PenaltyLastN: 2, RepeatPenalty: 2})
	c.Accept(1)
	c.Accept(2)
	c.Accept(3)

	assert.Equal(t, []llm.Token{2, 3}, c.recent)
}

func TestChain_NegativeLogitPenalty(t *testing.T) {
	logits := []float32{-1.0, -1.2}

	c := New(Params{PenaltyLastN: 8, RepeatPenalty: 1.5, Temperature: 0, TopP: 1})
	c.Accept(0)

	// -1.0 * 1.5 = -1.5 < -1.2
	assert.Equal(t, llm.Token(1), c.Sample(logits))
}

func TestChain_Deterministic(t *testing.T) {
	logits := make([]float32, 32)
	for i := range logits {
		logits[i] = float32(i%7) * 0.3
	}

	run := func() []llm.Token {
		c := New(DefaultParams())
		var out []llm.Token
		for i := 0; i < 50; i++ {
			tok := c.Sample(logits)
			c.Accept(tok)
			out = append(out, tok)
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestChain_Reset(t *testing.T) {
	logits := []float32{1, 1, 1, 1}
	c := New(Params{Temperature: 1, TopP: 1, PenaltyLastN: 4, RepeatPenalty: 1.1})

	var first []llm.Token
	for i := 0; i < 8; i++ {
		first = append(first, c.Sample(logits))
	}

	c.Reset()
	var second []llm.Token
	for i := 0; i < 8; i++ {
		second = append(second, c.Sample(logits))
	}

	assert.Equal(t, first, second)
	assert.Empty(t, c.recent)
}
