// Package llmtest provides a deterministic in-memory backend for tests.
package llmtest

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"local-assistant/pkg/llm"
)

const (
	BOS       llm.Token = 256
	EOS       llm.Token = 257
	VocabSize           = 258

	spike = 30
)

// Backend tokenizes text as bytes and "generates" Reply byte by byte by
// putting an overwhelming logit on the next scripted token.
type Backend struct {
	mu sync.Mutex

	Reply string
	// Noise replaces the scripted reply with position-seeded logits so the sampler's draw decides.
	Noise bool

	LoadErr     error
	TokenizeErr error
	DecodeErr   error
	// BadPieces makes TokenToPiece fail for these tokens.
	BadPieces map[llm.Token]bool

	calls   []string
	prompts []string
	params  []llm.ModelParams
	open    int

	// active counts decode contexts that are open right now; peak is its maximum
	active int
	peak   int
}

func New(reply string) *Backend {
	return &Backend{Reply: reply}
}

func (b *Backend) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

// Calls lists every backend operation in order.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Prompts lists every text passed to Tokenize.
func (b *Backend) Prompts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.prompts...)
}

func (b *Backend) LastPrompt() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.prompts) == 0 {
		return ""
	}
	return b.prompts[len(b.prompts)-1]
}

func (b *Backend) LoadParams() []llm.ModelParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.ModelParams(nil), b.params...)
}

// PeakContexts reports the most decode contexts that were ever open at once.
func (b *Backend) PeakContexts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak
}

// OpenModels counts handles that were loaded and not closed.
func (b *Backend) OpenModels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *Backend) LoadModel(path string, params llm.ModelParams) (llm.Model, error) {
	b.record("load")
	if b.LoadErr != nil {
		return nil, b.LoadErr
	}
	b.mu.Lock()
	b.params = append(b.params, params)
	b.open++
	b.mu.Unlock()
	return &model{b: b, path: path}, nil
}

type model struct {
	b      *Backend
	path   string
	closed bool
}

func (m *model) Tokenize(text string) ([]llm.Token, error) {
	m.b.record("tokenize")
	if m.b.TokenizeErr != nil {
		return nil, m.b.TokenizeErr
	}

	m.b.mu.Lock()
	m.b.prompts = append(m.b.prompts, text)
	m.b.mu.Unlock()

	tokens := make([]llm.Token, 0, len(text)+1)
	tokens = append(tokens, BOS)
	for i := 0; i < len(text); i++ {
		tokens = append(tokens, llm.Token(text[i]))
	}
	return tokens, nil
}

func (m *model) TokenToPiece(token llm.Token) (string, error) {
	if m.b.BadPieces[token] {
		return "", fmt.Errorf("token %d has no piece", token)
	}
	if token < 0 || token >= 256 {
		return "", nil
	}
	return string([]byte{byte(token)}), nil
}

func (m *model) IsEndOfGeneration(token llm.Token) bool {
	return token == EOS
}

func (m *model) NewContext(params llm.ContextParams) (llm.Context, error) {
	m.b.record("new_context")
	if m.closed {
		return nil, errors.New("model closed")
	}

	m.b.mu.Lock()
	m.b.active++
	if m.b.active > m.b.peak {
		m.b.peak = m.b.active
	}
	m.b.mu.Unlock()

	return &decodeContext{b: m.b, params: params}, nil
}

func (m *model) Close() error {
	m.b.record("close")
	if !m.closed {
		m.closed = true
		m.b.mu.Lock()
		m.b.open--
		m.b.mu.Unlock()
	}
	return nil
}

type decodeContext struct {
	b      *Backend
	params llm.ContextParams

	next      int // next expected position
	generated int // single-token decodes after the prompt
	logits    [][]float32
	closed    bool
}

func (c *decodeContext) Decode(batch llm.Batch) error {
	c.b.record("decode")
	if c.b.DecodeErr != nil {
		return c.b.DecodeErr
	}
	if batch.Len() == 0 {
		return errors.New("empty batch")
	}

	// A native context is not safe for overlapping use
	c.b.mu.Lock()
	overlapping := c.b.active > 1
	c.b.mu.Unlock()
	if overlapping {
		return errors.New("decode while another context is open")
	}
	runtime.Gosched()

	if c.next > 0 {
		c.generated++
	}
	c.logits = make([][]float32, batch.Len())
	for i, pos := range batch.Positions {
		if pos != c.next {
			return fmt.Errorf("position %d out of order, want %d", pos, c.next)
		}
		c.next++
		if batch.Logits[i] {
			c.logits[i] = c.nextLogits()
		}
	}
	return nil
}

func (c *decodeContext) nextLogits() []float32 {
	logits := make([]float32, VocabSize)

	if c.b.Noise {
		// Deterministic pseudo-random values over printable bytes
		seed := uint32(c.next)*2654435761 + 1
		for i := 32; i < 127; i++ {
			seed ^= seed << 13
			seed ^= seed >> 17
			seed ^= seed << 5
			logits[i] = float32(seed%1000) / 250
		}
		return logits
	}

	target := EOS
	if c.generated < len(c.b.Reply) {
		target = llm.Token(c.b.Reply[c.generated])
	}
	logits[target] = spike
	return logits
}

func (c *decodeContext) Logits(index int) []float32 {
	if index < 0 || index >= len(c.logits) || c.logits[index] == nil {
		return make([]float32, VocabSize)
	}
	return c.logits[index]
}

func (c *decodeContext) Close() error {
	c.b.record("close_context")
	if !c.closed {
		c.closed = true
		c.b.mu.Lock()
		c.b.active--
		c.b.mu.Unlock()
	}
	return nil
}
