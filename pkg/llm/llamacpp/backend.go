//go:build llamacpp

package llamacpp

import (
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"local-assistant/pkg/llm"

	"github.com/ollama/ollama/llama"
)

// Available reports whether the binary was built with the native backend.
const Available = true

var initOnce sync.Once

type Backend struct{}

func New() *Backend {
	initOnce.Do(llama.BackendInit)
	return &Backend{}
}

func (b *Backend) LoadModel(path string, params llm.ModelParams) (llm.Model, error) {
	layers := params.GPULayers
	if layers == llm.AllLayers {
		layers = 999
	}

	m, err := llama.LoadModelFromFile(path, llama.ModelParams{
		NumGpuLayers: layers,
		MainGpu:      params.MainGPU,
		UseMmap:      true,
	})
	if err != nil {
		return nil, err
	}
	return &model{m: m}, nil
}

// model keeps one native context per loaded model and clears its KV cache
// between generations.
type model struct {
	m    *llama.Model
	ctx  *llama.Context
	opts llm.ContextParams
}

func (m *model) Tokenize(text string) ([]llm.Token, error) {
	ids, err := m.m.Tokenize(text, true, true)
	if err != nil {
		return nil, err
	}
	tokens := make([]llm.Token, len(ids))
	for i, id := range ids {
		tokens[i] = llm.Token(id)
	}
	return tokens, nil
}

func (m *model) TokenToPiece(token llm.Token) (string, error) {
	piece := m.m.TokenToPiece(int(token))
	if !utf8.ValidString(piece) {
		return "", fmt.Errorf("token %d is not valid utf-8", token)
	}
	return piece, nil
}

func (m *model) IsEndOfGeneration(token llm.Token) bool {
	return m.m.TokenIsEog(int(token))
}

func (m *model) NewContext(params llm.ContextParams) (llm.Context, error) {
	if m.ctx == nil || params != m.opts {
		c, err := llama.NewContextWithModel(m.m, llama.NewContextParams(params.ContextSize, params.BatchSize, 1, params.Threads, false, ""))
		if err != nil {
			return nil, err
		}
		m.ctx = c
		m.opts = params
	}
	m.ctx.KvCacheClear()
	return &decodeContext{ctx: m.ctx, batchSize: params.BatchSize}, nil
}

func (m *model) Close() error {
	if m.m == nil {
		return errors.New("model already closed")
	}
	llama.FreeModel(m.m)
	m.m = nil
	m.ctx = nil
	return nil
}

type decodeContext struct {
	ctx       *llama.Context
	batchSize int
	batch     *llama.Batch
}

func (c *decodeContext) Decode(b llm.Batch) error {
	if b.Len() > c.batchSize {
		return fmt.Errorf("batch of %d exceeds %d", b.Len(), c.batchSize)
	}
	if c.batch == nil {
		batch, err := llama.NewBatch(c.batchSize, 1, 0)
		if err != nil {
			return err
		}
		c.batch = batch
	}

	c.batch.Clear()
	for i, tok := range b.Tokens {
		c.batch.Add(int(tok), nil, b.Positions[i], b.Logits[i], 0)
	}
	return c.ctx.Decode(c.batch)
}

func (c *decodeContext) Logits(index int) []float32 {
	return c.ctx.GetLogitsIth(index)
}

func (c *decodeContext) Close() error {
	if c.batch != nil {
		c.batch.Free()
		c.batch = nil
	}
	return nil
}
