package llm

// Token is a vocabulary id.
type Token = int32

// AllLayers offloads every layer to the GPU.
const AllLayers = -1

type ModelParams struct {
	GPULayers int
	MainGPU   int
}

type ContextParams struct {
	ContextSize int
	BatchSize   int
	Threads     int
}

// Backend loads model files into native handles.
type Backend interface {
	LoadModel(path string, params ModelParams) (Model, error)
}

// Model is a loaded native model. Implementations are not safe for concurrent use.
type Model interface {
	// Tokenize always prepends the beginning-of-sequence token.
	Tokenize(text string) ([]Token, error)
	TokenToPiece(token Token) (string, error)
	IsEndOfGeneration(token Token) bool
	NewContext(params ContextParams) (Context, error)
	Close() error
}

// Context holds the decode state of a single sequence.
type Context interface {
	Decode(batch Batch) error
	// Logits returns the logits computed for the batch entry at index.
	Logits(index int) []float32
	Close() error
}

// Batch is a single-sequence decode unit.
type Batch struct {
	Tokens    []Token
	Positions []int
	Logits    []bool
}

// NewPromptBatch positions tokens at 0..n-1 and requests logits for the last one only.
func NewPromptBatch(tokens []Token) Batch {
	b := Batch{
		Tokens:    make([]Token, len(tokens)),
		Positions: make([]int, len(tokens)),
		Logits:    make([]bool, len(tokens)),
	}
	copy(b.Tokens, tokens)
	for i := range tokens {
		b.Positions[i] = i
	}
	if len(tokens) > 0 {
		b.Logits[len(tokens)-1] = true
	}
	return b
}

func NewTokenBatch(token Token, pos int) Batch {
	return Batch{
		Tokens:    []Token{token},
		Positions: []int{pos},
		Logits:    []bool{true},
	}
}

func (b Batch) Len() int {
	return len(b.Tokens)
}
