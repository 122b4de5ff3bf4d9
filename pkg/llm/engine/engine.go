package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"local-assistant/internal/pkg/logger"
	"local-assistant/pkg/llm"
	"local-assistant/pkg/llm/sampler"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const module = "ENGINE"

var (
	ErrNotLoaded       = errors.New("model not loaded")
	ErrModelNotFound   = errors.New("model file not found")
	ErrTokenize        = errors.New("tokenize failed")
	ErrDecode          = errors.New("decode failed")
	ErrContextOverflow = errors.New("prompt exceeds context window")
)

type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// Engine owns the single native model handle. The handle is only reachable
// while holding mu; load, generate and unload are fully serialized.
type Engine struct {
	backend     llm.Backend
	logger      logger.ILogger
	traceLogger logger.ILogger
	tracer      trace.Tracer

	state atomic.Int32

	mu     sync.Mutex
	model  llm.Model
	loaded Config

	cfgMu sync.RWMutex
	cfg   Config

	historyMu sync.Mutex
	history   []llm.Message
}

type EngineOption func(*Engine)

func WithLogger(l logger.ILogger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTraceLogger routes per-generation records to a separate log.
func WithTraceLogger(l logger.ILogger) EngineOption {
	return func(e *Engine) {
		e.traceLogger = l
	}
}

func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

func New(backend llm.Backend, cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		backend: backend,
		cfg:     cfg,
		logger:  logger.NewNopLogger(),
		tracer:  otel.Tracer("local-assistant/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.traceLogger == nil {
		e.traceLogger = e.logger
	}
	return e
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) IsLoaded() bool {
	return e.State() == StateLoaded
}

func (e *Engine) Config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// SetConfig replaces the configuration. Sampling settings apply to the next
// generation; model, context and GPU settings apply on the next Reload.
func (e *Engine) SetConfig(cfg Config) {
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()
}

// LoadedConfig is the configuration the current handle was loaded with.
func (e *Engine) LoadedConfig() (Config, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded, e.model != nil
}

// Load is a no-op when a model is already loaded.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		return nil
	}
	return e.loadLocked(ctx, e.Config())
}

// Reload replaces the loaded handle using the current configuration.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.loadLocked(ctx, e.Config())
}

func (e *Engine) loadLocked(ctx context.Context, cfg Config) error {
	_, span := e.tracer.Start(ctx, "engine.load", trace.WithAttributes(
		attribute.String("model.path", cfg.ModelPath),
		attribute.Bool("gpu.enabled", cfg.GPU.Enabled),
	))
	defer span.End()

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		err = fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	e.releaseLocked()
	e.state.Store(int32(StateLoading))

	params := llm.ModelParams{}
	if cfg.GPU.Enabled {
		params.GPULayers = cfg.GPU.Layers
		params.MainGPU = cfg.GPU.Device
	}

	start := time.Now()
	m, err := e.backend.LoadModel(cfg.ModelPath, params)
	if err != nil {
		e.state.Store(int32(StateUnloaded))
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		e.logger.Error(module, "Failed to load model", map[string]interface{}{
			"path":  cfg.ModelPath,
			"error": err,
		})
		return fmt.Errorf("load model %s: %w", cfg.ModelPath, err)
	}

	e.model = m
	e.loaded = cfg
	e.state.Store(int32(StateLoaded))

	e.logger.Info(module, "Model loaded", map[string]interface{}{
		"path":         cfg.ModelPath,
		"context_size": cfg.ContextSize,
		"threads":      cfg.Threads,
		"gpu_layers":   params.GPULayers,
		"main_gpu":     params.MainGPU,
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return nil
}

// Unload releases the native handle. It always succeeds.
func (e *Engine) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.releaseLocked()
	e.logger.Info(module, "Model unloaded", nil)
}

func (e *Engine) releaseLocked() {
	if e.model != nil {
		if err := e.model.Close(); err != nil {
			e.logger.Warn(module, "Failed to release model", map[string]interface{}{"error": err.Error()})
		}
		e.model = nil
		e.loaded = Config{}
	}
	e.state.Store(int32(StateUnloaded))
}

// Generate continues the engine's own conversation with a new user turn.
// The buffer is committed only after a successful generation.
func (e *Engine) Generate(ctx context.Context, prompt string, opts ...llm.Option) (*Result, error) {
	if !e.IsLoaded() {
		return nil, ErrNotLoaded
	}

	userTurn := llm.Message{Role: llm.RoleUser, Content: prompt}

	e.historyMu.Lock()
	turns := append(slices.Clone(e.history), userTurn)
	e.historyMu.Unlock()

	res, raw, err := e.run(ctx, "engine.generate", llm.RenderChat(turns), llm.ApplyOptions(opts...))
	if err != nil {
		return nil, err
	}

	e.historyMu.Lock()
	e.history = append(e.history, userTurn, llm.Message{Role: llm.RoleAssistant, Content: raw})
	e.historyMu.Unlock()

	return res, nil
}

// GenerateStream behaves like Generate and reports each decoded piece to onChunk.
func (e *Engine) GenerateStream(ctx context.Context, prompt string, onChunk func(piece string) error, opts ...llm.Option) (*Result, error) {
	return e.Generate(ctx, prompt, append(opts, llm.WithOnChunk(onChunk))...)
}

// GenerateWithContext answers a caller-rendered transcript as a single user
// turn. The engine buffer is neither read nor written.
func (e *Engine) GenerateWithContext(ctx context.Context, transcript string, opts ...llm.Option) (*Result, error) {
	if !e.IsLoaded() {
		return nil, ErrNotLoaded
	}

	prompt := llm.RenderChat([]llm.Message{{Role: llm.RoleUser, Content: transcript}})
	res, _, err := e.run(ctx, "engine.generate_with_context", prompt, llm.ApplyOptions(opts...))
	return res, err
}

func (e *Engine) ClearConversation() {
	e.historyMu.Lock()
	e.history = nil
	e.historyMu.Unlock()
}

// ConversationHistory renders the engine buffer in the chat template.
func (e *Engine) ConversationHistory() string {
	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	return llm.RenderHistory(e.history)
}

func (e *Engine) run(ctx context.Context, spanName, prompt string, o llm.Options) (*Result, string, error) {
	ctx, span := e.tracer.Start(ctx, spanName)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model == nil {
		return nil, "", ErrNotLoaded
	}

	cfg := e.Config()
	maxTokens := cfg.MaxTokens
	if o.MaxTokens > 0 {
		maxTokens = o.MaxTokens
	}
	params := cfg.SamplerParams()
	if o.Temperature != nil {
		params.Temperature = float32(*o.Temperature)
	}

	start := time.Now()
	raw, generated, completed, err := e.decodeLoop(ctx, prompt, maxTokens, params, o.OnChunk)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		e.logger.Error(module, "Generation failed", map[string]interface{}{"error": err})
		return nil, "", err
	}

	span.SetAttributes(
		attribute.Int("tokens.generated", generated),
		attribute.Bool("completed", completed),
	)
	e.traceLogger.Debug(module, "Generation finished", map[string]interface{}{
		"prompt":           prompt,
		"response":         raw,
		"tokens_generated": generated,
		"completed":        completed,
		"duration_ms":      time.Since(start).Milliseconds(),
	})

	return &Result{
		Text:            strings.TrimSpace(raw),
		TokensGenerated: generated,
		ToolCalls:       []ToolCall{},
		Completed:       completed,
	}, raw, nil
}

func (e *Engine) decodeLoop(ctx context.Context, prompt string, maxTokens int, params sampler.Params, onChunk func(string) error) (string, int, bool, error) {
	tokens, err := e.model.Tokenize(prompt)
	if err != nil {
		return "", 0, false, fmt.Errorf("%w: %v", ErrTokenize, err)
	}
	if len(tokens) == 0 {
		return "", 0, false, fmt.Errorf("%w: empty token sequence", ErrTokenize)
	}

	ctxSize := e.loaded.ContextSize
	if ctxSize > 0 && len(tokens) >= ctxSize {
		return "", 0, false, fmt.Errorf("%w: %d tokens, window %d", ErrContextOverflow, len(tokens), ctxSize)
	}

	lctx, err := e.model.NewContext(llm.ContextParams{
		ContextSize: ctxSize,
		BatchSize:   max(ctxSize, len(tokens)),
		Threads:     e.loaded.Threads,
	})
	if err != nil {
		return "", 0, false, fmt.Errorf("%w: create context: %v", ErrDecode, err)
	}
	defer lctx.Close()

	prompt0 := llm.NewPromptBatch(tokens)
	if err := lctx.Decode(prompt0); err != nil {
		return "", 0, false, fmt.Errorf("%w: prompt: %v", ErrDecode, err)
	}

	chain := sampler.New(params)
	logitIndex := prompt0.Len() - 1

	var out strings.Builder
	generated := 0
	completed := true

	for i := 0; i < maxTokens; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, false, err
		}

		token := chain.Sample(lctx.Logits(logitIndex))
		chain.Accept(token)

		if e.model.IsEndOfGeneration(token) {
			break
		}
		generated++

		piece, err := e.model.TokenToPiece(token)
		if err != nil {
			e.logger.Warn(module, "Skipping token that failed to convert", map[string]interface{}{
				"token": token,
				"error": err.Error(),
			})
		} else {
			out.WriteString(piece)
			if onChunk != nil {
				if err := onChunk(piece); err != nil {
					return "", 0, false, err
				}
			}
		}

		pos := len(tokens) + i
		if ctxSize > 0 && pos >= ctxSize {
			completed = false
			break
		}
		if err := lctx.Decode(llm.NewTokenBatch(token, pos)); err != nil {
			return "", 0, false, fmt.Errorf("%w: token %d at %d: %v", ErrDecode, token, pos, err)
		}
		logitIndex = 0
	}

	return out.String(), generated, completed, nil
}
