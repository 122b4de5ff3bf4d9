package engine

import (
	"local-assistant/pkg/llm"
	"local-assistant/pkg/llm/sampler"
)

// penaltyWindow is the number of recent tokens the repetition penalties look at.
const penaltyWindow = 64

type GPUConfig struct {
	Enabled bool `json:"enabled"`
	// Layers to offload; llm.AllLayers offloads everything
	Layers int `json:"layers"`
	Device int `json:"device"`
}

type Config struct {
	ModelPath     string    `json:"model_path"`
	ContextSize   int       `json:"context_size"`
	Threads       int       `json:"threads"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   float64   `json:"temperature"`
	TopP          float64   `json:"top_p"`
	TopK          int       `json:"top_k"`
	RepeatPenalty float64   `json:"repeat_penalty"`
	GPU           GPUConfig `json:"gpu"`
}

func DefaultConfig() Config {
	return Config{
		ModelPath:     "models/Qwen3-1.7B-IQ4_XS.gguf",
		ContextSize:   2048,
		Threads:       4,
		MaxTokens:     512,
		Temperature:   0.8,
		TopP:          0.9,
		TopK:          40,
		RepeatPenalty: 1.1,
	}
}

func (c Config) SamplerParams() sampler.Params {
	return sampler.Params{
		PenaltyLastN:  penaltyWindow,
		RepeatPenalty: float32(c.RepeatPenalty),
		TopK:          c.TopK,
		TopP:          float32(c.TopP),
		MinKeep:       1,
		Temperature:   float32(c.Temperature),
		Seed:          0,
	}
}

// OffloadsAllLayers reports whether every layer goes to the GPU.
func (g GPUConfig) OffloadsAllLayers() bool {
	return g.Enabled && g.Layers == llm.AllLayers
}

type ToolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type Result struct {
	Text            string     `json:"text"`
	TokensGenerated int        `json:"tokens_generated"`
	ToolCalls       []ToolCall `json:"tool_calls"`
	Completed       bool       `json:"completed"`
}
