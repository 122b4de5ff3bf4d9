package dto

type ModelRequest struct {
	ModelName string `json:"model_name" validate:"required"`
}

type GPUSettingsRequest struct {
	Enabled bool `json:"enabled"`
	// -1 offloads every layer
	Layers int `json:"layers" validate:"gte=-1"`
	Device int `json:"device" validate:"gte=0"`
}

type GenerateResponse struct {
	Text            string `json:"text"`
	TokensGenerated int    `json:"tokens_generated"`
	Completed       bool   `json:"completed"`
}

type HistoryResponse struct {
	History string `json:"history"`
}

// StreamRequest is the first frame a stream client sends.
type StreamRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// StreamFrame is one server frame on the stream socket: "chunk", "done" or "error".
type StreamFrame struct {
	Type    string            `json:"type"`
	Content string            `json:"content,omitempty"`
	Result  *GenerateResponse `json:"result,omitempty"`
}
