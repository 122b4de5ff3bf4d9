package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"local-assistant/internal/constant"
	"local-assistant/internal/pkg/logger"
	"local-assistant/pkg/llm/engine"
	"local-assistant/pkg/modelfs"

	"go.opentelemetry.io/otel/attribute"
)

type GPUInfo struct {
	Enabled   bool   `json:"enabled"`
	Layers    int    `json:"layers"`
	Device    int    `json:"device"`
	AllLayers bool   `json:"all_layers"`
	Backend   string `json:"backend"`
}

type LLMStatus struct {
	State        string  `json:"state"`
	Loaded       bool    `json:"loaded"`
	CurrentModel string  `json:"current_model"`
	ModelPath    string  `json:"model_path"`
	ContextSize  int     `json:"context_size"`
	Threads      int     `json:"threads"`
	GPU          GPUInfo `json:"gpu"`
}

// ILLMService owns the model lifecycle and the model files it loads from.
type ILLMService interface {
	Initialize(ctx context.Context, modelName string) error
	SwitchModel(ctx context.Context, modelName string) error
	// RestoreLastModel loads the model remembered in settings, if any
	RestoreLastModel(ctx context.Context) error
	CurrentModel() string
	Status() LLMStatus
	Unload()
	UpdateGPUSettings(ctx context.Context, gpu engine.GPUConfig) error
	GPUInfo() GPUInfo
	ClearConversation()
	ConversationHistory() string

	ListModels() ([]modelfs.ModelFile, error)
	DeleteModel(name string) error
}

type llmService struct {
	engine          *engine.Engine
	models          *modelfs.Manager
	sessionService  ISessionService
	settingsService ISettingsService
	backendName     string
	logger          logger.ILogger
}

func NewLLMService(
	engine *engine.Engine,
	models *modelfs.Manager,
	sessionService ISessionService,
	settingsService ISettingsService,
	backendName string,
	logger logger.ILogger,
) ILLMService {
	return &llmService{
		engine:          engine,
		models:          models,
		sessionService:  sessionService,
		settingsService: settingsService,
		backendName:     backendName,
		logger:          logger,
	}
}

func (s *llmService) Initialize(ctx context.Context, modelName string) error {
	return s.loadModel(ctx, modelName, false)
}

func (s *llmService) SwitchModel(ctx context.Context, modelName string) error {
	return s.loadModel(ctx, modelName, true)
}

func (s *llmService) loadModel(ctx context.Context, modelName string, reload bool) (err error) {
	ctx, span := startSpan(ctx, "llm.load_model",
		attribute.String("model.name", modelName),
		attribute.Bool("reload", reload),
	)
	defer func() { finishSpan(span, err) }()

	if !s.models.Exists(modelName) {
		return fmt.Errorf("%w: %s", ErrModelFileAbsent, modelName)
	}
	path, err := s.models.Path(modelName)
	if err != nil {
		return err
	}

	cfg := s.engine.Config()
	cfg.ModelPath = path
	s.applySamplingSettings(ctx, &cfg)
	s.engine.SetConfig(cfg)

	if reload || s.loadedPath() != path {
		err = s.engine.Reload(ctx)
	} else {
		err = s.engine.Load(ctx)
	}
	if err != nil {
		return err
	}

	if err := s.settingsService.SetCurrentModel(ctx, modelName); err != nil {
		s.logger.Warn("LLM", "Failed to persist current model", map[string]interface{}{
			"model": modelName,
			"error": err.Error(),
		})
	}
	s.sessionService.SetCurrentModel(modelName)

	s.logger.Info("LLM", "Model ready", map[string]interface{}{
		"model":  modelName,
		"reload": reload,
	})
	return nil
}

func (s *llmService) loadedPath() string {
	loaded, ok := s.engine.LoadedConfig()
	if !ok {
		return ""
	}
	return loaded.ModelPath
}

// applySamplingSettings overrides sampling values the user has stored.
func (s *llmService) applySamplingSettings(ctx context.Context, cfg *engine.Config) {
	if _, ok, _ := s.settingsService.Get(ctx, constant.SettingTemperature); ok {
		cfg.Temperature, _ = s.settingsService.Temperature(ctx)
	}
	if _, ok, _ := s.settingsService.Get(ctx, constant.SettingTopP); ok {
		cfg.TopP, _ = s.settingsService.TopP(ctx)
	}
	if _, ok, _ := s.settingsService.Get(ctx, constant.SettingTopK); ok {
		cfg.TopK, _ = s.settingsService.TopK(ctx)
	}
	if _, ok, _ := s.settingsService.Get(ctx, constant.SettingRepeatPenalty); ok {
		cfg.RepeatPenalty, _ = s.settingsService.RepeatPenalty(ctx)
	}
}

func (s *llmService) RestoreLastModel(ctx context.Context) error {
	name, ok, err := s.settingsService.CurrentModel(ctx)
	if err != nil || !ok || name == "" {
		return err
	}
	if !s.models.Exists(name) {
		s.logger.Warn("LLM", "Remembered model is missing", map[string]interface{}{"model": name})
		return nil
	}
	return s.Initialize(ctx, name)
}

func (s *llmService) CurrentModel() string {
	return s.sessionService.CurrentModel()
}

func (s *llmService) Status() LLMStatus {
	cfg := s.engine.Config()
	if loaded, ok := s.engine.LoadedConfig(); ok {
		cfg = loaded
	}

	return LLMStatus{
		State:        s.engine.State().String(),
		Loaded:       s.engine.IsLoaded(),
		CurrentModel: s.CurrentModel(),
		ModelPath:    cfg.ModelPath,
		ContextSize:  cfg.ContextSize,
		Threads:      cfg.Threads,
		GPU:          s.GPUInfo(),
	}
}

func (s *llmService) Unload() {
	s.engine.Unload()
}

// UpdateGPUSettings stores the new GPU settings and reloads if a model is loaded.
func (s *llmService) UpdateGPUSettings(ctx context.Context, gpu engine.GPUConfig) error {
	cfg := s.engine.Config()
	cfg.GPU = gpu
	s.engine.SetConfig(cfg)

	if !s.engine.IsLoaded() {
		return nil
	}

	s.logger.Info("LLM", "Reloading model with new GPU settings", map[string]interface{}{
		"enabled": gpu.Enabled,
		"layers":  gpu.Layers,
		"device":  gpu.Device,
	})
	return s.engine.Reload(ctx)
}

func (s *llmService) GPUInfo() GPUInfo {
	gpu := s.engine.Config().GPU
	return GPUInfo{
		Enabled:   gpu.Enabled,
		Layers:    gpu.Layers,
		Device:    gpu.Device,
		AllLayers: gpu.OffloadsAllLayers(),
		Backend:   s.backendName,
	}
}

func (s *llmService) ClearConversation() {
	s.engine.ClearConversation()
}

func (s *llmService) ConversationHistory() string {
	return s.engine.ConversationHistory()
}

func (s *llmService) ListModels() ([]modelfs.ModelFile, error) {
	return s.models.List()
}

// DeleteModel unloads the engine first when it holds the file.
func (s *llmService) DeleteModel(name string) error {
	path, err := s.models.Path(name)
	if err != nil {
		return err
	}
	if loaded := s.loadedPath(); loaded != "" && filepath.Clean(loaded) == filepath.Clean(path) {
		s.engine.Unload()
	}

	if err := s.models.Delete(name); err != nil {
		if errors.Is(err, modelfs.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrModelFileAbsent, name)
		}
		return err
	}

	s.logger.Info("LLM", "Model file deleted", map[string]interface{}{"model": name})
	return nil
}
