package service

import (
	"context"
	"strconv"

	"local-assistant/internal/constant"
	"local-assistant/internal/entity"
	"local-assistant/internal/pkg/logger"
	"local-assistant/internal/repository/memory"
	"local-assistant/internal/repository/unitofwork"

	"go.opentelemetry.io/otel/attribute"
)

// ISettingsService is a flat key-value store with typed accessors.
type ISettingsService interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	ListAll(ctx context.Context) ([]*entity.Setting, error)

	CurrentModel(ctx context.Context) (string, bool, error)
	SetCurrentModel(ctx context.Context, name string) error
	LastSessionID(ctx context.Context) (string, bool, error)
	SetLastSessionID(ctx context.Context, id string) error
	Temperature(ctx context.Context) (float64, error)
	TopP(ctx context.Context) (float64, error)
	TopK(ctx context.Context) (int, error)
	RepeatPenalty(ctx context.Context) (float64, error)
}

type settingsService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *memory.SettingCache
	logger     logger.ILogger
}

func NewSettingsService(uowFactory unitofwork.RepositoryFactory, cache *memory.SettingCache, logger logger.ILogger) ISettingsService {
	return &settingsService{
		uowFactory: uowFactory,
		cache:      cache,
		logger:     logger,
	}
}

func (s *settingsService) Get(ctx context.Context, key string) (string, bool, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, true, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	setting, err := uow.SettingRepository().FindByKey(ctx, key)
	if err != nil {
		return "", false, storeError("get setting", err)
	}
	if setting == nil {
		return "", false, nil
	}

	s.cache.Save(key, setting.Value)
	return setting.Value, true, nil
}

func (s *settingsService) Set(ctx context.Context, key, value string) (err error) {
	ctx, span := startSpan(ctx, "settings.set", attribute.String("setting.key", key))
	defer func() { finishSpan(span, err) }()

	uow := s.uowFactory.NewUnitOfWork(ctx)

	err = uow.SettingRepository().Upsert(ctx, &entity.Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: now(),
	})
	if err != nil {
		s.cache.Delete(key)
		return storeError("set setting", err)
	}

	s.cache.Save(key, value)
	return nil
}

func (s *settingsService) Delete(ctx context.Context, key string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	s.cache.Delete(key)
	if err := uow.SettingRepository().Delete(ctx, key); err != nil {
		return storeError("delete setting", err)
	}
	return nil
}

func (s *settingsService) ListAll(ctx context.Context) ([]*entity.Setting, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	settings, err := uow.SettingRepository().FindAll(ctx)
	if err != nil {
		return nil, storeError("list settings", err)
	}
	return settings, nil
}

func (s *settingsService) CurrentModel(ctx context.Context) (string, bool, error) {
	return s.Get(ctx, constant.SettingCurrentModel)
}

func (s *settingsService) SetCurrentModel(ctx context.Context, name string) error {
	return s.Set(ctx, constant.SettingCurrentModel, name)
}

func (s *settingsService) LastSessionID(ctx context.Context) (string, bool, error) {
	return s.Get(ctx, constant.SettingLastSessionID)
}

func (s *settingsService) SetLastSessionID(ctx context.Context, id string) error {
	return s.Set(ctx, constant.SettingLastSessionID, id)
}

func (s *settingsService) Temperature(ctx context.Context) (float64, error) {
	return s.float(ctx, constant.SettingTemperature, constant.DefaultTemperature)
}

func (s *settingsService) TopP(ctx context.Context) (float64, error) {
	return s.float(ctx, constant.SettingTopP, constant.DefaultTopP)
}

func (s *settingsService) TopK(ctx context.Context) (int, error) {
	v, ok, err := s.Get(ctx, constant.SettingTopK)
	if err != nil || !ok {
		return constant.DefaultTopK, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		s.warnMalformed(constant.SettingTopK, v)
		return constant.DefaultTopK, nil
	}
	return n, nil
}

func (s *settingsService) RepeatPenalty(ctx context.Context) (float64, error) {
	return s.float(ctx, constant.SettingRepeatPenalty, constant.DefaultRepeatPenalty)
}

func (s *settingsService) float(ctx context.Context, key string, fallback float64) (float64, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return fallback, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		s.warnMalformed(key, v)
		return fallback, nil
	}
	return f, nil
}

func (s *settingsService) warnMalformed(key, value string) {
	s.logger.Warn("SETTINGS", "Malformed setting, using default", map[string]interface{}{
		"key":   key,
		"value": value,
	})
}
