package mapper

import (
	"local-assistant/internal/entity"
	"local-assistant/internal/model"
)

type SettingMapper struct{}

func NewSettingMapper() *SettingMapper {
	return &SettingMapper{}
}

func (m *SettingMapper) ToEntity(s *model.Setting) *entity.Setting {
	if s == nil {
		return nil
	}
	return &entity.Setting{
		Key:       s.Key,
		Value:     s.Value,
		UpdatedAt: s.UpdatedAt.UTC(),
	}
}

func (m *SettingMapper) ToModel(s *entity.Setting) *model.Setting {
	if s == nil {
		return nil
	}
	return &model.Setting{
		Key:       s.Key,
		Value:     s.Value,
		UpdatedAt: s.UpdatedAt,
	}
}
