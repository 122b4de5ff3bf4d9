package model

import "time"

type Conversation struct {
	Id        string    `gorm:"type:varchar(36);primaryKey"`
	Title     string    `gorm:"type:text;not null"`
	ModelName string    `gorm:"type:varchar(255);not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false;index:idx_conversations_updated_at,sort:desc"`

	Messages []Message `gorm:"foreignKey:ConversationId;references:Id;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (Conversation) TableName() string {
	return "conversations"
}
