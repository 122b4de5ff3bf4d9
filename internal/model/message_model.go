package model

import (
	"time"

	"gorm.io/datatypes"
)

type Message struct {
	Id             int64             `gorm:"primaryKey;autoIncrement"`
	ConversationId string            `gorm:"type:varchar(36);not null;index:idx_messages_conversation_id"`
	Role           string            `gorm:"type:varchar(16);not null;check:chk_messages_role,role IN ('system','user','assistant','tool')"`
	Content        string            `gorm:"type:text;not null"`
	Tokens         *int              `gorm:"column:tokens"`
	Metadata       datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt      time.Time         `gorm:"not null;index:idx_messages_created_at"`
}

func (Message) TableName() string {
	return "messages"
}
