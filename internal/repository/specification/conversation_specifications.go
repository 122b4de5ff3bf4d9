package specification

import "gorm.io/gorm"

// ByConversationID filters messages of one conversation
type ByConversationID struct {
	ConversationID string
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

// Chronological orders messages by creation time. The id breaks ties
// between messages created within the same clock tick.
type Chronological struct {
	Desc bool
}

func (s Chronological) Apply(db *gorm.DB) *gorm.DB {
	if s.Desc {
		return db.Order("created_at DESC").Order("id DESC")
	}
	return db.Order("created_at ASC").Order("id ASC")
}

// MostRecentlyUpdated orders conversations newest first
type MostRecentlyUpdated struct{}

func (s MostRecentlyUpdated) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("updated_at DESC").Order("id ASC")
}
