package model

import "time"

// Setting is a flat key-value pair.
type Setting struct {
	Key       string    `gorm:"type:varchar(100);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Setting) TableName() string {
	return "settings"
}
