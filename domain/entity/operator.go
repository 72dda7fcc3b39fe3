package entity

import "time"

// Operator Clerk 用户同步表（编辑器操作员）
type Operator struct {
	ID        string `gorm:"primaryKey;size:64"` // Clerk user_id
	Email     string `gorm:"size:255"`
	Name      string `gorm:"size:100"`
	AvatarURL string `gorm:"size:500"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
