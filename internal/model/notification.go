package model

// swagger:model Notification
type Notification struct {
	BaseModel

	UserID  uint   `gorm:"index;type:bigint unsigned" json:"userId"`
	Type    string `gorm:"size:50" json:"type"` // quiz_completed, quiz_published, system
	Title   string `gorm:"size:255" json:"title"`
	Content string `gorm:"type:text" json:"content"`
	IsRead  bool   `gorm:"default:false;index" json:"isRead"`
}

func (Notification) TableName() string {
	return "notifications"
}
