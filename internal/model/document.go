package model

import "time"

// Document 对应于数据库中的 'documents' 表。
// 只有在文件落盘、向量写入与元数据提交全部完成后，记录才算生效。
type Document struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"id"`
	ChatID     string    `gorm:"type:char(36);index;not null" json:"chatId"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Path       string    `gorm:"type:varchar(512);not null" json:"path"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploadedAt"`
}

func (Document) TableName() string {
	return "documents"
}
