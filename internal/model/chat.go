package model

import "time"

// Chat 对应于数据库中的 'chats' 表，代表一个归属于工作区的对话。
type Chat struct {
	ID          string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID      string    `gorm:"type:char(36);index;not null" json:"userId"`
	WorkspaceID string    `gorm:"type:char(36);index;not null" json:"workspaceId"`
	Title       string    `gorm:"type:varchar(255)" json:"title"`
	Model       string    `gorm:"type:varchar(64);not null" json:"model"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Chat) TableName() string {
	return "chats"
}

// Message 对应于 'messages' 表。
// 一条记录是一轮完整的问答，写入后不再修改，按创建时间追加。
type Message struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:char(36);index;not null" json:"userId"`
	ChatID    string    `gorm:"type:char(36);index;not null" json:"chatId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Response  string    `gorm:"type:text;not null" json:"response"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

// MemoryEntry 代表存储在 Redis 中的一轮短期记忆。
// 权威历史在 messages 表中，MemoryEntry 仅是近期上下文的缓存。
type MemoryEntry struct {
	Msg string `json:"msg"`
	Res string `json:"res"`
}
