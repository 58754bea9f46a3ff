package repository

import (
	"ragspace-go/internal/model"

	"gorm.io/gorm"
)

// ChatRepository 接口定义了会话与消息记录的数据操作。
type ChatRepository interface {
	Create(chat *model.Chat) error
	FindByID(id string) (*model.Chat, error)
	FindByWorkspaceAndUser(workspaceID, userID string) ([]model.Chat, error)
	UpdateTitle(id, title string) error
	Delete(id string) error
	CreateMessage(message *model.Message) error
	FindMessages(chatID string) ([]model.Message, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// Create 在数据库中插入一个新的会话记录。
func (r *chatRepository) Create(chat *model.Chat) error {
	return r.db.Create(chat).Error
}

// FindByID 根据 ID 查找会话。
func (r *chatRepository) FindByID(id string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.Where("id = ?", id).First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// FindByWorkspaceAndUser 列出用户在指定工作区下的全部会话，按创建时间倒序。
func (r *chatRepository) FindByWorkspaceAndUser(workspaceID, userID string) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Order("created_at DESC").Find(&chats).Error
	return chats, err
}

// UpdateTitle 更新会话标题。
func (r *chatRepository) UpdateTitle(id, title string) error {
	return r.db.Model(&model.Chat{}).Where("id = ?", id).Update("title", title).Error
}

// Delete 删除会话及其全部消息记录，在同一事务中完成。
func (r *chatRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Chat{}).Error
	})
}

// CreateMessage 插入一条消息记录。
func (r *chatRepository) CreateMessage(message *model.Message) error {
	return r.db.Create(message).Error
}

// FindMessages 按时间正序返回会话的全部消息记录。
func (r *chatRepository) FindMessages(chatID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.Where("chat_id = ?", chatID).Order("created_at ASC").Find(&messages).Error
	return messages, err
}
