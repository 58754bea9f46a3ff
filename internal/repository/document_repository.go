package repository

import (
	"ragspace-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRepository 接口定义了文档元数据的数据操作。
type DocumentRepository interface {
	Create(document *model.Document) error
	FindByID(id string) (*model.Document, error)
	FindByChatAndName(chatID, name string) (*model.Document, error)
	FindByChat(chatID string) ([]model.Document, error)
	DeleteByID(id string) error
	DeleteByChat(chatID string) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 插入一条文档元数据记录。
func (r *documentRepository) Create(document *model.Document) error {
	return r.db.Create(document).Error
}

// FindByID 根据文档 ID 查找文档。
func (r *documentRepository) FindByID(id string) (*model.Document, error) {
	var document model.Document
	err := r.db.Where("id = ?", id).First(&document).Error
	if err != nil {
		return nil, err
	}
	return &document, nil
}

// FindByChatAndName 根据会话与文件名查找文档。
func (r *documentRepository) FindByChatAndName(chatID, name string) (*model.Document, error) {
	var document model.Document
	err := r.db.Where("chat_id = ? AND name = ?", chatID, name).First(&document).Error
	if err != nil {
		return nil, err
	}
	return &document, nil
}

// FindByChat 列出会话下的全部文档，按上传时间正序。
func (r *documentRepository) FindByChat(chatID string) ([]model.Document, error) {
	var documents []model.Document
	err := r.db.Where("chat_id = ?", chatID).Order("uploaded_at ASC").Find(&documents).Error
	return documents, err
}

// DeleteByID 根据文档 ID 删除单条文档记录。
func (r *documentRepository) DeleteByID(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Document{}).Error
}

// DeleteByChat 删除会话下的全部文档记录。
func (r *documentRepository) DeleteByChat(chatID string) error {
	return r.db.Where("chat_id = ?", chatID).Delete(&model.Document{}).Error
}
