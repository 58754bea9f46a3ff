package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"ragspace-go/internal/model"
	"ragspace-go/internal/pipeline"
	"ragspace-go/internal/repository"
	"ragspace-go/pkg/extract"
	"ragspace-go/pkg/kafka"
	"ragspace-go/pkg/log"
	"ragspace-go/pkg/storage"
	"ragspace-go/pkg/tasks"
	"ragspace-go/pkg/vector"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentService 管理对话内文档的完整生命周期：
// 上传（落盘、抽取、切分、嵌入、建索引、写元数据）、列表与删除。
type DocumentService struct {
	docRepo   repository.DocumentRepository
	chatRepo  repository.ChatRepository
	extractor *extract.Client
	processor *pipeline.Processor
	index     *vector.Index
	bucket    string
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	docRepo repository.DocumentRepository,
	chatRepo repository.ChatRepository,
	extractor *extract.Client,
	processor *pipeline.Processor,
	index *vector.Index,
	bucket string,
) *DocumentService {
	return &DocumentService{
		docRepo:   docRepo,
		chatRepo:  chatRepo,
		extractor: extractor,
		processor: processor,
		index:     index,
		bucket:    bucket,
	}
}

// authorizeChat 校验会话存在且归属当前用户。
// 他人的会话按不存在处理，不向外暴露会话的存在性。
func (s *DocumentService) authorizeChat(userID, chatID string) (*model.Chat, error) {
	chat, err := s.chatRepo.FindByID(chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if chat.UserID != userID {
		return nil, ErrNotFound
	}
	return chat, nil
}

// Upload 把文件接入指定会话：校验格式与重名后先把原始文件写入
// 对象存储，再走抽取、切分、嵌入、建索引，最后落文档元数据。
// 文件落盘之后的任何失败都会投递补偿任务，由后台消费者重建。
func (s *DocumentService) Upload(ctx context.Context, userID, chatID, filename string, data []byte) (*model.Document, error) {
	if _, err := s.authorizeChat(userID, chatID); err != nil {
		return nil, err
	}
	if !extract.Supported(filename) {
		return nil, ErrUnsupportedFormat
	}
	if _, err := s.docRepo.FindByChatAndName(chatID, filename); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	objectPath := chatID + "/" + filename
	if err := storage.SaveObject(ctx, s.bucket, objectPath, data); err != nil {
		return nil, fmt.Errorf("保存文件失败: %w", err)
	}

	// 文件已落盘，之后的失败交给补偿链路兜底
	text, err := s.extractor.ExtractText(bytes.NewReader(data), filename)
	if err != nil {
		s.enqueueReembed(chatID, filename, objectPath)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if err := s.processor.IndexText(ctx, chatID, filename, text); err != nil {
		s.enqueueReembed(chatID, filename, objectPath)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	doc := &model.Document{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		Name:       filename,
		Path:       objectPath,
		UploadedAt: time.Now(),
	}
	if err := s.docRepo.Create(doc); err != nil {
		s.enqueueReembed(chatID, filename, objectPath)
		return nil, err
	}
	log.Infof("文档上传完成, chatID: %s, filename: %s", chatID, filename)
	return doc, nil
}

// enqueueReembed 投递补偿任务，投递失败只记日志不再向上传播。
func (s *DocumentService) enqueueReembed(chatID, filename, objectPath string) {
	task := tasks.ReembedTask{ChatID: chatID, Filename: filename, ObjectPath: objectPath}
	if err := kafka.ProduceReembedTask(task); err != nil {
		log.Errorf("投递补偿任务失败, chatID: %s, filename: %s, err: %v", chatID, filename, err)
	}
}

// List 列出会话下的全部文档。
func (s *DocumentService) List(ctx context.Context, userID, chatID string) ([]model.Document, error) {
	if _, err := s.authorizeChat(userID, chatID); err != nil {
		return nil, err
	}
	return s.docRepo.FindByChat(chatID)
}

// Delete 按文档 ID 删除会话下的单个文档：先清理向量，再删对象与
// 元数据，保证不会出现检索得到但文件已不存在的记录。
// 归属其他会话的文档 ID 按不存在处理。
func (s *DocumentService) Delete(ctx context.Context, userID, chatID, docID string) error {
	if _, err := s.authorizeChat(userID, chatID); err != nil {
		return err
	}
	doc, err := s.docRepo.FindByID(docID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if doc.ChatID != chatID {
		return ErrNotFound
	}

	if err := s.index.Delete(ctx, chatID, doc.Name); err != nil {
		return fmt.Errorf("删除向量记录失败: %w", err)
	}
	if err := storage.RemoveObject(ctx, s.bucket, doc.Path); err != nil {
		log.Warnf("删除对象失败, path: %s, err: %v", doc.Path, err)
	}
	return s.docRepo.DeleteByID(doc.ID)
}

// PurgeChat 清理会话的全部文档痕迹：向量、对象与元数据。
// 供会话删除链路调用，调用方负责权限校验。
func (s *DocumentService) PurgeChat(ctx context.Context, chatID string) error {
	if err := s.index.DeleteByChat(ctx, chatID); err != nil {
		return fmt.Errorf("删除向量记录失败: %w", err)
	}
	docs, err := s.docRepo.FindByChat(chatID)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := storage.RemoveObject(ctx, s.bucket, doc.Path); err != nil {
			log.Warnf("删除对象失败, path: %s, err: %v", doc.Path, err)
		}
	}
	return s.docRepo.DeleteByChat(chatID)
}
