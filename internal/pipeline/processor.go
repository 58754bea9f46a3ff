package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"ragspace-go/internal/model"
	"ragspace-go/internal/repository"
	"ragspace-go/pkg/embedding"
	"ragspace-go/pkg/extract"
	"ragspace-go/pkg/log"
	"ragspace-go/pkg/storage"
	"ragspace-go/pkg/tasks"
	"ragspace-go/pkg/vector"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Processor 负责把文档文本转换为向量记录并写入索引，
// 同时作为 Kafka 补偿任务的处理器，重建失败上传的向量数据。
type Processor struct {
	embedder  embedding.Client
	index     *vector.Index
	extractor *extract.Client
	docRepo   repository.DocumentRepository
	bucket    string
	chunkSize int

	// 对象存储访问，默认走 MinIO 全局客户端
	readObject   func(ctx context.Context, bucket, object string) ([]byte, error)
	objectExists func(ctx context.Context, bucket, object string) (bool, error)
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	embedder embedding.Client,
	index *vector.Index,
	extractor *extract.Client,
	docRepo repository.DocumentRepository,
	bucket string,
	chunkSize int,
) *Processor {
	return &Processor{
		embedder:     embedder,
		index:        index,
		extractor:    extractor,
		docRepo:      docRepo,
		bucket:       bucket,
		chunkSize:    chunkSize,
		readObject:   storage.ReadObject,
		objectExists: storage.ObjectExists,
	}
}

// IndexText 将整篇文本切分、逐段嵌入并写入向量索引。
// 任一片段嵌入失败则整体失败，不写入任何记录。
func (p *Processor) IndexText(ctx context.Context, chatID, filename, text string) error {
	chunks := SplitText(text, p.chunkSize)
	if len(chunks) == 0 {
		log.Warnf("文档内容为空，跳过向量写入, chatID: %s, filename: %s", chatID, filename)
		return nil
	}

	records := make([]vector.Record, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := p.embedder.CreateEmbedding(ctx, chunk)
		if err != nil {
			return fmt.Errorf("嵌入第 %d 段失败: %w", i+1, err)
		}
		records = append(records, vector.Record{
			Vector:   vec,
			Text:     chunk,
			ChatID:   chatID,
			Filename: filename,
		})
	}
	if err := p.index.Upsert(ctx, records); err != nil {
		return fmt.Errorf("写入向量索引失败: %w", err)
	}
	log.Infof("文档向量写入完成, chatID: %s, filename: %s, chunks: %d", chatID, filename, len(records))
	return nil
}

// Reembed 处理一条补偿任务：从对象存储取回原始文件，重新抽取、
// 切分、嵌入并重建该（对话, 文件名）的全部向量与文档元数据。
// 先删后写，重复投递也能收敛到一致状态；对象已不存在时
// 收敛到删除态（清理向量与元数据）后视为成功。
func (p *Processor) Reembed(ctx context.Context, task tasks.ReembedTask) error {
	exists, err := p.objectExists(ctx, p.bucket, task.ObjectPath)
	if err != nil {
		return fmt.Errorf("检查对象 %s 失败: %w", task.ObjectPath, err)
	}
	if !exists {
		log.Warnf("补偿任务对应的对象已不存在，收敛到删除态, chatID: %s, filename: %s", task.ChatID, task.Filename)
		if err := p.index.Delete(ctx, task.ChatID, task.Filename); err != nil {
			return fmt.Errorf("清理旧向量失败: %w", err)
		}
		if doc, err := p.docRepo.FindByChatAndName(task.ChatID, task.Filename); err == nil {
			if err := p.docRepo.DeleteByID(doc.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return nil
	}

	data, err := p.readObject(ctx, p.bucket, task.ObjectPath)
	if err != nil {
		return fmt.Errorf("读取对象 %s 失败: %w", task.ObjectPath, err)
	}

	text, err := p.extractor.ExtractText(bytes.NewReader(data), task.Filename)
	if err != nil {
		return fmt.Errorf("重新抽取文本失败: %w", err)
	}

	if err := p.index.Delete(ctx, task.ChatID, task.Filename); err != nil {
		return fmt.Errorf("清理旧向量失败: %w", err)
	}
	if err := p.IndexText(ctx, task.ChatID, task.Filename, text); err != nil {
		return err
	}

	// 补齐上传链路中断时可能缺失的文档元数据
	if _, err := p.docRepo.FindByChatAndName(task.ChatID, task.Filename); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		doc := &model.Document{
			ID:         uuid.NewString(),
			ChatID:     task.ChatID,
			Name:       task.Filename,
			Path:       task.ObjectPath,
			UploadedAt: time.Now(),
		}
		if err := p.docRepo.Create(doc); err != nil {
			return err
		}
	}
	log.Infof("补偿任务处理完成, chatID: %s, filename: %s", task.ChatID, task.Filename)
	return nil
}
