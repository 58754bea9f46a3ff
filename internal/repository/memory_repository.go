package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"ragspace-go/internal/model"
	"ragspace-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

const memoryKeyPrefix = "chat_memory:"

// MemoryRepository 接口定义了会话短期记忆的读写操作。
// 记忆保存在 Redis 列表中，仅保留最近若干轮问答。
type MemoryRepository interface {
	Append(ctx context.Context, chatID string, entry model.MemoryEntry) error
	Read(ctx context.Context, chatID string) ([]model.MemoryEntry, error)
	Clear(ctx context.Context, chatID string) error
}

type memoryRepository struct {
	rdb    *redis.Client
	window int
}

// NewMemoryRepository 创建一个新的 MemoryRepository 实例。
// window 为列表中最多保留的问答轮数。
func NewMemoryRepository(rdb *redis.Client, window int) MemoryRepository {
	return &memoryRepository{rdb: rdb, window: window}
}

func memoryKey(chatID string) string {
	return memoryKeyPrefix + chatID
}

// Append 在列表尾部追加一轮问答，并裁剪到保留窗口。
func (r *memoryRepository) Append(ctx context.Context, chatID string, entry model.MemoryEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化记忆条目失败: %w", err)
	}
	key := memoryKey(chatID)
	if err := r.rdb.RPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("写入会话记忆失败: %w", err)
	}
	if err := r.rdb.LTrim(ctx, key, int64(-r.window), -1).Err(); err != nil {
		return fmt.Errorf("裁剪会话记忆失败: %w", err)
	}
	return nil
}

// Read 按时间正序返回会话的全部记忆条目，键不存在时返回空切片。
func (r *memoryRepository) Read(ctx context.Context, chatID string) ([]model.MemoryEntry, error) {
	items, err := r.rdb.LRange(ctx, memoryKey(chatID), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []model.MemoryEntry{}, nil
		}
		return nil, fmt.Errorf("读取会话记忆失败: %w", err)
	}
	entries := make([]model.MemoryEntry, 0, len(items))
	for _, item := range items {
		var entry model.MemoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			log.Warnf("跳过无法解析的记忆条目, chatID: %s, err: %v", chatID, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Clear 删除会话的全部记忆。
func (r *memoryRepository) Clear(ctx context.Context, chatID string) error {
	return r.rdb.Del(ctx, memoryKey(chatID)).Err()
}
