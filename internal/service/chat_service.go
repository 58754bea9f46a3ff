package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ragspace-go/internal/model"
	"ragspace-go/internal/repository"
	"ragspace-go/pkg/embedding"
	"ragspace-go/pkg/llm"
	"ragspace-go/pkg/log"
	"ragspace-go/pkg/vector"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultChatTitle = "新对话"

// ChatService 是问答链路的编排核心：
// 校验会话归属，收集短期记忆与文档上下文，拼装提示词，
// 流式调用大模型并在边转发边累积后持久化完整回答。
type ChatService struct {
	chatRepo      repository.ChatRepository
	memoryRepo    repository.MemoryRepository
	workspaceRepo repository.WorkspaceRepository
	docService    *DocumentService
	embedder      embedding.Client
	index         *vector.Index
	registry      *llm.Registry

	surface int // 每轮注入提示词的历史问答条数
	topK    int // 向量检索返回的片段数
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	chatRepo repository.ChatRepository,
	memoryRepo repository.MemoryRepository,
	workspaceRepo repository.WorkspaceRepository,
	docService *DocumentService,
	embedder embedding.Client,
	index *vector.Index,
	registry *llm.Registry,
	surface, topK int,
) *ChatService {
	return &ChatService{
		chatRepo:      chatRepo,
		memoryRepo:    memoryRepo,
		workspaceRepo: workspaceRepo,
		docService:    docService,
		embedder:      embedder,
		index:         index,
		registry:      registry,
		surface:       surface,
		topK:          topK,
	}
}

// Create 在工作区下创建会话，要求调用者是工作区成员，
// 且模型必须能解析到具体的提供方。
func (s *ChatService) Create(userID, workspaceID, modelName string) (*model.Chat, error) {
	if _, err := s.workspaceRepo.FindMembership(userID, workspaceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if _, err := s.registry.Resolve(modelName); err != nil {
		return nil, ErrUnsupportedModel
	}
	chat := &model.Chat{
		ID:          uuid.NewString(),
		UserID:      userID,
		WorkspaceID: workspaceID,
		Title:       defaultChatTitle,
		Model:       modelName,
		CreatedAt:   time.Now(),
	}
	if err := s.chatRepo.Create(chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// List 列出用户在指定工作区下的全部会话，要求调用者是工作区成员。
func (s *ChatService) List(userID, workspaceID string) ([]model.Chat, error) {
	if _, err := s.workspaceRepo.FindMembership(userID, workspaceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return s.chatRepo.FindByWorkspaceAndUser(workspaceID, userID)
}

// authorize 校验会话存在且归属当前用户。
// 他人的会话按不存在处理，不向外暴露会话的存在性。
func (s *ChatService) authorize(userID, chatID string) (*model.Chat, error) {
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

// History 按时间正序返回会话的完整消息记录。
func (s *ChatService) History(userID, chatID string) ([]model.Message, error) {
	if _, err := s.authorize(userID, chatID); err != nil {
		return nil, err
	}
	return s.chatRepo.FindMessages(chatID)
}

// Delete 删除会话及其全部关联数据：文档与向量、短期记忆、消息记录。
func (s *ChatService) Delete(ctx context.Context, userID, chatID string) error {
	if _, err := s.authorize(userID, chatID); err != nil {
		return err
	}
	if err := s.docService.PurgeChat(ctx, chatID); err != nil {
		return err
	}
	if err := s.memoryRepo.Clear(ctx, chatID); err != nil {
		return err
	}
	return s.chatRepo.Delete(chatID)
}

// teeWriter 在把分片转发给客户端的同时累积完整回答。
// 客户端写入失败后停止转发但继续累积，保证回答仍可完整落库。
type teeWriter struct {
	inner      llm.ChunkWriter
	buf        strings.Builder
	clientGone bool
}

func (w *teeWriter) WriteChunk(chunk []byte) error {
	w.buf.Write(chunk)
	if w.clientGone {
		return nil
	}
	if err := w.inner.WriteChunk(chunk); err != nil {
		log.Warnf("转发分片失败，继续累积回答: %v", err)
		w.clientGone = true
	}
	return nil
}

// StreamTurn 执行一轮问答：模型只调用一次，分片经 teeWriter
// 边转发边累积；流结束后把完整回答写入消息表与短期记忆。
// 返回累积的完整回答。
func (s *ChatService) StreamTurn(ctx context.Context, userID, chatID, message string, w llm.ChunkWriter) (string, error) {
	chat, err := s.authorize(userID, chatID)
	if err != nil {
		return "", err
	}
	provider, err := s.registry.Resolve(chat.Model)
	if err != nil {
		return "", ErrUnsupportedModel
	}

	history, err := s.memoryRepo.Read(ctx, chatID)
	if err != nil {
		log.Warnf("读取会话记忆失败，本轮不注入历史, chatID: %s, err: %v", chatID, err)
		history = nil
	}
	if len(history) > s.surface {
		history = history[len(history)-s.surface:]
	}

	contexts := s.retrieveContexts(ctx, chatID, message)
	prompt := AssemblePrompt(history, contexts, message)

	tee := &teeWriter{inner: w}
	streamErr := provider.Stream(ctx, chat.Model, prompt, tee)

	answer := tee.buf.String()
	if answer != "" {
		// 即使客户端已断开也要落库，持久化不挂在请求的 context 上
		s.persistTurn(chat, message, answer)
	}
	if streamErr != nil {
		log.Errorf("模型流式调用失败, chatID: %s, model: %s, err: %v", chatID, chat.Model, streamErr)
		if answer == "" {
			return "", ErrUpstream
		}
	}

	if chat.Title == defaultChatTitle || chat.Title == "" {
		go s.generateTitle(provider, chat, message)
	}
	return answer, nil
}

// retrieveContexts 嵌入问题并在向量索引中检索相关片段。
// 检索链路失败时降级为无上下文回答，不中断本轮问答。
func (s *ChatService) retrieveContexts(ctx context.Context, chatID, message string) []string {
	queryVec, err := s.embedder.CreateEmbedding(ctx, message)
	if err != nil {
		log.Warnf("问题嵌入失败，本轮不注入文档上下文, chatID: %s, err: %v", chatID, err)
		return nil
	}
	hits, err := s.index.Search(ctx, queryVec, chatID, s.topK)
	if err != nil {
		log.Warnf("向量检索失败，本轮不注入文档上下文, chatID: %s, err: %v", chatID, err)
		return nil
	}
	contexts := make([]string, 0, len(hits))
	for _, hit := range hits {
		contexts = append(contexts, hit.Text)
	}
	return contexts
}

// persistTurn 把完整的一轮问答写入消息表与短期记忆。
func (s *ChatService) persistTurn(chat *model.Chat, message, answer string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := &model.Message{
		ID:        uuid.NewString(),
		UserID:    chat.UserID,
		ChatID:    chat.ID,
		Content:   message,
		Response:  answer,
		CreatedAt: time.Now(),
	}
	if err := s.chatRepo.CreateMessage(msg); err != nil {
		log.Errorf("保存消息记录失败, chatID: %s, err: %v", chat.ID, err)
	}
	entry := model.MemoryEntry{Msg: message, Res: answer}
	if err := s.memoryRepo.Append(ctx, chat.ID, entry); err != nil {
		log.Errorf("写入会话记忆失败, chatID: %s, err: %v", chat.ID, err)
	}
}

// generateTitle 用首轮问题生成会话标题，失败只记日志。
func (s *ChatService) generateTitle(provider llm.Provider, chat *model.Chat, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	prompt := "请用不超过 10 个字概括下面这个问题的主题，直接给出标题，不要加引号：\n" + message
	title, err := provider.Complete(ctx, chat.Model, prompt)
	if err != nil {
		log.Warnf("生成会话标题失败, chatID: %s, err: %v", chat.ID, err)
		return
	}
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"“”`))
	if title == "" {
		return
	}
	if err := s.chatRepo.UpdateTitle(chat.ID, title); err != nil {
		log.Warnf("更新会话标题失败, chatID: %s, err: %v", chat.ID, err)
	}
}
