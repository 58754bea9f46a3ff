package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ragspace-go/internal/model"
	"ragspace-go/internal/repository"
	"ragspace-go/pkg/llm"
	"ragspace-go/pkg/vector"

	"github.com/alicebob/miniredis/v2"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ---- 测试替身 ----

type fakeChatRepo struct {
	mu       sync.Mutex
	chats    map[string]*model.Chat
	messages []*model.Message
	titleCh  chan string
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: make(map[string]*model.Chat), titleCh: make(chan string, 1)}
}

func (r *fakeChatRepo) Create(chat *model.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[chat.ID] = chat
	return nil
}

func (r *fakeChatRepo) FindByID(id string) (*model.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.chats[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *chat
	return &copied, nil
}

func (r *fakeChatRepo) FindByWorkspaceAndUser(workspaceID, userID string) ([]model.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Chat
	for _, chat := range r.chats {
		if chat.WorkspaceID == workspaceID && chat.UserID == userID {
			out = append(out, *chat)
		}
	}
	return out, nil
}

func (r *fakeChatRepo) UpdateTitle(id, title string) error {
	r.mu.Lock()
	if chat, ok := r.chats[id]; ok {
		chat.Title = title
	}
	r.mu.Unlock()
	select {
	case r.titleCh <- title:
	default:
	}
	return nil
}

func (r *fakeChatRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chats, id)
	kept := r.messages[:0]
	for _, m := range r.messages {
		if m.ChatID != id {
			kept = append(kept, m)
		}
	}
	r.messages = kept
	return nil
}

func (r *fakeChatRepo) CreateMessage(message *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *fakeChatRepo) FindMessages(chatID string) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Message
	for _, m := range r.messages {
		if m.ChatID == chatID {
			out = append(out, *m)
		}
	}
	return out, nil
}

type fakeWorkspaceRepo struct {
	members map[string]bool // key: userID/workspaceID
}

func (r *fakeWorkspaceRepo) Create(*model.Workspace) error { return nil }
func (r *fakeWorkspaceRepo) FindByID(string) (*model.Workspace, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *fakeWorkspaceRepo) FindByUser(string) ([]model.Workspace, error) { return nil, nil }
func (r *fakeWorkspaceRepo) AddMember(*model.WorkspaceUser) error         { return nil }
func (r *fakeWorkspaceRepo) FindMembership(userID, workspaceID string) (*model.WorkspaceUser, error) {
	if r.members[userID+"/"+workspaceID] {
		return &model.WorkspaceUser{UserID: userID, WorkspaceID: workspaceID}, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (e *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return e.vec, e.err
}

// fakeProvider 记录收到的提示词并按 chunks 逐块输出。
type fakeProvider struct {
	mu      sync.Mutex
	prompts []string
	chunks  []string
	title   string
	err     error
}

func (p *fakeProvider) Stream(ctx context.Context, model, prompt string, w llm.ChunkWriter) error {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	p.mu.Unlock()
	for _, c := range p.chunks {
		if err := w.WriteChunk([]byte(c)); err != nil {
			return err
		}
	}
	return p.err
}

func (p *fakeProvider) Complete(ctx context.Context, model, prompt string) (string, error) {
	return p.title, nil
}

func (p *fakeProvider) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

type collectWriter struct {
	chunks []string
	failAt int // 从第 failAt 块开始写入失败，0 表示不失败
}

func (w *collectWriter) WriteChunk(data []byte) error {
	if w.failAt > 0 && len(w.chunks)+1 >= w.failAt {
		return errors.New("client gone")
	}
	w.chunks = append(w.chunks, string(data))
	return nil
}

// ---- 测试装配 ----

type chatFixture struct {
	svc      *ChatService
	chatRepo *fakeChatRepo
	provider *fakeProvider
	memory   repository.MemoryRepository
}

func newChatFixture(t *testing.T, embedder *fakeEmbedder, index *vector.Index) *chatFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	memory := repository.NewMemoryRepository(rdb, 20)

	chatRepo := newFakeChatRepo()
	provider := &fakeProvider{chunks: []string{"你好", "，", "世界"}, title: "生成的标题"}
	registry := llm.NewRegistry()
	registry.Register("gpt", provider)
	registry.Register("claude", provider)

	if index == nil {
		// 不会被触达：嵌入失败时检索直接降级
		index = vector.NewWithClient(nil, "unused")
	}

	workspaceRepo := &fakeWorkspaceRepo{members: map[string]bool{"user-1/ws-1": true}}
	svc := NewChatService(chatRepo, memory, workspaceRepo, nil, embedder, index, registry, 5, 5)
	return &chatFixture{svc: svc, chatRepo: chatRepo, provider: provider, memory: memory}
}

func (f *chatFixture) seedChat(id, userID, modelName, title string) {
	_ = f.chatRepo.Create(&model.Chat{
		ID: id, UserID: userID, WorkspaceID: "ws-1",
		Title: title, Model: modelName, CreatedAt: time.Now(),
	})
}

func newSearchStub(t *testing.T, texts []string) *vector.Index {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		var hits []string
		for _, text := range texts {
			hits = append(hits, fmt.Sprintf(`{"_score":0.9,"_source":{"text":%q,"chat_id":"chat-1","filename":"a.pdf"}}`, text))
		}
		_, _ = io.WriteString(w, `{"hits":{"hits":[`+strings.Join(hits, ",")+`]}}`)
	}))
	t.Cleanup(srv.Close)
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("创建 Elasticsearch 客户端失败: %v", err)
	}
	return vector.NewWithClient(client, "test-vectors")
}

// ---- 用例 ----

func TestStreamTurnAccumulatesAndPersists(t *testing.T) {
	f := newChatFixture(t, &fakeEmbedder{err: errors.New("embedding down")}, nil)
	f.seedChat("chat-1", "user-1", "gpt-4", "已命名")

	w := &collectWriter{}
	answer, err := f.svc.StreamTurn(context.Background(), "user-1", "chat-1", "问题", w)
	if err != nil {
		t.Fatalf("StreamTurn() 返回错误: %v", err)
	}
	if answer != "你好，世界" {
		t.Errorf("累积回答 = %q, 期望 %q", answer, "你好，世界")
	}
	if strings.Join(w.chunks, "") != "你好，世界" {
		t.Errorf("客户端收到的分块拼接 = %q", strings.Join(w.chunks, ""))
	}

	// 完整回答必须落库
	messages, _ := f.chatRepo.FindMessages("chat-1")
	if len(messages) != 1 {
		t.Fatalf("消息条数 = %d, 期望 1", len(messages))
	}
	if messages[0].Content != "问题" || messages[0].Response != "你好，世界" {
		t.Errorf("持久化的消息错误: %+v", messages[0])
	}

	entries, _ := f.memory.Read(context.Background(), "chat-1")
	if len(entries) != 1 || entries[0].Res != "你好，世界" {
		t.Errorf("会话记忆错误: %+v", entries)
	}
}

func TestStreamTurnSecondTurnSurfacesHistory(t *testing.T) {
	f := newChatFixture(t, &fakeEmbedder{err: errors.New("embedding down")}, nil)
	f.seedChat("chat-1", "user-1", "gpt-4", "已命名")
	ctx := context.Background()

	if _, err := f.svc.StreamTurn(ctx, "user-1", "chat-1", "第一问", &collectWriter{}); err != nil {
		t.Fatalf("首轮返回错误: %v", err)
	}
	if _, err := f.svc.StreamTurn(ctx, "user-1", "chat-1", "第二问", &collectWriter{}); err != nil {
		t.Fatalf("次轮返回错误: %v", err)
	}

	prompt := f.provider.lastPrompt()
	if !strings.Contains(prompt, "User: 第一问\nAssistant: 你好，世界") {
		t.Errorf("次轮提示词未包含首轮问答: %q", prompt)
	}
	if !strings.HasSuffix(prompt, "User: 第二问") {
		t.Errorf("提示词末尾应为当前问题: %q", prompt)
	}
}

func TestStreamTurnSurfaceWindow(t *testing.T) {
	f := newChatFixture(t, &fakeEmbedder{err: errors.New("embedding down")}, nil)
	f.seedChat("chat-1", "user-1", "gpt-4", "已命名")
	ctx := context.Background()

	// 先写入 8 轮记忆，注入提示词的只应是最近 5 轮
	for i := 0; i < 8; i++ {
		entry := model.MemoryEntry{Msg: fmt.Sprintf("历史-%d", i), Res: fmt.Sprintf("回答-%d", i)}
		if err := f.memory.Append(ctx, "chat-1", entry); err != nil {
			t.Fatalf("Append() 返回错误: %v", err)
		}
	}

	if _, err := f.svc.StreamTurn(ctx, "user-1", "chat-1", "当前问题", &collectWriter{}); err != nil {
		t.Fatalf("StreamTurn() 返回错误: %v", err)
	}
	prompt := f.provider.lastPrompt()
	if strings.Contains(prompt, "历史-2") {
		t.Errorf("提示词包含了窗口之外的历史: %q", prompt)
	}
	for i := 3; i < 8; i++ {
		if !strings.Contains(prompt, fmt.Sprintf("历史-%d", i)) {
			t.Errorf("提示词缺少最近历史 历史-%d: %q", i, prompt)
		}
	}
}

func TestStreamTurnInjectsDocumentContexts(t *testing.T) {
	index := newSearchStub(t, []string{"文档片段甲", "文档片段乙"})
	f := newChatFixture(t, &fakeEmbedder{vec: []float32{0.1, 0.2}}, index)
	f.seedChat("chat-1", "user-1", "claude-3-opus", "已命名")

	if _, err := f.svc.StreamTurn(context.Background(), "user-1", "chat-1", "问题", &collectWriter{}); err != nil {
		t.Fatalf("StreamTurn() 返回错误: %v", err)
	}
	prompt := f.provider.lastPrompt()
	if !strings.Contains(prompt, "Context from documents:\n文档片段甲\n文档片段乙") {
		t.Errorf("提示词缺少文档上下文: %q", prompt)
	}
}

func TestStreamTurnForeignChatHidden(t *testing.T) {
	f := newChatFixture(t, &fakeEmbedder{}, nil)
	f.seedChat("chat-1", "owner", "gpt-4", "已命名")

	// 他人的会话不暴露存在性，与不存在的会话表现一致
	_, err := f.svc.StreamTurn(context.Background(), "intruder", "chat-1", "问题", &collectWriter{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("错误 = %v, 期望 ErrNotFound", err)
	}
	if len(f.provider.prompts) != 0 {
		t.Error("越权请求不应触达模型")
	}
	if messages, _ := f.chatRepo.FindMessages("chat-1"); len(messages) != 0 {
		t.Error("越权请求不应产生消息记录")
	}
}

func TestStreamTurnChatNotFound(t *testing.T) {
	f := newChatFixture(t, &fakeEmbedder{}, nil)

	_, err := f.svc.StreamTurn(context.Background(), "user-1", "no-such-chat", "问题", &collectWriter{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("错误 = %v, 期望 ErrNotFound", err)
	}
}

func TestStreamTurnUnsupportedModel(t *testing.T) {
	f := newChatFixture(t, &fakeEmbedder{}, nil)
	f.seedChat("chat-1", "user-1", "llama-2", "已命名")

	_, err := f.svc.StreamTurn(context.Background(), "user-1", "chat-1", "问题", &collectWriter{})
	if !errors.Is(err, ErrUnsupportedModel) {
		t.Errorf("错误 = %v, 期望 ErrUnsupportedModel", err)
	}
}

func TestStreamTurnClientGonePersistsFullAnswer(t *testing.T) {
	f := newChatFixture(t, &fakeEmbedder{err: errors.New("embedding down")}, nil)
	f.seedChat("chat-1", "user-1", "gpt-4", "已命名")

	// 客户端在第二块时断开，完整回答仍要落库
	w := &collectWriter{failAt: 2}
	answer, err := f.svc.StreamTurn(context.Background(), "user-1", "chat-1", "问题", w)
	if err != nil {
		t.Fatalf("StreamTurn() 返回错误: %v", err)
	}
	if answer != "你好，世界" {
		t.Errorf("累积回答 = %q, 期望完整内容", answer)
	}
	messages, _ := f.chatRepo.FindMessages("chat-1")
	if len(messages) != 1 || messages[0].Response != "你好，世界" {
		t.Errorf("断开后持久化的消息错误: %+v", messages)
	}
}

func TestStreamTurnUpstreamFailureNoPersist(t *testing.T) {
	f := newChatFixture(t, &fakeEmbedder{err: errors.New("embedding down")}, nil)
	f.seedChat("chat-1", "user-1", "gpt-4", "已命名")
	f.provider.chunks = nil
	f.provider.err = errors.New("upstream exploded")

	_, err := f.svc.StreamTurn(context.Background(), "user-1", "chat-1", "问题", &collectWriter{})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("错误 = %v, 期望 ErrUpstream", err)
	}
	if messages, _ := f.chatRepo.FindMessages("chat-1"); len(messages) != 0 {
		t.Error("空回答不应产生消息记录")
	}
	if entries, _ := f.memory.Read(context.Background(), "chat-1"); len(entries) != 0 {
		t.Error("空回答不应写入会话记忆")
	}
}

func TestStreamTurnGeneratesTitleOnFirstTurn(t *testing.T) {
	f := newChatFixture(t, &fakeEmbedder{err: errors.New("embedding down")}, nil)
	f.seedChat("chat-1", "user-1", "gpt-4", "新对话")

	if _, err := f.svc.StreamTurn(context.Background(), "user-1", "chat-1", "问题", &collectWriter{}); err != nil {
		t.Fatalf("StreamTurn() 返回错误: %v", err)
	}
	select {
	case title := <-f.chatRepo.titleCh:
		if title != "生成的标题" {
			t.Errorf("标题 = %q, 期望 %q", title, "生成的标题")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("等待标题生成超时")
	}
}

func TestCreateChat(t *testing.T) {
	f := newChatFixture(t, &fakeEmbedder{}, nil)

	chat, err := f.svc.Create("user-1", "ws-1", "gpt-4")
	if err != nil {
		t.Fatalf("Create() 返回错误: %v", err)
	}
	if chat.Model != "gpt-4" || chat.WorkspaceID != "ws-1" {
		t.Errorf("创建的会话错误: %+v", chat)
	}

	if _, err := f.svc.Create("outsider", "ws-1", "gpt-4"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("非成员创建会话应返回 ErrUnauthorized, 得到 %v", err)
	}
	if _, err := f.svc.Create("user-1", "ws-1", "llama-2"); !errors.Is(err, ErrUnsupportedModel) {
		t.Errorf("未注册模型应返回 ErrUnsupportedModel, 得到 %v", err)
	}
}

func TestListChatsScopedToWorkspace(t *testing.T) {
	f := newChatFixture(t, &fakeEmbedder{}, nil)
	f.seedChat("chat-1", "user-1", "gpt-4", "已命名")
	// 另一个工作区下的会话不应出现在列表中
	_ = f.chatRepo.Create(&model.Chat{
		ID: "chat-2", UserID: "user-1", WorkspaceID: "ws-2",
		Title: "其他工作区", Model: "gpt-4", CreatedAt: time.Now(),
	})

	chats, err := f.svc.List("user-1", "ws-1")
	if err != nil {
		t.Fatalf("List() 返回错误: %v", err)
	}
	if len(chats) != 1 || chats[0].ID != "chat-1" {
		t.Errorf("List() = %+v, 期望仅包含 ws-1 下的会话", chats)
	}

	if _, err := f.svc.List("outsider", "ws-1"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("非成员列出会话应返回 ErrUnauthorized, 得到 %v", err)
	}
}
