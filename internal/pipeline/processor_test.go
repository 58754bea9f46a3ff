package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"ragspace-go/internal/config"
	"ragspace-go/internal/model"
	"ragspace-go/pkg/extract"
	"ragspace-go/pkg/tasks"
	"ragspace-go/pkg/vector"

	"github.com/elastic/go-elasticsearch/v8"
	"gorm.io/gorm"
)

// ---- 测试替身 ----

// recordingEmbedder 记录每次嵌入的输入并返回固定向量。
type recordingEmbedder struct {
	mu     sync.Mutex
	inputs []string
}

func (e *recordingEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = append(e.inputs, text)
	return []float32{0.1, 0.2}, nil
}

type fakeDocRepo struct {
	mu   sync.Mutex
	docs map[string]*model.Document // key: document ID
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: make(map[string]*model.Document)}
}

func (r *fakeDocRepo) Create(doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeDocRepo) FindByID(id string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeDocRepo) FindByChatAndName(chatID, name string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.ChatID == chatID && doc.Name == name {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeDocRepo) FindByChat(chatID string) ([]model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Document
	for _, doc := range r.docs {
		if doc.ChatID == chatID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (r *fakeDocRepo) DeleteByID(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

func (r *fakeDocRepo) DeleteByChat(chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, doc := range r.docs {
		if doc.ChatID == chatID {
			delete(r.docs, id)
		}
	}
	return nil
}

func (r *fakeDocRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

// esCall 记录发给 Elasticsearch 的一次请求。
type esCall struct {
	method string
	path   string
	body   string
}

type fakeES struct {
	mu    sync.Mutex
	calls []esCall
}

func (f *fakeES) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, esCall{method: r.Method, path: r.URL.Path, body: string(body)})
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if strings.HasSuffix(r.URL.Path, "/_delete_by_query") {
		_, _ = io.WriteString(w, `{"deleted":0}`)
		return
	}
	_, _ = io.WriteString(w, `{"result":"created"}`)
}

// docWrites 返回按顺序记录的 _doc 写入请求。
func (f *fakeES) docWrites() []esCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []esCall
	for _, c := range f.calls {
		if strings.Contains(c.path, "/_doc/") {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeES) allCalls() []esCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]esCall(nil), f.calls...)
}

func (f *fakeES) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// ---- 测试装配 ----

type processorFixture struct {
	proc     *Processor
	es       *fakeES
	embedder *recordingEmbedder
	docRepo  *fakeDocRepo
}

func newProcessorFixture(t *testing.T, tikaText string) *processorFixture {
	t.Helper()

	es := &fakeES{}
	esSrv := httptest.NewServer(http.HandlerFunc(es.handler))
	t.Cleanup(esSrv.Close)
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{esSrv.URL}})
	if err != nil {
		t.Fatalf("创建 Elasticsearch 客户端失败: %v", err)
	}
	index := vector.NewWithClient(client, "test-vectors")

	tikaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, tikaText)
	}))
	t.Cleanup(tikaSrv.Close)
	extractor := extract.NewClient(config.ExtractConfig{ServerURL: tikaSrv.URL})

	embedder := &recordingEmbedder{}
	docRepo := newFakeDocRepo()
	proc := NewProcessor(embedder, index, extractor, docRepo, "test-bucket", 1000)
	return &processorFixture{proc: proc, es: es, embedder: embedder, docRepo: docRepo}
}

// buildText 生成 n 个字符的确定性文本。
func buildText(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	return b.String()
}

// ---- 用例 ----

func TestIndexTextChunksEmbedsAndTags(t *testing.T) {
	f := newProcessorFixture(t, "")
	text := buildText(2500)

	if err := f.proc.IndexText(context.Background(), "chat-1", "report.pdf", text); err != nil {
		t.Fatalf("IndexText() 返回错误: %v", err)
	}

	// 2500 字符按 1000 切分应得到 3 段，逐段嵌入且无丢字
	if len(f.embedder.inputs) != 3 {
		t.Fatalf("嵌入调用次数 = %d, 期望 3", len(f.embedder.inputs))
	}
	if strings.Join(f.embedder.inputs, "") != text {
		t.Error("各段拼接后与原文不一致")
	}

	writes := f.es.docWrites()
	if len(writes) != 3 {
		t.Fatalf("向量写入次数 = %d, 期望 3", len(writes))
	}
	for i, w := range writes {
		if !strings.Contains(w.body, `"chat_id":"chat-1"`) || !strings.Contains(w.body, `"filename":"report.pdf"`) {
			t.Errorf("第 %d 条记录缺少归属标签: %s", i+1, w.body)
		}
	}
}

func TestIndexTextEmptyTextWritesNothing(t *testing.T) {
	f := newProcessorFixture(t, "")

	if err := f.proc.IndexText(context.Background(), "chat-1", "empty.txt", ""); err != nil {
		t.Fatalf("IndexText() 返回错误: %v", err)
	}
	if len(f.es.allCalls()) != 0 {
		t.Error("空文本不应产生任何索引请求")
	}
}

func TestReembedRebuildsVectorsAndMetadata(t *testing.T) {
	text := buildText(2500)
	f := newProcessorFixture(t, text)
	f.proc.objectExists = func(ctx context.Context, bucket, object string) (bool, error) { return true, nil }
	f.proc.readObject = func(ctx context.Context, bucket, object string) ([]byte, error) {
		return []byte("%PDF raw bytes"), nil
	}

	task := tasks.ReembedTask{ChatID: "chat-1", Filename: "report.pdf", ObjectPath: "chat-1/report.pdf"}
	if err := f.proc.Reembed(context.Background(), task); err != nil {
		t.Fatalf("Reembed() 返回错误: %v", err)
	}

	// 先删后写：第一条请求必须是按过滤条件的删除
	calls := f.es.allCalls()
	if len(calls) == 0 || !strings.HasSuffix(calls[0].path, "/_delete_by_query") {
		t.Fatalf("重建应先清理旧向量, 实际请求序列: %+v", calls)
	}
	if writes := f.es.docWrites(); len(writes) != 3 {
		t.Errorf("向量写入次数 = %d, 期望 3", len(writes))
	}

	// 上传链路中断导致缺失的元数据要补齐
	doc, err := f.docRepo.FindByChatAndName("chat-1", "report.pdf")
	if err != nil {
		t.Fatal("重建后文档元数据缺失")
	}
	if doc.Path != "chat-1/report.pdf" {
		t.Errorf("文档对象路径 = %q", doc.Path)
	}

	// 重复投递同一任务要收敛到相同状态
	f.es.reset()
	if err := f.proc.Reembed(context.Background(), task); err != nil {
		t.Fatalf("重复 Reembed() 返回错误: %v", err)
	}
	if f.docRepo.count() != 1 {
		t.Errorf("文档元数据条数 = %d, 期望 1", f.docRepo.count())
	}
	calls = f.es.allCalls()
	if len(calls) == 0 || !strings.HasSuffix(calls[0].path, "/_delete_by_query") {
		t.Error("重复投递仍应先清理旧向量")
	}
	if writes := f.es.docWrites(); len(writes) != 3 {
		t.Errorf("重复投递后的向量写入次数 = %d, 期望 3", len(writes))
	}
}

func TestReembedVanishedObjectConvergesToDeleted(t *testing.T) {
	f := newProcessorFixture(t, "")
	f.proc.objectExists = func(ctx context.Context, bucket, object string) (bool, error) { return false, nil }
	f.proc.readObject = func(ctx context.Context, bucket, object string) ([]byte, error) {
		return nil, errors.New("对象不应被读取")
	}
	_ = f.docRepo.Create(&model.Document{ID: "doc-1", ChatID: "chat-1", Name: "report.pdf"})

	task := tasks.ReembedTask{ChatID: "chat-1", Filename: "report.pdf", ObjectPath: "chat-1/report.pdf"}
	if err := f.proc.Reembed(context.Background(), task); err != nil {
		t.Fatalf("Reembed() 返回错误: %v", err)
	}

	// 对象已不存在时清理向量与元数据，不做任何写入
	calls := f.es.allCalls()
	if len(calls) != 1 || !strings.HasSuffix(calls[0].path, "/_delete_by_query") {
		t.Errorf("期望仅一次删除请求, 实际: %+v", calls)
	}
	if f.docRepo.count() != 0 {
		t.Error("文档元数据应被清理")
	}
	if len(f.embedder.inputs) != 0 {
		t.Error("不应发生任何嵌入调用")
	}
}
