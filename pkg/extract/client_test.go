package extract

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ragspace-go/internal/config"
)

func TestSupported(t *testing.T) {
	tests := []struct {
		fileName string
		want     bool
	}{
		{"report.pdf", true},
		{"notes.docx", true},
		{"readme.txt", true},
		{"REPORT.PDF", true},
		{"image.png", false},
		{"data.csv", false},
		{"archive.doc", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.fileName); got != tt.want {
			t.Errorf("Supported(%q) = %v, 期望 %v", tt.fileName, got, tt.want)
		}
	}
}

func TestExtractTextRejectsBeforeNetwork(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	c := NewClient(config.ExtractConfig{ServerURL: srv.URL})
	_, err := c.ExtractText(strings.NewReader("binary"), "photo.png")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("错误 = %v, 期望 ErrUnsupportedFormat", err)
	}
	if requests != 0 {
		t.Errorf("不支持的格式不应触发网络调用, 实际发起 %d 次", requests)
	}
}

func TestExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/tika" {
			t.Errorf("意外的请求: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Accept") != "text/plain" {
			t.Errorf("Accept 头 = %q, 期望 text/plain", r.Header.Get("Accept"))
		}
		_, _ = io.WriteString(w, "\n  提取出的正文  \n")
	}))
	defer srv.Close()

	c := NewClient(config.ExtractConfig{ServerURL: srv.URL})
	got, err := c.ExtractText(strings.NewReader("%PDF-1.4"), "report.pdf")
	if err != nil {
		t.Fatalf("ExtractText() 返回错误: %v", err)
	}
	if got != "提取出的正文" {
		t.Errorf("ExtractText() = %q, 期望裁剪首尾空白后的正文", got)
	}
}

func TestExtractTextServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "parse failure", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(config.ExtractConfig{ServerURL: srv.URL})
	if _, err := c.ExtractText(strings.NewReader("x"), "report.pdf"); err == nil {
		t.Error("Tika 返回非 200 时应当报错")
	}
}
