// Package extract 提供了一个与 Apache Tika 服务器交互的文本抽取客户端。
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"ragspace-go/internal/config"
)

// ErrUnsupportedFormat 表示文件扩展名不在受支持的文本格式之列。
var ErrUnsupportedFormat = errors.New("unsupported file format, only PDF, DOCX and TXT supported")

// 受支持的文本承载格式。
var supportedExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".txt":  {},
}

// Client 是 Tika 服务器的客户端。
type Client struct {
	serverURL string
}

// NewClient 创建一个新的抽取客户端实例。
func NewClient(cfg config.ExtractConfig) *Client {
	return &Client{serverURL: cfg.ServerURL}
}

// Supported 判断文件名的扩展名是否受支持。
func Supported(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	_, ok := supportedExtensions[ext]
	return ok
}

// ExtractText 校验扩展名后调用 Tika 提取纯文本。
// 不受支持的扩展名在任何网络调用之前返回 ErrUnsupportedFormat。
func (c *Client) ExtractText(fileReader io.Reader, fileName string) (string, error) {
	if !Supported(fileName) {
		return "", ErrUnsupportedFormat
	}

	contentType := detectMimeType(fileName)

	req, err := http.NewRequest("PUT", c.serverURL+"/tika", fileReader)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", fmt.Errorf("读取 Tika 响应失败: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// detectMimeType 根据文件扩展名判断 Content-Type
func detectMimeType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "application/octet-stream"
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
