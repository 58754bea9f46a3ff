package handler

import (
	"io"
	"net/http"

	"ragspace-go/internal/service"
	"ragspace-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责处理会话内文档的上传、列表与删除请求。
type DocumentHandler struct {
	docService *service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// Upload 处理 multipart 文件上传，把文档接入指定会话。
func (h *DocumentHandler) Upload(c *gin.Context) {
	user := currentUser(c)
	chatID := c.Param("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 file 字段"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法读取上传文件"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法读取上传文件"})
		return
	}

	doc, err := h.docService.Upload(c.Request.Context(), user.ID, chatID, fileHeader.Filename, data)
	if err != nil {
		log.Warnf("文档上传失败, chatID: %s, filename: %s, err: %v", chatID, fileHeader.Filename, err)
		respondError(c, err)
		return
	}
	respondOK(c, doc)
}

// List 列出会话下的全部文档。
func (h *DocumentHandler) List(c *gin.Context) {
	user := currentUser(c)
	docs, err := h.docService.List(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, docs)
}

// Delete 按文档 ID 删除会话下的单个文档。
func (h *DocumentHandler) Delete(c *gin.Context) {
	user := currentUser(c)
	if err := h.docService.Delete(c.Request.Context(), user.ID, c.Param("id"), c.Param("docId")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}
