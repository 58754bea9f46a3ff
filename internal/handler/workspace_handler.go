package handler

import (
	"net/http"

	"ragspace-go/internal/service"

	"github.com/gin-gonic/gin"
)

// WorkspaceHandler 负责处理工作区相关的 API 请求。
type WorkspaceHandler struct {
	workspaceService *service.WorkspaceService
}

// NewWorkspaceHandler 创建一个新的 WorkspaceHandler 实例。
func NewWorkspaceHandler(workspaceService *service.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

// CreateWorkspaceRequest 定义了创建工作区的请求体结构。
type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create 创建工作区，创建者自动加入。
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	user := currentUser(c)

	workspace, err := h.workspaceService.Create(user.ID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, workspace)
}

// List 列出当前用户加入的全部工作区。
func (h *WorkspaceHandler) List(c *gin.Context) {
	user := currentUser(c)
	workspaces, err := h.workspaceService.List(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, workspaces)
}

// Join 将当前用户加入指定工作区。
func (h *WorkspaceHandler) Join(c *gin.Context) {
	user := currentUser(c)
	workspaceID := c.Param("id")

	if err := h.workspaceService.Join(user.ID, workspaceID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}
