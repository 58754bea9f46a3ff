package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"ragspace-go/internal/model"
	"ragspace-go/internal/service"
	"ragspace-go/pkg/log"
	"ragspace-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责会话的 REST 管理与 WebSocket 流式问答。
type ChatHandler struct {
	chatService *service.ChatService
	userService *service.UserService
	jwtManager  *token.JWTManager
	turnTimeout time.Duration
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService *service.ChatService, userService *service.UserService, jwtManager *token.JWTManager, turnTimeout time.Duration) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		userService: userService,
		jwtManager:  jwtManager,
		turnTimeout: turnTimeout,
	}
}

// CreateChatRequest 定义了创建会话的请求体结构。
type CreateChatRequest struct {
	WorkspaceID string `json:"workspaceId" binding:"required"`
	Model       string `json:"model" binding:"required"`
}

// Create 在工作区下创建会话。
func (h *ChatHandler) Create(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	user := currentUser(c)

	chat, err := h.chatService.Create(user.ID, req.WorkspaceID, req.Model)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, chat)
}

// List 列出当前用户在指定工作区下的全部会话。
func (h *ChatHandler) List(c *gin.Context) {
	user := currentUser(c)
	chats, err := h.chatService.List(user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, chats)
}

// History 返回会话的完整消息记录。
func (h *ChatHandler) History(c *gin.Context) {
	user := currentUser(c)
	messages, err := h.chatService.History(user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, messages)
}

// Delete 删除会话及其全部关联数据。
func (h *ChatHandler) Delete(c *gin.Context) {
	user := currentUser(c)
	if err := h.chatService.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// wsSession 是一条 WebSocket 连接的会话状态。
// 写入必须经过互斥锁，流式分片与控制帧来自不同的 goroutine。
type wsSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc // 当前在途问答的取消函数，空闲时为 nil
}

func (s *wsSession) writeJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

// WriteChunk 把一个模型分片以 JSON 帧转发给客户端。
func (s *wsSession) WriteChunk(chunk []byte) error {
	return s.writeJSON(map[string]string{"chunk": string(chunk)})
}

// wsInbound 是客户端消息的统一结构：
// 普通问题为 {"message": "..."}，停止指令为 {"type": "stop"}。
type wsInbound struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Stream 处理一条 WebSocket 连接上的流式问答。
// token 放在路径参数中，HTTP 中间件不经过这里。
func (h *ChatHandler) Stream(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的 token"})
		return
	}
	user, err := h.userService.GetByID(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户不存在"})
		return
	}
	chatID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立, user: %s, chatID: %s", user.Email, chatID)

	session := &wsSession{conn: conn}
	defer session.stopInflight()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			return
		}

		var in wsInbound
		if err := json.Unmarshal(payload, &in); err != nil {
			// 兼容纯文本问题
			in = wsInbound{Message: string(payload)}
		}

		if in.Type == "stop" {
			session.stopInflight()
			_ = session.writeJSON(gin.H{
				"type":      "stop",
				"message":   "响应已停止",
				"timestamp": time.Now().UnixMilli(),
			})
			continue
		}
		if in.Message == "" {
			continue
		}
		if !session.beginTurn() {
			_ = session.writeJSON(gin.H{"error": "上一轮回答尚未完成"})
			continue
		}

		go h.runTurn(session, user, chatID, in.Message)
	}
}

// beginTurn 在空闲时占位一轮问答，已有在途问答时返回 false。
func (s *wsSession) beginTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}
	// 占位，runTurn 会用真正的 cancel 替换
	s.cancel = func() {}
	return true
}

func (s *wsSession) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

func (s *wsSession) endTurn() {
	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
}

// stopInflight 取消当前在途的问答（若有）。
func (s *wsSession) stopInflight() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// turnContext 为一轮问答派生上下文，超时为 0 表示不限制时长，只支持取消。
func turnContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

// runTurn 在独立的 goroutine 中执行一轮问答并回发完成通知。
func (h *ChatHandler) runTurn(session *wsSession, user *model.User, chatID, message string) {
	defer session.endTurn()

	ctx, cancel := turnContext(context.Background(), h.turnTimeout)
	defer cancel()
	session.setCancel(cancel)

	_, err := h.chatService.StreamTurn(ctx, user.ID, chatID, message, session)
	if err != nil {
		log.Errorf("处理流式响应失败, chatID: %s, err: %v", chatID, err)
		_ = session.writeJSON(gin.H{"error": "AI服务暂时不可用，请稍后重试"})
	}

	// 无论成败都回发 completion 通知，客户端据此解除输入锁定
	_ = session.writeJSON(gin.H{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
	})
}
