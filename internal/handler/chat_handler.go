package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"zhitalk-go/internal/agent"
	"zhitalk-go/internal/apperr"
	"zhitalk-go/internal/middleware"
	"zhitalk-go/internal/service"
	"zhitalk-go/pkg/log"
	"zhitalk-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// 断线恢复轮询 Redis 缓冲的间隔。
const resumePollInterval = 300 * time.Millisecond

// ChatHandler 负责处理聊天相关的 API 请求，
// 包括 SSE 流式聊天、断线恢复与 WebSocket 通道。
type ChatHandler struct {
	chatService  service.ChatService
	quotaService service.QuotaService
	userService  service.UserService
	jwtManager   *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, quotaService service.QuotaService, userService service.UserService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService:  chatService,
		quotaService: quotaService,
		userService:  userService,
		jwtManager:   jwtManager,
	}
}

// Chat 处理一次聊天请求，以 SSE 形式流式返回生成事件。
// 事件序列：text-delta / tool-call / tool-result / usage / finish / error，
// finish 恰好一次且在最后；usage 不晚于 finish。
func (h *ChatHandler) Chat(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperr.New(apperr.KindUnauthorized, ""))
		return
	}

	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Chat: Invalid request payload, error: %v", err)
		respondError(c, apperr.New(apperr.KindBadRequest, ""))
		return
	}

	stream, err := h.chatService.StartChat(c.Request.Context(), user, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Stream-Id", stream.StreamID)

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-stream.Events
		if !ok {
			return false
		}
		writeSSEEvent(c, ev)
		return true
	})
}

func writeSSEEvent(c *gin.Context, ev agent.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.SSEvent("message", string(payload))
}

// Usage 返回当前用户的调用配额使用情况。
func (h *ChatHandler) Usage(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperr.New(apperr.KindUnauthorized, ""))
		return
	}

	summary, err := h.quotaService.Usage(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, summary)
}

// List 返回当前用户的会话列表。
func (h *ChatHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperr.New(apperr.KindUnauthorized, ""))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	chats, err := h.chatService.ListChats(c.Request.Context(), user, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, chats)
}

// Messages 返回指定会话的消息历史。
func (h *ChatHandler) Messages(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperr.New(apperr.KindUnauthorized, ""))
		return
	}

	messages, err := h.chatService.GetMessages(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, messages)
}

// Delete 删除当前用户的一个会话。
func (h *ChatHandler) Delete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperr.New(apperr.KindUnauthorized, ""))
		return
	}

	chat, err := h.chatService.DeleteChat(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, chat)
}

// Resume 恢复观看一次进行中的生成：先回放 Redis 中已缓冲的事件，
// 之后轮询缓冲直到生成结束，全部以 SSE 下发。
func (h *ChatHandler) Resume(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperr.New(apperr.KindUnauthorized, ""))
		return
	}

	chatID := c.Param("id")
	streamID, events, finished, err := h.chatService.ResumeStream(c.Request.Context(), user, chatID, 0)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Stream-Id", streamID)

	for _, raw := range events {
		c.SSEvent("message", raw)
	}
	c.Writer.Flush()

	offset := int64(len(events))
	for !finished {
		select {
		case <-c.Request.Context().Done():
			return
		case <-time.After(resumePollInterval):
		}

		var batch []string
		batch, finished, err = h.chatService.ReadStream(c.Request.Context(), streamID, offset)
		if err != nil {
			log.Warnf("Resume: 读取流缓冲失败 stream=%s: %v", streamID, err)
			return
		}
		for _, raw := range batch {
			c.SSEvent("message", raw)
		}
		if len(batch) > 0 {
			c.Writer.Flush()
			offset += int64(len(batch))
		}
	}
}

// HandleWS 处理 WebSocket 聊天连接：认证后循环读取聊天请求，
// 把生成事件以 JSON 帧回写。一条连接上的请求串行处理。
func (h *ChatHandler) HandleWS(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", user.Username)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var req service.ChatRequest
		if err := json.Unmarshal(message, &req); err != nil {
			writeWSError(conn, apperr.New(apperr.KindBadRequest, ""))
			continue
		}

		stream, err := h.chatService.StartChat(c.Request.Context(), user, &req)
		if err != nil {
			writeWSError(conn, err)
			continue
		}

		for ev := range stream.Events {
			payload, merr := json.Marshal(ev)
			if merr != nil {
				continue
			}
			if werr := conn.WriteMessage(websocket.TextMessage, payload); werr != nil {
				log.Warnf("WebSocket 写入失败: %v", werr)
				// 连接已断开，生成在后台继续完成落库
				break
			}
		}
	}
}

func writeWSError(conn *websocket.Conn, err error) {
	appErr := apperr.From(err)
	payload, _ := json.Marshal(agent.Event{
		Type:    agent.EventError,
		Message: appErr.UserMessage(),
	})
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}
