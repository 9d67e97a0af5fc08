package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"cybertrace-ops/internal/middleware"
	"cybertrace-ops/internal/service"
	"cybertrace-ops/pkg/response"
)

// ChatHandler 对话管理请求处理器
// 不存在与不属于当前用户的对话统一返回 404
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// ListChats 获取对话列表
// @Summary 获取对话列表（最新在前）
// @Tags 对话
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=[]service.ChatResponse}
// @Router /api/v1/chats [get]
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chatService.ListChats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.InternalError(c, "Failed to list chats")
		return
	}
	response.Success(c, chats)
}

// CreateChat 创建对话
// @Summary 创建对话
// @Tags 对话
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.CreateChatRequest false "标题与可见性"
// @Success 201 {object} response.Response{data=service.ChatResponse}
// @Router /api/v1/chats [post]
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req service.CreateChatRequest
	// 请求体可以为空
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &req) {
			return
		}
	}

	chat, err := h.chatService.CreateChat(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.InternalError(c, "Failed to create chat")
		return
	}
	response.Created(c, chat)
}

// GetChat 获取对话详情
// @Summary 获取对话及其消息
// @Tags 对话
// @Security Bearer
// @Produce json
// @Param id path string true "对话ID"
// @Success 200 {object} response.Response{data=service.ChatDetailResponse}
// @Router /api/v1/chats/{id} [get]
func (h *ChatHandler) GetChat(c *gin.Context) {
	detail, err := h.chatService.GetChat(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		h.handleError(c, err, "Failed to load chat")
		return
	}
	response.Success(c, detail)
}

// UpdateChat 修改对话
// @Summary 修改对话标题或可见性
// @Tags 对话
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "对话ID"
// @Param body body service.UpdateChatRequest true "要更新的字段"
// @Success 200 {object} response.Response{data=service.ChatResponse}
// @Router /api/v1/chats/{id} [patch]
func (h *ChatHandler) UpdateChat(c *gin.Context) {
	var req service.UpdateChatRequest
	if !bindJSON(c, &req) {
		return
	}

	chat, err := h.chatService.UpdateChat(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		h.handleError(c, err, "Failed to update chat")
		return
	}
	response.Success(c, chat)
}

// DeleteChat 删除对话
// @Summary 删除对话及其所有消息
// @Tags 对话
// @Security Bearer
// @Produce json
// @Param id path string true "对话ID"
// @Success 200 {object} response.Response
// @Router /api/v1/chats/{id} [delete]
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	if err := h.chatService.DeleteChat(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		h.handleError(c, err, "Failed to delete chat")
		return
	}
	response.Success(c, gin.H{"success": true})
}

func (h *ChatHandler) handleError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, service.ErrChatNotFound):
		response.ChatNotFound(c)
	default:
		response.InternalError(c, message)
	}
}
