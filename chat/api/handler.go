package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qna-chatbot/backend/ai"
	"qna-chatbot/backend/chat/service"
)

// ChatHandler exposes the chat store and session controller over HTTP
type ChatHandler struct {
	chats    *service.ChatService
	sessions *service.SessionController
}

func NewChatHandler(chats *service.ChatService, sessions *service.SessionController) *ChatHandler {
	return &ChatHandler{chats: chats, sessions: sessions}
}

// ListModels returns the selectable completion models
func (h *ChatHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": ai.Models, "default": ai.DefaultModel()})
}

// CreateChat starts a new, empty chat
func (h *ChatHandler) CreateChat(c *gin.Context) {
	chat, err := h.chats.CreateChat(c.Request.Context(), userID(c))
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, chat)
}

// ListChats returns the user's chats, most recent first
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chats.ListChats(c.Request.Context(), userID(c))
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats, "count": len(chats)})
}

// ListMessages returns a chat's messages in order, decrypted
func (h *ChatHandler) ListMessages(c *gin.Context) {
	chatID := c.Param("chatId")

	messages, err := h.chats.ListMessages(c.Request.Context(), userID(c), chatID)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"chatId": chatID, "messages": messages, "count": len(messages)})
}

// DeleteChat removes a chat and all of its messages
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	if err := h.chats.DeleteChatWithMessages(c.Request.Context(), userID(c), c.Param("chatId")); err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.Status(http.StatusNoContent)
}

type sendRequest struct {
	ChatID  string `json:"chatId"`
	Text    string `json:"text" binding:"required"`
	Backend string `json:"backend"`
	Engine  string `json:"engine"`
}

// Send runs one conversation turn: persist the user message, ask the
// completion service, persist the bot message. An empty chatId starts a new
// chat.
func (h *ChatHandler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	result, err := h.sessions.Send(c.Request.Context(), userID(c), req.ChatID, req.Text, req.Backend, req.Engine)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, result)
}

type guestSendRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text" binding:"required"`
	Backend   string `json:"backend"`
	Engine    string `json:"engine"`
}

// GuestSend answers a question without persisting anything. Guests get an
// ephemeral session id they can carry across turns.
func (h *ChatHandler) GuestSend(c *gin.Context) {
	var req guestSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	sessionID, answer, err := h.sessions.GuestSend(c.Request.Context(), req.SessionID, req.Text, req.Backend, req.Engine)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "response": answer})
}
