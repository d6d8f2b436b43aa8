package api

import (
	"errors"
	"net/http"
	"strconv"

	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	Messages *store.MessageStore
}

func NewChatHandler(messages *store.MessageStore) *ChatHandler {
	return &ChatHandler{Messages: messages}
}

// GetChats lists the team's conversations, most recent activity first
func (h *ChatHandler) GetChats(c *gin.Context) {
	chats, err := h.Messages.ChatsByTeam(c.Request.Context(), teamID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, chats)
}

// GetChatMessages returns one chat's message log, oldest first
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	messages, err := h.Messages.MessagesByChat(c.Request.Context(), teamID(c), uint(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messages)
}
