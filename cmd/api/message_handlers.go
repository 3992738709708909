package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type contentRequest struct {
	Content string `json:"content"`
}

func (s *Server) listMessages(c *gin.Context) {
	msgs, err := s.msgs.ListMessages(c.Request.Context(), c.Param("chatId"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// sendMessage stores a user message. The auto-reply arrives later over the
// websocket only.
func (s *Server) sendMessage(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	msg, err := s.msgs.SendMessage(c.Request.Context(), c.Param("chatId"), currentUser(c), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (s *Server) editMessage(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	msg, err := s.msgs.EditMessage(c.Request.Context(), c.Param("messageId"), currentUser(c), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}
