package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createChatRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// updateChatRequest uses pointers so absent fields stay unchanged.
type updateChatRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

func (s *Server) listChats(c *gin.Context) {
	chats, err := s.chats.ListChats(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

func (s *Server) createChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	chat, err := s.chats.CreateChat(c.Request.Context(), currentUser(c), req.FirstName, req.LastName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (s *Server) updateChat(c *gin.Context) {
	var req updateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	chat, err := s.chats.UpdateChat(c.Request.Context(), c.Param("id"), currentUser(c), req.FirstName, req.LastName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (s *Server) deleteChat(c *gin.Context) {
	if err := s.chats.DeleteChat(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted successfully"})
}
