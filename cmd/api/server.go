package main

import (
	"context"
	"net/http"
	"time"

	"github.com/PaulBabatuyi/quotechat/internal/auth"
	"github.com/PaulBabatuyi/quotechat/internal/data"
	"github.com/PaulBabatuyi/quotechat/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// userStore is the subset of data.UsersStore used by the auth handlers.
type userStore interface {
	CreateUser(ctx context.Context, email, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
}

// chatService is implemented by service.ChatService.
type chatService interface {
	ListChats(ctx context.Context, userID bson.ObjectID) ([]*data.ChatWithMessages, error)
	CreateChat(ctx context.Context, userID bson.ObjectID, firstName, lastName string) (*data.ChatWithMessages, error)
	UpdateChat(ctx context.Context, chatID string, userID bson.ObjectID, firstName, lastName *string) (*data.ChatWithMessages, error)
	DeleteChat(ctx context.Context, chatID string, userID bson.ObjectID) error
	EnsureSeeded(ctx context.Context, userID bson.ObjectID) (bool, error)
}

// messageService is implemented by service.MessageService.
type messageService interface {
	ListMessages(ctx context.Context, chatID string, userID bson.ObjectID) ([]*data.Message, error)
	SendMessage(ctx context.Context, chatID string, userID bson.ObjectID, content string) (*data.Message, error)
	EditMessage(ctx context.Context, messageID string, userID bson.ObjectID, content string) (*data.Message, error)
}

// Server holds the HTTP and websocket handlers and their dependencies.
type Server struct {
	users   userStore
	chats   chatService
	msgs    messageService
	auth    *auth.JWTManager
	hub     *RoomHub
	limiter *middleware.LimiterStore
	origins []string
}

// newServer returns a ready-to-use Server. limiter may be nil to disable
// rate limiting of the auth routes.
func newServer(users userStore, chats chatService, msgs messageService, authMgr *auth.JWTManager, hub *RoomHub, limiter *middleware.LimiterStore, origins []string) *Server {
	return &Server{users: users, chats: chats, msgs: msgs, auth: authMgr, hub: hub, limiter: limiter, origins: origins}
}

// routes builds the gin engine.
func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(s.corsConfig()))

	api := r.Group("/api")
	api.GET("/health", s.health)

	authGroup := api.Group("/auth")
	{
		limited := authGroup.Group("")
		if s.limiter != nil {
			limited.Use(middleware.RateLimit(s.limiter))
		}
		limited.POST("/register", s.register)
		limited.POST("/login", s.login)
		authGroup.GET("/verify", s.requireAuth(), s.verify)
	}

	protected := api.Group("", s.requireAuth())
	{
		protected.GET("/chats", s.listChats)
		protected.POST("/chats", s.createChat)
		protected.PUT("/chats/:id", s.updateChat)
		protected.DELETE("/chats/:id", s.deleteChat)

		protected.GET("/messages/:chatId", s.listMessages)
		protected.POST("/messages/:chatId", s.sendMessage)
		protected.PUT("/messages/:messageId", s.editMessage)
	}

	r.GET("/ws", s.serveWS)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	})
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = s.origins
	}
	return cfg
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": time.Now().UTC()})
}
