package main

import (
	"errors"
	"log"
	"net/http"
	"regexp"

	"github.com/PaulBabatuyi/quotechat/internal/apperr"
	"github.com/PaulBabatuyi/quotechat/internal/auth"
	"github.com/PaulBabatuyi/quotechat/internal/data"
	"github.com/PaulBabatuyi/quotechat/internal/normalize"
	"github.com/gin-gonic/gin"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
	Token string `json:"token,omitempty"`
}

// register creates a user, seeds their default chats and returns a token.
func (s *Server) register(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	email := normalize.Email(req.Email)
	if email == "" || req.Password == "" {
		badRequest(c, "Please provide both email and password")
		return
	}
	if !emailPattern.MatchString(email) {
		badRequest(c, "Please provide a valid email address")
		return
	}
	if len(req.Password) < MinPasswordLength {
		badRequest(c, "Password must be at least 6 characters")
		return
	}

	ctx := c.Request.Context()
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		writeError(c, apperr.New(apperr.Duplicate, "User with this email already exists"))
		return
	} else if !errors.Is(err, data.ErrNotFound) {
		writeError(c, apperr.Wrap(apperr.Internal, "lookup user", err))
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "hash password", err))
		return
	}

	user, err := s.users.CreateUser(ctx, email, hashed)
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, data.ErrDuplicate) {
			writeError(c, apperr.Wrap(apperr.Duplicate, "User with this email already exists", err))
			return
		}
		writeError(c, apperr.Wrap(apperr.Internal, "create user", err))
		return
	}
	log.Printf("user %s registered", user.ID.Hex())

	// listing chats seeds again if this fails
	if _, err := s.chats.EnsureSeeded(ctx, user.ID); err != nil {
		log.Printf("seeding chats for %s failed: %v", user.ID.Hex(), err)
	}

	token, _, err := s.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "generate token", err))
		return
	}
	c.JSON(http.StatusCreated, authResponse{ID: user.ID.Hex(), Email: user.Email, Token: token})
}

// login authenticates a user and returns a token.
func (s *Server) login(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if normalize.Email(req.Email) == "" || req.Password == "" {
		badRequest(c, "Please provide email and password")
		return
	}

	user, err := s.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			writeError(c, apperr.New(apperr.Unauthenticated, "User with this email not found"))
			return
		}
		writeError(c, apperr.Wrap(apperr.Internal, "lookup user", err))
		return
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		writeError(c, apperr.New(apperr.Unauthenticated, "Invalid password"))
		return
	}

	token, _, err := s.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "generate token", err))
		return
	}
	c.JSON(http.StatusOK, authResponse{ID: user.ID.Hex(), Email: user.Email, Token: token})
}

// verify returns the identity behind a valid token.
func (s *Server) verify(c *gin.Context) {
	user, err := s.users.GetUserByID(c.Request.Context(), currentUser(c))
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			writeError(c, apperr.New(apperr.Unauthenticated, "User not found"))
			return
		}
		writeError(c, apperr.Wrap(apperr.Internal, "lookup user", err))
		return
	}
	c.JSON(http.StatusOK, authResponse{ID: user.ID.Hex(), Email: user.Email})
}
