package main

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/PaulBabatuyi/quotechat/internal/apperr"
	"github.com/PaulBabatuyi/quotechat/internal/auth"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// gin context key for the authenticated caller's id
const userIDKey = "auth.user_id"

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// authenticate verifies token and returns its claims and the caller's id.
func (s *Server) authenticate(token string) (*auth.Claims, bson.ObjectID, error) {
	if token == "" {
		return nil, bson.NilObjectID, apperr.New(apperr.Unauthenticated, "Not authorized, no token")
	}
	claims, err := s.auth.VerifyToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, bson.NilObjectID, apperr.Wrap(apperr.Unauthenticated, "Token expired", err)
		}
		return nil, bson.NilObjectID, apperr.Wrap(apperr.Unauthenticated, "Invalid token", err)
	}
	uid, err := claims.ObjectID()
	if err != nil {
		return nil, bson.NilObjectID, apperr.Wrap(apperr.Unauthenticated, "Invalid token", err)
	}
	return claims, uid, nil
}

// requireAuth rejects requests without a valid bearer token and stores the
// caller's id in the gin context for handlers.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, uid, err := s.authenticate(bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

// currentUser returns the id stored by requireAuth.
func currentUser(c *gin.Context) bson.ObjectID {
	v, _ := c.Get(userIDKey)
	uid, _ := v.(bson.ObjectID)
	return uid
}

// writeError maps err to its status and writes {"message": ...}. Internal
// errors are logged and answered with a generic message.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(kind.HTTPStatus(), gin.H{"message": apperr.Message(err)})
}

func abortWithError(c *gin.Context, err error) {
	writeError(c, err)
	c.Abort()
}

// badRequest answers 400 with msg.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": msg})
}
