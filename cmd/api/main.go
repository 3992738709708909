package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulBabatuyi/quotechat/internal/auth"
	"github.com/PaulBabatuyi/quotechat/internal/config"
	"github.com/PaulBabatuyi/quotechat/internal/data"
	"github.com/PaulBabatuyi/quotechat/internal/db"
	"github.com/PaulBabatuyi/quotechat/internal/middleware"
	"github.com/PaulBabatuyi/quotechat/internal/quotes"
	"github.com/PaulBabatuyi/quotechat/internal/seed"
	"github.com/PaulBabatuyi/quotechat/internal/service"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	// Initialize database
	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(context.Background())
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	// Create stores
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	chatsStore := data.NewChatsStore(dbClient.ChatsCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())

	// Signing keys: JWT_KEYS enables rotation, JWT_SECRET is the single-key form
	var jwtMgr *auth.JWTManager
	if len(cfg.JWTKeys) > 0 {
		jwtMgr = auth.NewJWTManagerFromKeys(cfg.JWTKeys, cfg.JWTActiveKid, cfg.TokenTTL)
	} else {
		jwtMgr = auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	}

	defaults := seed.Load()
	quoteProvider := quotes.NewProvider(cfg.QuoteURL, cfg.QuoteTimeout, defaults.FallbackQuotes)

	hub := NewRoomHub()
	replier := service.NewAutoReplier(cfg.ReplyDelay, quoteProvider, chatsStore, msgsStore, hub)
	chatSvc := service.NewChatService(chatsStore, msgsStore, defaults.Chats)
	msgSvc := service.NewMessageService(chatsStore, msgsStore, hub, replier)

	// Register and login share a small per-IP budget
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, time.Minute)
	defer limiterStore.Stop()

	gin.SetMode(gin.ReleaseMode)
	if os.Getenv("GIN_MODE") != "" {
		gin.SetMode(os.Getenv("GIN_MODE"))
	}
	srv := newServer(usersStore, chatSvc, msgSvc, jwtMgr, hub, limiterStore, cfg.ClientOrigins)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC health endpoint, TLS when certs are configured
	grpcServer, healthSrv, err := newHealthServer(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		log.Fatalf("failed to load TLS certs: %v", err)
	}
	watchCtx, stopWatch := context.WithCancel(ctx)
	go watchHealth(watchCtx, healthSrv, dbClient, pingInterval)
	go func() {
		if err := serveHealth(grpcServer, fmt.Sprintf(":%s", cfg.HealthPort)); err != nil {
			log.Printf("gRPC health server exit: %v", err)
		}
	}()

	go func() {
		var err error
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			log.Printf("HTTPS server listening on %s", httpServer.Addr)
			err = httpServer.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			log.Printf("HTTP server listening on %s", httpServer.Addr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server exit: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down")
	stopWatch()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	// let queued auto-replies land before the database goes away
	if err := replier.Drain(shutdownCtx); err != nil {
		log.Printf("auto-replies still pending at shutdown: %v", err)
	}
	grpcServer.GracefulStop()
}
