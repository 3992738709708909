package main

import (
	"context"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthService is the name reported alongside the overall ("") status.
const healthService = "quotechat"

const pingInterval = 15 * time.Second

// pinger is implemented by db.Client.
type pinger interface {
	Ping(ctx context.Context) error
}

// newHealthServer builds a gRPC server exposing grpc.health.v1.Health. If
// certFile and keyFile are set the server requires TLS.
func newHealthServer(certFile, keyFile string) (*grpc.Server, *health.Server, error) {
	var opts []grpc.ServerOption
	if certFile != "" && keyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(certFile, keyFile)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	gs := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs, nil
}

// serveHealth listens on addr until gs is stopped.
func serveHealth(gs *grpc.Server, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("gRPC health listening on %s", addr)
	return gs.Serve(lis)
}

// checkOnce pings the database and publishes the result.
func checkOnce(ctx context.Context, hs *health.Server, db pinger) healthpb.HealthCheckResponse_ServingStatus {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := db.Ping(pctx); err != nil {
		log.Printf("health: database ping failed: %v", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(healthService, status)
	return status
}

// watchHealth re-checks the database every interval until ctx is done, then
// marks the server as shutting down.
func watchHealth(ctx context.Context, hs *health.Server, db pinger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	checkOnce(ctx, hs, db)
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			checkOnce(ctx, hs, db)
		}
	}
}
