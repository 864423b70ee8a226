package main

import (
	"context"
	"net"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/timfee/scheduler/libs/grpcx"
)

func TestProbe(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv, hs := grpcx.NewServer()
	hs.SetServingStatus("booking-service", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("draining", healthpb.HealthCheckResponse_NOT_SERVING)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	addr := lis.Addr().String()
	if err := probe(context.Background(), addr, "booking-service", 2*time.Second); err != nil {
		t.Fatalf("expected serving: %v", err)
	}
	if err := probe(context.Background(), addr, "draining", 2*time.Second); err == nil {
		t.Fatal("expected error for NOT_SERVING")
	}
}
