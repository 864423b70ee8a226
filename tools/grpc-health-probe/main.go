// grpc-health-probe exits 0 when the target reports SERVING.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/timfee/scheduler/libs/grpcx"
)

func main() {
	addr := flag.String("addr", "localhost:9083", "gRPC address")
	service := flag.String("service", "", "service name; empty checks the whole server")
	timeout := flag.Duration("timeout", 3*time.Second, "dial and RPC timeout")
	flag.Parse()

	if err := probe(context.Background(), *addr, *service, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("SERVING")
}

func probe(ctx context.Context, addr, service string, timeout time.Duration) error {
	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: timeout})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("status %s", resp.GetStatus())
	}
	return nil
}
