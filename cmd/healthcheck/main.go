package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthcheck exits 0 when the API reports SERVING on its gRPC health port.
func main() {
	defaultAddr := "localhost:9090"
	if v := os.Getenv("TMS_GRPC_ADDR"); v != "" {
		if strings.HasPrefix(v, ":") {
			v = "localhost" + v
		}
		defaultAddr = v
	}
	addr := flag.String("addr", defaultAddr, "gRPC address of tms-api")
	service := flag.String("service", "tms-api", "Service name to check; empty for overall status")
	timeout := flag.Duration("timeout", 3*time.Second, "Probe timeout")
	flag.Parse()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: *service})
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check %s: %v\n", *addr, err)
		os.Exit(1)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		fmt.Fprintf(os.Stderr, "%s: %s\n", *addr, resp.GetStatus())
		os.Exit(1)
	}
	fmt.Printf("%s: %s\n", *addr, resp.GetStatus())
}
