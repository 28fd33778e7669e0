package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/keepwarm"
	"github.com/jpalmerr/keepwarm/dashboard"
	"github.com/jpalmerr/keepwarm/internal/server"
)

func main() {
	// start mock server (see mock_server.go): sleeps after 90s idle, 5s cold start
	go StartMockColdServer(":9999", 90*time.Second, 5*time.Second)
	time.Sleep(100 * time.Millisecond)

	body, err := keepwarm.ParseJSONBody(`{
		"job_description": "Software Engineer",
		"resume_data": {"skills": ["Go", "SQL"], "years": 5}
	}`)
	if err != nil {
		slog.Error("failed to parse body", "error", err)
		os.Exit(1)
	}

	// one ping a minute keeps the 90s idle timer from ever firing
	ctrl, err := keepwarm.New(keepwarm.Configuration{
		URL:        "http://localhost:9999/evaluate",
		Method:     http.MethodPost,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
		Interval:   time.Minute,
		MaxHistory: 50,
	},
		keepwarm.WithResultCallback(func(r keepwarm.PingResult) {
			if r.LatencyMs > 1000 {
				slog.Warn("target was cold", "latency_ms", r.LatencyMs)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create controller", "error", err)
		os.Exit(1)
	}
	defer ctrl.Close()

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   keepwarm Demo                                       ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Target: mock service on :9999 that sleeps after     ║")
	fmt.Println("  ║   90s idle and takes 5s to wake up                    ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(ctrl, 8080, dashboard.Assets, "keepwarm Demo", nil)
	if err := srv.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	if err := ctrl.Start(ctx); err != nil {
		slog.Error("failed to start pinging", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
}
