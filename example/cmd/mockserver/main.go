// Standalone cold-start mock server for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/keepwarm serve -c example/keepwarm.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	idleAfter := flag.Duration("idle", 90*time.Second, "idle time before the service sleeps")
	coldStart := flag.Duration("cold", 5*time.Second, "delay of the first request after sleeping")
	failEvery := flag.Int("fail-every", 0, "answer 503 to every nth request (0 disables)")
	flag.Parse()

	fmt.Printf("Mock cold-start server starting on %s\n", *addr)
	fmt.Printf("Sleeps after %s idle, wakes up in %s\n", *idleAfter, *coldStart)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu       sync.Mutex
		lastSeen time.Time
		count    int
	)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		cold := lastSeen.IsZero() || time.Since(lastSeen) > *idleAfter
		lastSeen = time.Now()
		count++
		n := count
		mu.Unlock()

		if cold {
			slog.Info("cold start", "delay", coldStart.String())
			time.Sleep(*coldStart)
		}

		if *failEvery > 0 && n%*failEvery == 0 {
			http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"cold":    cold,
			"method":  r.Method,
			"request": n,
		})
	})

	if err := http.ListenAndServe(*addr, nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
