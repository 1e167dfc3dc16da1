// Command example runs a demo board against a local mock upstream.
//
// Usage:
//
//	go run ./example              # mock upstream + board on :8080
//	go run ./example -mock-only   # mock upstream only, for the CLI:
//	go run ./cmd/liveboard serve -c example/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/liveboard"
)

const upstream = "http://localhost:9999"

func main() {
	mockOnly := flag.Bool("mock-only", false, "run only the mock upstream on :9999")
	flag.Parse()

	if *mockOnly {
		fmt.Println("Mock upstream starting on :9999 (/weather, /transit, /markets)")
		StartMockUpstream(":9999")
		return
	}

	// start mock upstream (see mock_server.go)
	go StartMockUpstream(":9999")
	time.Sleep(100 * time.Millisecond)

	panels, err := demoPanels()
	if err != nil {
		slog.Error("failed to create panels", "error", err)
		os.Exit(1)
	}

	board, err := liveboard.New(
		liveboard.WithPanels(panels...),
		liveboard.WithPort(8080),
		liveboard.WithTitle("Liveboard Demo"),
		liveboard.WithRefreshCallback(func(r liveboard.RefreshResult) {
			if r.Outcome != liveboard.OutcomeFresh {
				slog.Warn("panel not fresh", "panel", r.PanelName, "outcome", r.Outcome, "error", r.Error)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create board", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Liveboard Demo")
	fmt.Println()
	fmt.Println("  Panels:     http://localhost:8080/api/panels")
	fmt.Println("  Live feed:  curl -N http://localhost:8080/api/sse")
	fmt.Println()
	fmt.Println("  weather  JSON path, every 5s")
	fmt.Println("  transit  regex over plain text, every 10s")
	fmt.Println("  markets  flaky upstream, serves stale data on failure")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := board.Start(ctx); err != nil {
		slog.Error("liveboard error", "error", err)
		os.Exit(1)
	}
}

func demoPanels() ([]liveboard.Panel, error) {
	weatherSrc, err := liveboard.NewHTTPSource(upstream+"/weather",
		liveboard.WithTransform(liveboard.JSONPath("current")),
	)
	if err != nil {
		return nil, err
	}
	weather, err := liveboard.NewPanel("weather", weatherSrc,
		liveboard.WithInterval(5*time.Second),
	)
	if err != nil {
		return nil, err
	}

	transitSrc, err := liveboard.NewHTTPSource(upstream+"/transit",
		liveboard.WithTransform(liveboard.MustRegex(`Next (?P<line>\w+) train in (?P<minutes>\d+) min`)),
	)
	if err != nil {
		return nil, err
	}
	transit, err := liveboard.NewPanel("transit", transitSrc,
		liveboard.WithInterval(10*time.Second),
		liveboard.WithPlaceholder(map[string]any{"line": nil, "minutes": nil}),
	)
	if err != nil {
		return nil, err
	}

	marketsSrc, err := liveboard.NewHTTPSource(upstream+"/markets",
		liveboard.WithRateLimit(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	markets, err := liveboard.NewPanel("markets", marketsSrc,
		liveboard.WithInterval(5*time.Second),
		liveboard.WithTTL(30*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return []liveboard.Panel{weather, transit, markets}, nil
}
