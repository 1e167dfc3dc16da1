package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jpalmerr/liveboard"
	"github.com/jpalmerr/liveboard/config"
	"github.com/jpalmerr/liveboard/history"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadTestConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cfg
}

func TestBoardOptions_WithoutHistory(t *testing.T) {
	cfg := loadTestConfig(t, `
title: Ops
port: 9191
panels:
  - name: weather
    url: https://example.com/weather
`)
	panels, err := config.BuildPanels(cfg)
	if err != nil {
		t.Fatalf("BuildPanels() error = %v", err)
	}

	board, err := liveboard.New(boardOptions(cfg, panels, nil, testLogger())...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if board.Port() != 9191 {
		t.Errorf("Port() = %d, want 9191", board.Port())
	}
	if _, err := board.History(t.Context(), "weather", time.Hour, 10); err == nil {
		t.Error("History() expected error without a store, got nil")
	}
}

func TestBoardOptions_WithHistory(t *testing.T) {
	cfg := loadTestConfig(t, `
storage:
  driver: memory
  retention: 1h
maintenance:
  schedule: "30 3 * * *"
panels:
  - name: weather
    url: https://example.com/weather
    persist: true
`)
	panels, err := config.BuildPanels(cfg)
	if err != nil {
		t.Fatalf("BuildPanels() error = %v", err)
	}
	store, err := history.Open(config.HistoryConfig(cfg), testLogger())
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	defer store.Close()

	board, err := liveboard.New(boardOptions(cfg, panels, store, testLogger())...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	records, err := board.History(t.Context(), "weather", time.Hour, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}

func TestApplyConfig(t *testing.T) {
	cfg := loadTestConfig(t, `
panels:
  - name: weather
    url: https://example.com/weather
`)
	panels, err := config.BuildPanels(cfg)
	if err != nil {
		t.Fatalf("BuildPanels() error = %v", err)
	}
	board, err := liveboard.New(boardOptions(cfg, panels, nil, testLogger())...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	next := loadTestConfig(t, `
panels:
  - name: transit
    url: https://example.com/transit
  - name: markets
    url: https://example.com/markets
`)
	applyConfig(board, next, testLogger())

	got := board.Panels()
	if len(got) != 2 {
		t.Fatalf("len(Panels()) = %d, want 2", len(got))
	}
	if _, ok := board.Panel("weather"); ok {
		t.Error("weather still configured after reload")
	}
	if _, ok := board.Panel("markets"); !ok {
		t.Error("markets missing after reload")
	}
}
