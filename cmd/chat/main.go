// Package main runs the terminal chat client against the assistant API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/rmpassist/rmp-assistant/internal/tui"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	apiURL := flag.String("api", envOr("CHAT_API_URL", "http://localhost:8080"), "Base URL of the assistant API")
	logPath := flag.String("log", envOr("CHAT_LOG_FILE", "chat.log"), "File to write client errors to")
	flag.Parse()

	// Stdout belongs to the UI, so errors go to a file.
	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)

		return 1
	}
	defer logFile.Close()

	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := tui.New(ctx, tui.NewClient(*apiURL, nil), logger)

	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		logger.Error("chat client stopped", "error", err)
		fmt.Fprintf(os.Stderr, "chat client: %v\n", err)

		return 1
	}

	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
