package main

import (
	"context"
	"strings"
	"testing"

	"hopper/internal/queue"
)

func TestQueueListEmpty(t *testing.T) {
	configPath, _ := writeCLIConfig(t)

	out, err := runCLI(t, "--config", configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, "Queue is empty") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestQueueListShowsSeededJob(t *testing.T) {
	configPath, cfg := writeCLIConfig(t)
	job := seedJob(t, cfg, "https://example.com/watch?v=cli1", queue.ModeFull)

	out, err := runCLI(t, "--config", configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, job.ID) || !strings.Contains(out, "Seeded Job") {
		t.Fatalf("expected job row in output, got: %q", out)
	}
}

func TestQueueStatusCountsJobs(t *testing.T) {
	configPath, cfg := writeCLIConfig(t)
	seedJob(t, cfg, "https://example.com/watch?v=cli2", queue.ModeText)

	out, err := runCLI(t, "--config", configPath, "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if !strings.Contains(out, "Queued") || !strings.Contains(out, "1") {
		t.Fatalf("expected queued count in output, got: %q", out)
	}
}

func TestQueueHistoryAndClear(t *testing.T) {
	configPath, cfg := writeCLIConfig(t)
	job := seedJob(t, cfg, "https://example.com/watch?v=cli3", queue.ModeWav)

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	if err := store.Update(context.Background(), job.ID, queue.Update{
		Status:      queue.Ptr(queue.StatusCompleted),
		CompletedAt: queue.Ptr(job.CreatedAt),
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	store.Close()

	out, err := runCLI(t, "--config", configPath, "queue", "history")
	if err != nil {
		t.Fatalf("queue history: %v", err)
	}
	if !strings.Contains(out, job.ID) {
		t.Fatalf("expected finished job in history, got: %q", out)
	}

	out, err = runCLI(t, "--config", configPath, "queue", "clear")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	if !strings.Contains(out, "Removed 1 jobs") {
		t.Fatalf("unexpected clear output: %q", out)
	}

	out, err = runCLI(t, "--config", configPath, "queue", "history")
	if err != nil {
		t.Fatalf("queue history after clear: %v", err)
	}
	if !strings.Contains(out, "No finished jobs") {
		t.Fatalf("expected empty history, got: %q", out)
	}
}

func TestShowCommandOffline(t *testing.T) {
	configPath, cfg := writeCLIConfig(t)
	job := seedJob(t, cfg, "https://example.com/watch?v=cli4", queue.ModeFull)

	out, err := runCLI(t, "--config", configPath, "show", job.ID)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, job.ID) || !strings.Contains(out, "https://example.com/watch?v=cli4") {
		t.Fatalf("unexpected show output: %q", out)
	}

	if _, err := runCLI(t, "--config", configPath, "show", "missing1"); err == nil {
		t.Fatal("expected error for missing job")
	}
}

func TestCancelRequiresDaemon(t *testing.T) {
	configPath, cfg := writeCLIConfig(t)
	job := seedJob(t, cfg, "https://example.com/watch?v=cli5", queue.ModeFull)

	if _, err := runCLI(t, "--config", configPath, "cancel", job.ID); err == nil {
		t.Fatal("expected cancel to fail without a running daemon")
	}
}
