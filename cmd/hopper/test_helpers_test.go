package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"hopper/internal/config"
	"hopper/internal/queue"
)

// writeCLIConfig writes a config file backed by per-test temp directories
// and returns its path with the parsed config.
func writeCLIConfig(t *testing.T) (string, *config.Config) {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	contents := fmt.Sprintf(`[paths]
storage_root = %q
log_dir = %q
api_bind = "127.0.0.1:0"

[downloads]
max_concurrent = 2
`, filepath.Join(base, "downloads"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return configPath, cfg
}

// runCLI executes the root command with the given args and returns its
// combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seedJob inserts a job directly into the queue database behind the config.
func seedJob(t *testing.T, cfg *config.Config, url string, mode queue.Mode) *queue.Job {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	defer store.Close()

	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		ID:    queue.NewJobID(),
		URL:   url,
		Mode:  mode,
		Title: "Seeded Job",
	})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return job
}
