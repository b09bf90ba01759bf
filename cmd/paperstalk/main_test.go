package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/storage"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

func TestPromptQuery(t *testing.T) {
	var out bytes.Buffer
	q, err := promptQuery(strings.NewReader("  딥러닝 분류 \n"), &out)
	if err != nil {
		t.Fatal(err)
	}
	if q != "딥러닝 분류" {
		t.Errorf("query = %q", q)
	}
	if !strings.Contains(out.String(), "Search query") {
		t.Error("expected prompt")
	}

	if _, err := promptQuery(strings.NewReader("\n"), &out); err == nil {
		t.Error("expected error for blank input")
	}
}

func TestApplyCLIOverrides(t *testing.T) {
	cmd := rootCmd()
	if err := cmd.ParseFlags([]string{"-n", "7", "-f", "JSON", "--fetcher", "http", "--headless=false", "--item-timeout", "45s", "--upload"}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		workers, format, fetcherType, headless, itemTimeout, upload = 0, "", "", true, 0, false
	})

	cfg := config.DefaultConfig()
	applyCLIOverrides(cmd, cfg)

	if cfg.Pool.MaxWorkers != 7 || cfg.Storage.Format != "json" || cfg.Fetcher.Type != "http" {
		t.Errorf("overrides not applied: %+v %+v %+v", cfg.Pool, cfg.Storage, cfg.Fetcher)
	}
	if cfg.Browser.Headless || cfg.Pool.ItemTimeout != 45*time.Second || !cfg.Upload.Enabled {
		t.Errorf("overrides not applied: %+v %+v %+v", cfg.Browser, cfg.Pool, cfg.Upload)
	}
}

func TestConfigCommandPrintsYAML(t *testing.T) {
	{
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(t.TempDir()); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })
	}

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"max_workers: 4", "poll_interval: 1s", "prefix: dbpia_papers"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("missing %q in:\n%s", want, out.String())
		}
	}
}

func TestPreviewCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers.csv")
	w, err := storage.NewTableWriter(path, "csv", nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		rec := types.NewRecord(types.Locator{URL: "https://dbpia.test/p", Index: i})
		if i == 2 {
			rec = types.NewFailedRecord(types.Locator{URL: "https://dbpia.test/p", Index: i})
		}
		if err := w.Append(rec); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"preview", path, "--rows", "1"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"3 papers, 1 failed", "1. " + types.NoTitle, "... and 2 more"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("missing %q in:\n%s", want, out.String())
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "PaperStalk ") {
		t.Errorf("unexpected version output %q", out.String())
	}
}

func testLogger() *slog.Logger { return setupLogger(config.LoggingConfig{Level: "error"}) }
