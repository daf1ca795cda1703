package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/engine"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Rules.Path = ""
	cfg.Reasoning.Provider = "none"
	cfg.Cache.Backend = "memory"
	return &cfg
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuildWithoutBackends(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), quiet())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()

	if a.Investigator == nil || a.Timeline == nil {
		t.Fatalf("engine components not built")
	}
	if a.Deps.Warehouse != nil || a.Deps.Recent != nil || a.Deps.Reasoner != nil {
		t.Fatalf("unconfigured capabilities should stay nil: %+v", a.Deps)
	}
	if _, ok := a.Deps.Extractor.(*engine.PatternExtractor); !ok {
		t.Fatalf("expected pattern extractor, got %T", a.Deps.Extractor)
	}
}

func TestBuildWiresConfiguredCapabilities(t *testing.T) {
	root := t.TempDir()
	src := "package svc\n\ntype Client struct{}\n\nfunc (Client) Post() {}\n\nfunc Run() { Client{}.Post() }\n"
	if err := os.WriteFile(filepath.Join(root, "svc.go"), []byte(src), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	cfg := testConfig(t)
	cfg.Warehouse.DSN = "file:" + filepath.Join(t.TempDir(), "wh.db")
	cfg.Clients.VictoriaLogs.BaseURL = "http://127.0.0.1:9428"
	cfg.Clients.Archive.BaseURL = "http://127.0.0.1:9200"
	cfg.Clients.Status.BaseURL = "http://127.0.0.1:8081"
	cfg.CodeIndex.Root = root
	cfg.Reasoning.Provider = "anthropic"
	cfg.Reasoning.APIKey = "test-key"
	cfg.Reasoning.Extract = true

	a, err := Build(context.Background(), cfg, quiet())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()

	if a.Deps.Warehouse == nil || a.Deps.Recent == nil || a.Deps.Historical == nil || a.Deps.Status == nil {
		t.Fatalf("expected configured capabilities: %+v", a.Deps)
	}
	if len(a.Deps.CodeSearchers) != 1 || a.Deps.CodeGraph == nil {
		t.Fatalf("expected local code index as searcher and graph, got %+v", a.Deps.CodeSearchers)
	}
	if a.Deps.Reasoner == nil {
		t.Fatalf("expected reasoner")
	}
	if _, ok := a.Deps.Extractor.(engine.ChainExtractor); !ok {
		t.Fatalf("expected chained extractor, got %T", a.Deps.Extractor)
	}
}

func TestBuildUnknownReasoningProviderDegrades(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reasoning.Provider = "oracle"
	a, err := Build(context.Background(), cfg, quiet())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()
	if a.Deps.Reasoner != nil {
		t.Fatalf("reasoner should be disabled")
	}
}

func TestBuildRejectsMalformedRulePack(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("rules: [this is: not valid"), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	cfg.Rules.Path = path
	if _, err := Build(context.Background(), cfg, quiet()); err == nil {
		t.Fatalf("expected rule pack error")
	}
}
