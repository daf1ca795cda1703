package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsAndFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
fetch:
  workers: 3
  recentRetention: 48h
sources:
  defaultServices: [payments-api, ledger]
  routes:
    - match: "payments-*"
      stream: '{app="payments"}'
      keywords: [charge, refund]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Fetch.Workers != 3 || cfg.Fetch.RecentRetention != 48*time.Hour {
		t.Fatalf("file overrides not applied: %+v", cfg.Fetch)
	}
	if cfg.Fetch.HistoricalRetention != 90*24*time.Hour {
		t.Fatalf("expected default historical retention, got %v", cfg.Fetch.HistoricalRetention)
	}
	if cfg.Window.LifecycleBuffer != time.Hour || cfg.Classifier.GraphDepth != 4 {
		t.Fatalf("expected defaults to survive partial file")
	}

	route, ok := cfg.Sources.Route("payments-api")
	if !ok || route.Stream != `{app="payments"}` {
		t.Fatalf("expected payments route, got %+v %v", route, ok)
	}
	if _, ok := cfg.Sources.Route("ledger"); ok {
		t.Fatalf("ledger must not match payments glob")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MIRADOR_INV_FETCH_WORKERS", "11")
	t.Setenv("MIRADOR_INV_TIMELINE_ETL_LAG", "30m")
	t.Setenv("MIRADOR_INV_LOG_FORMAT", "json")
	t.Setenv("MIRADOR_INV_CONFIG", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Fetch.Workers != 11 || cfg.Timeline.ETLLag != 30*time.Minute || !cfg.Logging.JSON {
		t.Fatalf("env overrides not applied")
	}
}

func TestValidateRejectsInconsistentValues(t *testing.T) {
	cfg := Default()
	cfg.Fetch.HistoricalRetention = time.Hour
	cfg.Cluster.SimilarityThreshold = 1.5
	cfg.Classifier.Aggregation = "max"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"retention", "similarityThreshold", "aggregation"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestSourcesKeywordsAndServices(t *testing.T) {
	src := SourcesConfig{
		Routes: []SourceRoute{
			{Match: "payments-*", Keywords: []string{"charge", "refund"}},
			{Match: "ledger"},
			{Match: "payments-api"},
		},
		DefaultServices: []string{"payments-api"},
		Keywords:        []string{"failed", "charge"},
	}
	got := src.KeywordsFor("payments-api", "timeout")
	want := []string{"charge", "refund", "failed", "timeout"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if svcs := src.Services(nil); !reflect.DeepEqual(svcs, []string{"payments-api"}) {
		t.Fatalf("expected default services, got %v", svcs)
	}
	if svcs := src.Services([]string{"pay*", "billing"}); !reflect.DeepEqual(svcs, []string{"payments-api", "billing"}) {
		t.Fatalf("unexpected glob expansion %v", svcs)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if cfg.Clients.VictoriaLogs.BaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected victorialogs url %q", cfg.Clients.VictoriaLogs.BaseURL)
	}
	if len(cfg.Sources.Routes) != 1 || cfg.Sources.Routes[0].Match != "label-*" {
		t.Fatalf("unexpected routes %+v", cfg.Sources.Routes)
	}
	if cfg.Fetch.Workers != Default().Fetch.Workers {
		t.Fatalf("defaults should survive partial files")
	}
}
