package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/FadeevMax/test-web-sop/internal/config"
)

func baseConfig() config.Config {
	return config.Config{
		TargetChunkSize: 800,
		MaxChunkSize:    1200,
		OverlapSize:     150,
		MinChunkSize:    300,
		ImageDir:        "images",
		OutputFormat:    "json",
	}
}

func sinkNames(rt *Runtime) []string {
	var names []string
	for _, s := range rt.Sinks {
		names = append(names, s.Name())
	}
	return names
}

func TestNew_Minimal(t *testing.T) {
	rt, err := New(context.Background(), baseConfig(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rt.Close()

	if rt.Builder == nil || rt.Tagger == nil {
		t.Fatal("expected builder and tagger")
	}
	if len(rt.Sinks) != 0 || rt.Notifier != nil || rt.Drive != nil || rt.Store != nil {
		t.Errorf("expected nothing optional wired, got %+v", rt)
	}
	d := rt.Deps()
	if d.Fetcher != nil || d.Notifier != nil || rt.Lister() != nil {
		t.Error("expected nil interfaces in deps")
	}
	if rt.Builder.Config().MaxChunkSize != 1200 {
		t.Errorf("expected builder to use configured sizes, got %+v", rt.Builder.Config())
	}
}

func TestNew_WiresConfiguredParts(t *testing.T) {
	cfg := baseConfig()
	cfg.OutputDir = t.TempDir()
	cfg.GitHubRepo = "acme/sops"
	cfg.GitHubToken = "gh"
	cfg.WebhookURL = "http://127.0.0.1:1/hook"
	cfg.RedisURL = "redis://127.0.0.1:1/0"
	cfg.GoogleAccessToken = "g"
	cfg.Topics = map[string][]string{"pre_rolls": {"pre-roll"}}

	rt, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rt.Close()

	names := sinkNames(rt)
	if len(names) != 2 || names[0] != "file" || names[1] != "github" {
		t.Errorf("unexpected sinks %v", names)
	}
	if rt.Notifier == nil || rt.Drive == nil || rt.Lister() == nil {
		t.Error("expected notifier, drive and content store wired")
	}
	if rt.Deps().Fetcher == nil {
		t.Error("expected drive fetcher in deps")
	}
}

func TestNew_Errors(t *testing.T) {
	tests := map[string]func(*config.Config){
		"bad topic":     func(c *config.Config) { c.Topics = map[string][]string{"X": {" "}} },
		"bad redis url": func(c *config.Config) { c.RedisURL = "://nope" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(&cfg)
			if _, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
