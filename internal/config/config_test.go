package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"govpulse/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Sync.Interval.Std() != 5*time.Minute {
		t.Fatalf("interval = %v, want 5m", cfg.Sync.Interval.Std())
	}
	if cfg.Sync.BatchSize != 50 {
		t.Fatalf("batch size = %d, want 50", cfg.Sync.BatchSize)
	}
	if cfg.SLA.Allowances["critical"].Std() != 4*time.Hour {
		t.Fatalf("critical allowance = %v, want 4h", cfg.SLA.Allowances["critical"].Std())
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("sources = %d, want tracker and desk", len(cfg.Sources))
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := config.FromYAML([]byte(config.GenerateDefault()))
	if err != nil {
		t.Fatalf("generated default does not parse: %v", err)
	}
	if cfg.Server.BasePath != "/v0" {
		t.Fatalf("base path = %q, want /v0", cfg.Server.BasePath)
	}
}

func TestFromYAMLRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad source kind",
			yaml: "sources:\n  - name: x\n    kind: wiki\n",
			want: "kind must be tracker or desk",
		},
		{
			name: "live without base url",
			yaml: "sources:\n  - name: x\n    kind: tracker\n    mode: live\n    token: t\n",
			want: "base_url is required",
		},
		{
			name: "duplicate source",
			yaml: "sources:\n  - name: x\n    kind: tracker\n  - name: x\n    kind: desk\n",
			want: "duplicate source name",
		},
		{
			name: "unknown capability",
			yaml: "server:\n  tokens:\n    - name: ci\n      token: secret\n      capabilities: [cluster:admin]\n",
			want: "unknown capability",
		},
		{
			name: "token without capabilities",
			yaml: "server:\n  tokens:\n    - name: ci\n      token: secret\n",
			want: "grants no capabilities",
		},
		{
			name: "bad duration",
			yaml: "sync:\n  interval: fast\n",
			want: "invalid duration",
		},
		{
			name: "zero allowance",
			yaml: "sla:\n  allowances:\n    critical: 0s\n",
			want: "must be positive",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.FromYAML([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestStaticTokenCapabilities(t *testing.T) {
	tok := config.StaticToken{Capabilities: []string{config.CapSyncRun}}
	if !tok.HasCapability(config.CapSyncRun) {
		t.Fatal("expected sync:run to be granted")
	}
	if tok.HasCapability(config.CapItemsWrite) {
		t.Fatal("items:write should not be granted")
	}
	admin := config.StaticToken{Capabilities: []string{"*"}}
	if !admin.HasCapability(config.CapAnalyticsRead) {
		t.Fatal("wildcard should grant everything")
	}
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	if _, err := config.Load(dir); err == nil {
		t.Fatal("expected error for missing config")
	}
	if cfg, err := config.LoadOptional(dir); err != nil || cfg != nil {
		t.Fatalf("LoadOptional = %v, %v, want nil, nil", cfg, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "govpulse.yml"), []byte(config.GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(cfg.Sources))
	}
}
