package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreInternallyConsistent(t *testing.T) {
	cfg := Defaults()

	if cfg.Optimizer.BaseTTL <= 0 {
		t.Fatal("expected a positive base TTL")
	}
	if cfg.Txn.MaxActiveTransactions <= 0 {
		t.Fatal("expected a positive active transaction cap")
	}
	if len(cfg.Validator.AllowedKeywords) == 0 {
		t.Fatal("expected a non-empty default keyword allow-list")
	}
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Optimizer.PlanCacheSize != Defaults().Optimizer.PlanCacheSize {
		t.Fatalf("expected default plan cache size, got %d", cfg.Optimizer.PlanCacheSize)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cyphercoord.yaml")
	contents := "debugmode: true\noptimizer:\n  plancachesize: 42\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.DebugMode {
		t.Fatal("expected debugmode true from file override")
	}
	if cfg.Optimizer.PlanCacheSize != 42 {
		t.Fatalf("expected plan cache size 42, got %d", cfg.Optimizer.PlanCacheSize)
	}
	if cfg.Optimizer.BaseTTL != Defaults().Optimizer.BaseTTL {
		t.Fatal("expected unspecified fields to keep their defaults")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CYPHERCOORD_DEBUGMODE", "true")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.DebugMode {
		t.Fatal("expected environment override to set debugmode")
	}
	_ = time.Second
}
