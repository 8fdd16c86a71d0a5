package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CUSTODY_STORAGE_DRIVER", "CUSTODY_LOW_STOCK_THRESHOLD", "CUSTODY_MOVEMENT_LIMIT", "CUSTODY_LINK_TTL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("expected sqlite default, got %q", cfg.Storage.Driver)
	}
	if cfg.Custody.LowStockThreshold != 10 || cfg.Custody.MovementLimit != 50 {
		t.Fatalf("unexpected custody defaults %+v", cfg.Custody)
	}
	if cfg.Custody.LinkTTL != 24*time.Hour {
		t.Fatalf("expected 24h link ttl, got %s", cfg.Custody.LinkTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CUSTODY_STORAGE_DRIVER", "postgres")
	t.Setenv("CUSTODY_LOW_STOCK_THRESHOLD", "4")
	t.Setenv("CUSTODY_SIGN_LOCK_TTL", "3s")
	t.Setenv("CUSTODY_ALLOWED_ORIGINS", "http://a, http://b ,")
	t.Setenv("CUSTODY_BLOB_S3_PATH_STYLE", "true")
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
	if cfg.Storage.Driver != "postgres" || cfg.Custody.LowStockThreshold != 4 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Custody.SignLockTTL != 3*time.Second {
		t.Fatalf("unexpected lock ttl %s", cfg.Custody.SignLockTTL)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b" {
		t.Fatalf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if !cfg.Blob.S3PathStyle {
		t.Fatalf("expected path style")
	}
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("CUSTODY_LOW_STOCK_THRESHOLD", "many")
	t.Setenv("CUSTODY_LINK_TTL", "tomorrow")
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
	if cfg.Custody.LowStockThreshold != 10 || cfg.Custody.LinkTTL != 24*time.Hour {
		t.Fatalf("expected fallbacks, got %+v", cfg.Custody)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CUSTODY_PHONE_REGION=FR\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("CUSTODY_PHONE_REGION", "")
	os.Unsetenv("CUSTODY_PHONE_REGION")
	cfg := Load(path)
	if cfg.Custody.PhoneRegion != "FR" {
		t.Fatalf("expected region from .env, got %q", cfg.Custody.PhoneRegion)
	}
}

func TestLoadObserveBackends(t *testing.T) {
	t.Setenv("CUSTODY_METRICS_BACKEND", "Expvar")
	t.Setenv("CUSTODY_TRACER", "JSON")
	t.Setenv("CUSTODY_TRACE_FILE", "/tmp/trace.jsonl")
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
	if cfg.Observe.Metrics != "expvar" || cfg.Observe.Tracer != "json" || cfg.Observe.TraceFile != "/tmp/trace.jsonl" {
		t.Fatalf("unexpected observe config %+v", cfg.Observe)
	}
}
