package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Redis.TaskTTL != 24*time.Hour {
		t.Errorf("task TTL = %v, want 24h", cfg.Redis.TaskTTL)
	}
	if cfg.Batch.ChunkSize != 100 || cfg.Batch.SubBatchSize != 20 {
		t.Errorf("chunking = %d/%d, want 100/20", cfg.Batch.ChunkSize, cfg.Batch.SubBatchSize)
	}
	if cfg.Batch.AsyncThreshold != 50 {
		t.Errorf("async threshold = %d, want 50", cfg.Batch.AsyncThreshold)
	}
	if len(cfg.Batch.AllowedDomains) == 0 {
		t.Error("no default allowed domains")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BATCH_DOMAINS", "a.test,b.test")
	t.Setenv("BATCH_CHUNK_SIZE", "25")
	t.Setenv("REDIS_TASK_TTL", "1h")

	cfg := Load()

	if len(cfg.Batch.AllowedDomains) != 2 || cfg.Batch.AllowedDomains[0] != "a.test" {
		t.Errorf("domains = %v", cfg.Batch.AllowedDomains)
	}
	if cfg.Batch.ChunkSize != 25 {
		t.Errorf("chunk size = %d, want 25", cfg.Batch.ChunkSize)
	}
	if cfg.Redis.TaskTTL != time.Hour {
		t.Errorf("task TTL = %v, want 1h", cfg.Redis.TaskTTL)
	}
}

func TestQuota_LimitFor(t *testing.T) {
	q := Quota{
		DefaultLimit:   50,
		RoleLimits:     map[string]int{"duke": 500, "knight": 200},
		PrivilegedRole: "emperor",
	}

	if got := q.LimitFor("duke"); got != 500 {
		t.Errorf("duke limit = %d, want 500", got)
	}
	if got := q.LimitFor("civilian"); got != 50 {
		t.Errorf("civilian limit = %d, want default 50", got)
	}
	if !q.Exempt("emperor") {
		t.Error("emperor should be exempt")
	}
	if q.Exempt("duke") || q.Exempt("") {
		t.Error("only the privileged role is exempt")
	}
}
