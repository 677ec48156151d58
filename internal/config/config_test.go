package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:      HTTPConfig{Port: 8080},
		Database:  DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{APIKey: "sk-test"},
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 || cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("unexpected HTTP timeouts %d/%d", cfg.HTTP.ReadTimeoutSec, cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Storage.KeyPrefix != "ragdex:" {
		t.Errorf("unexpected key prefix %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" || cfg.Embedding.Provider != "openai" {
		t.Errorf("unexpected embedding defaults %q/%q", cfg.Embedding.Model, cfg.Embedding.Provider)
	}
	if cfg.Cache.EmbeddingTTLHours != 168 || cfg.Cache.ResultTTLMinutes != 30 {
		t.Errorf("unexpected cache defaults %d/%d", cfg.Cache.EmbeddingTTLHours, cfg.Cache.ResultTTLMinutes)
	}
	if cfg.Pipeline.BatchSize != 50 || cfg.Pipeline.MaxConcurrentBatches != 4 {
		t.Errorf("unexpected pipeline defaults %d/%d", cfg.Pipeline.BatchSize, cfg.Pipeline.MaxConcurrentBatches)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.ReadTimeoutSec = 5
	cfg.Storage.KeyPrefix = "custom:"
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 5 {
		t.Errorf("explicit timeout overwritten: %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("explicit key prefix overwritten: %q", cfg.Storage.KeyPrefix)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"port too high", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"no database addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"no embedding key", func(c *Config) { c.Embedding.APIKey = "" }, "embedding.api_key"},
		{"generation enabled without key", func(c *Config) {
			c.Generation.Enabled = true
		}, "generation.api_key"},
		{"negative retrieval weight", func(c *Config) {
			c.Retrieval.VectorWeight = -0.5
		}, "retrieval weights"},
		{"negative tenant chunk size", func(c *Config) {
			c.Chunking.TenantOverrides = map[string]ChunkPolicyConfig{"acme": {ChunkSize: -1}}
		}, "tenant_overrides"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RAGDEX_TEST_VAR", "from-env")

	got := string(expandEnvVars([]byte("value: ${RAGDEX_TEST_VAR}")))
	if got != "value: from-env" {
		t.Errorf("unexpected expansion %q", got)
	}
}

func TestExpandEnvVars_Default(t *testing.T) {
	t.Setenv("RAGDEX_TEST_UNSET", "")

	got := string(expandEnvVars([]byte("port: ${RAGDEX_TEST_UNSET:-8080}")))
	if got != "port: 8080" {
		t.Errorf("unexpected expansion %q", got)
	}
}

func TestExpandEnvVars_EnvBeatsDefault(t *testing.T) {
	t.Setenv("RAGDEX_TEST_SET", "9090")

	got := string(expandEnvVars([]byte("port: ${RAGDEX_TEST_SET:-8080}")))
	if got != "port: 9090" {
		t.Errorf("unexpected expansion %q", got)
	}
}

func TestExpandEnvVars_UnsetWithoutDefault(t *testing.T) {
	t.Setenv("RAGDEX_TEST_EMPTY", "")

	got := string(expandEnvVars([]byte("key: ${RAGDEX_TEST_EMPTY}")))
	if got != "key: " {
		t.Errorf("unexpected expansion %q", got)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("expected local, got %q", got)
	}

	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("expected prod, got %q", got)
	}
}
