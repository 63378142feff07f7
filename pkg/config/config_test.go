package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// clearMergegateEnv unsets every env var Load reads so tests see only what
// they set themselves.
func clearMergegateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvApprovalCount, EnvStatusLabels, EnvToken, EnvPassword,
		EnvUsername, EnvAPIBase, EnvPassphrase,
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaults(t *testing.T) {
	clearMergegateEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Policy.MinApprovals != 0 {
		t.Errorf("Default min approvals = %d, want 0", cfg.Policy.MinApprovals)
	}
	if len(cfg.Policy.RequiredLabels) != 0 {
		t.Errorf("Default required labels should be empty, got %v", cfg.Policy.RequiredLabels)
	}
	if cfg.ArtifactPath != "git_merge_output.json" {
		t.Errorf("Default artifact path = %q", cfg.ArtifactPath)
	}
	if cfg.HTTPTimeout() != 30*time.Second {
		t.Errorf("Default HTTP timeout = %v, want 30s", cfg.HTTPTimeout())
	}
	if cfg.Merge.Method != MergeMethodMerge {
		t.Errorf("Default merge method = %q, want merge", cfg.Merge.Method)
	}
	if cfg.Retry.Attempts != 1 {
		t.Errorf("Default retry attempts = %d, want 1 (disabled)", cfg.Retry.Attempts)
	}
	if !cfg.Ledger.Enabled {
		t.Error("Ledger should be enabled by default")
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics should be disabled by default")
	}
	if cfg.Auth.Token != "" {
		t.Errorf("Token should be empty without env, got %q", cfg.Auth.Token)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearMergegateEnv(t)
	t.Setenv(EnvApprovalCount, "2")
	t.Setenv(EnvStatusLabels, "ci/build, ci/test")
	t.Setenv(EnvUsername, "merge-bot")
	t.Setenv(EnvToken, "ghp_secret")
	t.Setenv(EnvAPIBase, "https://ghe.example.com/api/v3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Policy.MinApprovals != 2 {
		t.Errorf("Min approvals = %d, want 2", cfg.Policy.MinApprovals)
	}
	want := []string{"ci/build", "ci/test"}
	if !reflect.DeepEqual(cfg.Policy.RequiredLabels, want) {
		t.Errorf("Required labels = %v, want %v", cfg.Policy.RequiredLabels, want)
	}
	if cfg.Auth.Username != "merge-bot" {
		t.Errorf("Username = %q", cfg.Auth.Username)
	}
	if cfg.Auth.Token != "ghp_secret" {
		t.Errorf("Token = %q", cfg.Auth.Token)
	}
	if cfg.APIBase != "https://ghe.example.com/api/v3" {
		t.Errorf("API base = %q", cfg.APIBase)
	}
}

func TestEnvApprovalCountInvalid(t *testing.T) {
	clearMergegateEnv(t)
	t.Setenv(EnvApprovalCount, "two")

	if _, err := Load(""); err == nil {
		t.Error("Load should fail for a non-numeric approval count")
	}
}

func TestEnvApprovalCountNegative(t *testing.T) {
	clearMergegateEnv(t)
	t.Setenv(EnvApprovalCount, "-1")

	if _, err := Load(""); err == nil {
		t.Error("Load should reject a negative approval count")
	}
}

func TestPasswordFallback(t *testing.T) {
	clearMergegateEnv(t)
	t.Setenv(EnvPassword, "legacy-token")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.Token != "legacy-token" {
		t.Errorf("Token = %q, want fallback from %s", cfg.Auth.Token, EnvPassword)
	}

	// GITHUB_TOKEN wins over the fallback.
	t.Setenv(EnvToken, "primary-token")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.Token != "primary-token" {
		t.Errorf("Token = %q, want %s to take precedence", cfg.Auth.Token, EnvToken)
	}
}

func TestConfigFile(t *testing.T) {
	clearMergegateEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api_base: https://ghe.internal/api/v3
http_timeout_sec: 10
artifact_path: out/merge.json
auth:
  username: file-bot
policy:
  min_approvals: 3
  required_labels:
    - ci/build
    - security-scan
merge:
  method: squash
  commit_title: Gate merge
retry:
  attempts: 4
  initial_delay_ms: 100
  max_delay_ms: 2000
  backoff_factor: 2.0
  jitter: false
ledger:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIBase != "https://ghe.internal/api/v3" {
		t.Errorf("API base = %q", cfg.APIBase)
	}
	if cfg.HTTPTimeout() != 10*time.Second {
		t.Errorf("HTTP timeout = %v, want 10s", cfg.HTTPTimeout())
	}
	if cfg.ArtifactPath != "out/merge.json" {
		t.Errorf("Artifact path = %q", cfg.ArtifactPath)
	}
	if cfg.Auth.Username != "file-bot" {
		t.Errorf("Username = %q", cfg.Auth.Username)
	}
	if cfg.Policy.MinApprovals != 3 {
		t.Errorf("Min approvals = %d, want 3", cfg.Policy.MinApprovals)
	}
	if cfg.Merge.Method != MergeMethodSquash {
		t.Errorf("Merge method = %q, want squash", cfg.Merge.Method)
	}
	if cfg.Merge.CommitTitle != "Gate merge" {
		t.Errorf("Commit title = %q", cfg.Merge.CommitTitle)
	}
	if cfg.Retry.Attempts != 4 {
		t.Errorf("Retry attempts = %d, want 4", cfg.Retry.Attempts)
	}
	if cfg.Ledger.Enabled {
		t.Error("Ledger should be disabled by the file")
	}
}

func TestEnvBeatsFile(t *testing.T) {
	clearMergegateEnv(t)
	t.Setenv(EnvApprovalCount, "5")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("policy:\n  min_approvals: 1\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Policy.MinApprovals != 5 {
		t.Errorf("Min approvals = %d, env should beat the file", cfg.Policy.MinApprovals)
	}
}

func TestExplicitConfigFileMustExist(t *testing.T) {
	clearMergegateEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load should fail when an explicit config file is missing")
	}
}

func TestConfigFileMalformed(t *testing.T) {
	clearMergegateEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("policy: [not a map"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load should fail for malformed YAML")
	}
}

func TestDotEnvLoaded(t *testing.T) {
	clearMergegateEnv(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PR_MERGE_APPROVAL_COUNT=7\n"), 0o644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	t.Chdir(dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Policy.MinApprovals != 7 {
		t.Errorf("Min approvals = %d, want 7 from .env", cfg.Policy.MinApprovals)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative approvals", func(c *Config) { c.Policy.MinApprovals = -1 }},
		{"zero timeout", func(c *Config) { c.HTTPTimeoutSec = 0 }},
		{"empty artifact path", func(c *Config) { c.ArtifactPath = "" }},
		{"bad merge method", func(c *Config) { c.Merge.Method = "fast-forward" }},
		{"zero retry attempts", func(c *Config) { c.Retry.Attempts = 0 }},
		{"backoff below 1", func(c *Config) { c.Retry.BackoffFactor = 0.5 }},
		{"ledger without path", func(c *Config) { c.Ledger.Path = "" }},
		{"metrics without path", func(c *Config) { c.Metrics.Enabled = true }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate should reject %s", tc.name)
			}
		})
	}
}

func TestTokenFromSecretsFile(t *testing.T) {
	clearMergegateEnv(t)

	dir := t.TempDir()
	if err := EncryptSecretsFile(dir, "open-sesame", map[string]string{
		EnvToken:    "ghp_from_vault",
		EnvUsername: "vault-bot",
	}); err != nil {
		t.Fatalf("Failed to seed secrets file: %v", err)
	}
	t.Chdir(dir)
	t.Setenv(EnvPassphrase, "open-sesame")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.Token != "ghp_from_vault" {
		t.Errorf("Token = %q, want value from secrets file", cfg.Auth.Token)
	}
	if cfg.Auth.Username != "vault-bot" {
		t.Errorf("Username = %q, want value from secrets file", cfg.Auth.Username)
	}

	// Env token still wins over the secrets file.
	t.Setenv(EnvToken, "ghp_env")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.Token != "ghp_env" {
		t.Errorf("Token = %q, env should beat the secrets file", cfg.Auth.Token)
	}
}

func TestMergePolicyConversion(t *testing.T) {
	cfg := Default()
	cfg.Policy.MinApprovals = 2
	cfg.Policy.RequiredLabels = []string{"ci/build"}

	pol := cfg.MergePolicy()
	if pol.MinApprovals != 2 {
		t.Errorf("Policy min approvals = %d", pol.MinApprovals)
	}
	if !reflect.DeepEqual(pol.RequiredLabels, []string{"ci/build"}) {
		t.Errorf("Policy labels = %v", pol.RequiredLabels)
	}
}

func TestRetryPolicyConversion(t *testing.T) {
	cfg := Default()
	cfg.Retry.Attempts = 3
	cfg.Retry.InitialDelayMS = 250

	p := cfg.RetryPolicy()
	if p.Config.MaxAttempts != 3 {
		t.Errorf("Retry max attempts = %d", p.Config.MaxAttempts)
	}
	if p.Config.InitialDelay != 250*time.Millisecond {
		t.Errorf("Retry initial delay = %v", p.Config.InitialDelay)
	}
	if p.Classifier == nil {
		t.Error("Retry policy should carry the default classifier")
	}
}
