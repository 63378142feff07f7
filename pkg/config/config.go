// Package config provides configuration loading and validation for the merge
// gate.
//
// Precedence, highest first: CLI flags (applied by the command layer after
// Load), environment variables, the optional YAML config file, built-in
// defaults. A .env file in the working directory is loaded into the
// environment before any env reads, so CI jobs can ship settings as a file.
//
// Credentials are resolved here once and passed explicitly into the API
// client constructor; nothing below the command layer reads the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mergegate/pkg/policy"
	"mergegate/pkg/retry"
)

// Environment variable names honored by Load.
const (
	EnvApprovalCount = "PR_MERGE_APPROVAL_COUNT" // Minimum approval count (int, default 0)
	EnvStatusLabels  = "PR_MERGE_STATUS_LABELS"  // Required status checks (comma-separated)
	EnvToken         = "GITHUB_TOKEN"            // API token
	EnvPassword      = "GITHUB_PASSWORD"         // Fallback name for the API token
	EnvUsername      = "GITHUB_USERNAME"         // Optional username, switches client to basic auth
	EnvAPIBase       = "GITHUB_API_BASE"         // Override for the REST API base URL
	EnvPassphrase    = "MERGEGATE_PASSPHRASE"    // Unlocks the encrypted secrets file
)

// File layout constants.
const (
	ConfigDirName      = ".mergegate"
	DefaultConfigFile  = ".mergegate/config.yaml"
	DefaultLedgerPath  = ".mergegate/runs.db"
	DefaultTimeoutSec  = 30
	DefaultMergeMethod = "merge"
)

// Merge method constants accepted by the hosting API.
const (
	MergeMethodMerge  = "merge"
	MergeMethodSquash = "squash"
	MergeMethodRebase = "rebase"
)

// AuthConfig carries code-host credentials. Token is never read from the
// config file; it comes from the environment or the encrypted secrets file.
type AuthConfig struct {
	Username string `yaml:"username"` // Optional; enables basic auth when set
	Token    string `yaml:"-"`
}

// PolicyConfig holds the merge eligibility rules.
type PolicyConfig struct {
	MinApprovals   int      `yaml:"min_approvals"`   // Minimum distinct approving reviewers (default: 0)
	RequiredLabels []string `yaml:"required_labels"` // Status check contexts that must have passed
}

// MergeConfig holds merge call options.
type MergeConfig struct {
	Method        string `yaml:"method"`         // "merge", "squash", or "rebase" (default: merge)
	CommitTitle   string `yaml:"commit_title"`   // Override for the merge commit title
	CommitMessage string `yaml:"commit_message"` // Override for the merge commit message
}

// RetryConfig holds the opt-in whole-run retry settings. Attempts <= 1
// disables retrying.
type RetryConfig struct {
	Attempts       int     `yaml:"attempts"`         // Total attempts including the first (default: 1)
	InitialDelayMS int     `yaml:"initial_delay_ms"` // Delay before the first retry (default: 500)
	MaxDelayMS     int     `yaml:"max_delay_ms"`     // Delay cap (default: 10000)
	BackoffFactor  float64 `yaml:"backoff_factor"`   // Exponential multiplier (default: 2.0)
	Jitter         bool    `yaml:"jitter"`           // Randomize delays (default: true)
}

// LedgerConfig holds the run-history database settings.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"` // Record runs to the SQLite ledger (default: true)
	Path    string `yaml:"path"`    // Database path (default: .mergegate/runs.db)
}

// MetricsConfig holds the textfile metrics settings.
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled"`       // Write run metrics (default: false)
	TextfilePath string `yaml:"textfile_path"` // Target .prom file for the node-exporter textfile collector
}

// Config is the full merge gate configuration.
type Config struct {
	APIBase        string `yaml:"api_base"`         // REST API base URL override (default: derived from PR host)
	HTTPTimeoutSec int    `yaml:"http_timeout_sec"` // Per-request timeout (default: 30)
	ArtifactPath   string `yaml:"artifact_path"`    // Outcome record path; "-" for stdout only

	Auth    AuthConfig    `yaml:"auth"`
	Policy  PolicyConfig  `yaml:"policy"`
	Merge   MergeConfig   `yaml:"merge"`
	Retry   RetryConfig   `yaml:"retry"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		HTTPTimeoutSec: DefaultTimeoutSec,
		ArtifactPath:   "git_merge_output.json",
		Merge: MergeConfig{
			Method: DefaultMergeMethod,
		},
		Retry: RetryConfig{
			Attempts:       1,
			InitialDelayMS: 500,
			MaxDelayMS:     10000,
			BackoffFactor:  2.0,
			Jitter:         true,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    DefaultLedgerPath,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file (the default
// path is optional, an explicit path must exist), then environment
// overrides, then credential resolution. A .env file is folded into the
// environment first.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigFile
	}
	if err := loadFile(cfg, configPath, explicit); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	resolveToken(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvApprovalCount); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvApprovalCount, v, err)
		}
		cfg.Policy.MinApprovals = n
	}

	if v := os.Getenv(EnvStatusLabels); v != "" {
		cfg.Policy.RequiredLabels = policy.ParseRequiredLabels(v)
	}

	if v := os.Getenv(EnvUsername); v != "" {
		cfg.Auth.Username = v
	}

	if v := os.Getenv(EnvAPIBase); v != "" {
		cfg.APIBase = v
	}

	return nil
}

// resolveToken fills Auth.Token using precedence: GITHUB_TOKEN env,
// GITHUB_PASSWORD env, then the encrypted secrets file when a passphrase is
// available. A missing token is not an error here; commands that write to
// the API enforce their own requirement.
func resolveToken(cfg *Config) {
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Auth.Token = v
		return
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Auth.Token = v
		return
	}

	passphrase := os.Getenv(EnvPassphrase)
	if passphrase == "" || !SecretsFileExists(".") {
		return
	}

	secrets, err := DecryptSecretsFile(".", passphrase)
	if err != nil {
		secretsLogger.Warn("Could not read secrets file: %v", err)
		return
	}
	if v := secrets[EnvToken]; v != "" {
		cfg.Auth.Token = v
	}
	if cfg.Auth.Username == "" {
		cfg.Auth.Username = secrets[EnvUsername]
	}
}

// Validate checks invariants that later layers rely on.
func (c *Config) Validate() error {
	if c.Policy.MinApprovals < 0 {
		return fmt.Errorf("policy.min_approvals cannot be negative, got %d", c.Policy.MinApprovals)
	}
	if c.HTTPTimeoutSec <= 0 {
		return fmt.Errorf("http_timeout_sec must be positive, got %d", c.HTTPTimeoutSec)
	}
	if c.ArtifactPath == "" {
		return fmt.Errorf("artifact_path cannot be empty (use \"-\" for stdout)")
	}

	switch c.Merge.Method {
	case MergeMethodMerge, MergeMethodSquash, MergeMethodRebase:
	default:
		return fmt.Errorf("merge.method must be one of %s, %s, %s; got %q",
			MergeMethodMerge, MergeMethodSquash, MergeMethodRebase, c.Merge.Method)
	}

	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Retry.BackoffFactor < 1.0 {
		return fmt.Errorf("retry.backoff_factor must be at least 1.0, got %g", c.Retry.BackoffFactor)
	}

	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path cannot be empty when the ledger is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.TextfilePath == "" {
		return fmt.Errorf("metrics.textfile_path cannot be empty when metrics are enabled")
	}

	return nil
}

// HTTPTimeout returns the per-request timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// MergePolicy converts the policy section into an evaluator policy.
func (c *Config) MergePolicy() policy.Policy {
	return policy.Policy{
		MinApprovals:   c.Policy.MinApprovals,
		RequiredLabels: c.Policy.RequiredLabels,
	}
}

// RetryPolicy converts the retry section into a runner policy with the
// default transient-only classifier.
func (c *Config) RetryPolicy() *retry.Policy {
	return retry.NewPolicy(retry.Config{
		MaxAttempts:   c.Retry.Attempts,
		InitialDelay:  time.Duration(c.Retry.InitialDelayMS) * time.Millisecond,
		MaxDelay:      time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
		BackoffFactor: c.Retry.BackoffFactor,
		Jitter:        c.Retry.Jitter,
	}, nil)
}
