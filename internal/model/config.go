package model

import (
	"fmt"
	"time"
)

// Config is the static process configuration. It is assembled once at
// startup (flags, env, config file) and treated as immutable afterwards.
type Config struct {
	News   NewsConfig   `yaml:"news" mapstructure:"news"`
	LLM    LLMConfig    `yaml:"llm" mapstructure:"llm"`
	Agents AgentsConfig `yaml:"agents" mapstructure:"agents"`
	Verify VerifyConfig `yaml:"verify" mapstructure:"verify"`
	Scan   ScanConfig   `yaml:"scan" mapstructure:"scan"`
	Crisis CrisisConfig `yaml:"crisis" mapstructure:"crisis"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
}

// NewsConfig configures the news/search provider client.
type NewsConfig struct {
	APIKey            string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxQueryLen       int           `yaml:"max_query_len" mapstructure:"max_query_len"`
	MaxAttempts       int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base" mapstructure:"backoff_base"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// LLMConfig configures the language-model provider shared by all agents.
type LLMConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"` // openai, groq
	Model     string        `yaml:"model" mapstructure:"model"`       // Default model, roles may override
	APIKey    string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// RoleConfig configures one agent role.
type RoleConfig struct {
	Role      Role          `yaml:"role" mapstructure:"role"`
	Weight    float64       `yaml:"weight" mapstructure:"weight"`
	Model     string        `yaml:"model,omitempty" mapstructure:"model"` // Overrides LLMConfig.Model
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	DependsOn []Role        `yaml:"depends_on,omitempty" mapstructure:"depends_on"`
}

// AgentsConfig holds the full role set and the reduced set used by the
// scan pipeline. MaxRetries counts extra invocation attempts after a
// schema-validation failure.
type AgentsConfig struct {
	Roles      []RoleConfig `yaml:"roles" mapstructure:"roles"`
	ScanRoles  []Role       `yaml:"scan_roles" mapstructure:"scan_roles"`
	MaxRetries int          `yaml:"max_retries" mapstructure:"max_retries"`
}

// VerifyConfig configures the verification orchestrator.
type VerifyConfig struct {
	RunTimeout    time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`
	EvidenceLimit int           `yaml:"evidence_limit" mapstructure:"evidence_limit"`
	AllowDegraded bool          `yaml:"allow_degraded" mapstructure:"allow_degraded"` // Proceed with zero evidence as unverified
	CacheTTL      time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`           // 0 disables the verdict cache
}

// ScanConfig configures the batch scan pipeline.
type ScanConfig struct {
	Topics      []string      `yaml:"topics" mapstructure:"topics"`
	BatchLimit  int           `yaml:"batch_limit" mapstructure:"batch_limit"`
	Window      time.Duration `yaml:"window" mapstructure:"window"`
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
}

// CrisisConfig configures crisis cluster thresholding.
type CrisisConfig struct {
	DensityIncrement float64       `yaml:"density_increment" mapstructure:"density_increment"`
	AlertThreshold   float64       `yaml:"alert_threshold" mapstructure:"alert_threshold"`
	AlertWindow      time.Duration `yaml:"alert_window" mapstructure:"alert_window"`
	StalenessWindow  time.Duration `yaml:"staleness_window" mapstructure:"staleness_window"`
	FuzzySimilarity  float64       `yaml:"fuzzy_similarity" mapstructure:"fuzzy_similarity"` // 0 disables fuzzy matching
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// FetchConfig configures the robots-aware source-page fetcher.
type FetchConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// DefaultConfig returns the built-in defaults. API keys always come from
// the environment.
func DefaultConfig() *Config {
	return &Config{
		News: NewsConfig{
			BaseURL:           "https://newsdata.io/api/1",
			Timeout:           15 * time.Second,
			MaxQueryLen:       512,
			MaxAttempts:       3,
			BackoffBase:       500 * time.Millisecond,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:   30 * time.Second,
			MaxTokens: 1000,
		},
		Agents: AgentsConfig{
			Roles: []RoleConfig{
				{Role: RoleResearcher, Weight: 1.0, Timeout: 30 * time.Second},
				{Role: RoleStance, Weight: 1.0, Timeout: 20 * time.Second},
				{Role: RoleCredibility, Weight: 0.8, Timeout: 20 * time.Second},
				{Role: RoleSynthesizer, Weight: 1.5, Timeout: 30 * time.Second,
					DependsOn: []Role{RoleResearcher, RoleCredibility}},
			},
			ScanRoles:  []Role{RoleStance, RoleCredibility},
			MaxRetries: 2,
		},
		Verify: VerifyConfig{
			RunTimeout:    2 * time.Minute,
			EvidenceLimit: 8,
			AllowDegraded: true,
			CacheTTL:      10 * time.Minute,
		},
		Scan: ScanConfig{
			Topics: []string{
				"crisis", "war", "disaster", "emergency", "earthquake", "attack",
			},
			BatchLimit:  25,
			Window:      24 * time.Hour,
			Concurrency: 4,
		},
		Crisis: CrisisConfig{
			DensityIncrement: 1,
			AlertThreshold:   5,
			AlertWindow:      6 * time.Hour,
			StalenessWindow:  48 * time.Hour,
			FuzzySimilarity:  0, // Exact fingerprint match only
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Fetch: FetchConfig{
			Enabled:      true,
			Timeout:      10 * time.Second,
			UserAgent:    "Crux/0.1 (+https://github.com/cruxlabs/crux)",
			MaxBodyBytes: 2_000_000,
		},
	}
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Verify.EvidenceLimit <= 0 {
		return fmt.Errorf("verify.evidence_limit must be positive, got %d", c.Verify.EvidenceLimit)
	}
	if c.News.MaxAttempts <= 0 {
		return fmt.Errorf("news.max_attempts must be positive, got %d", c.News.MaxAttempts)
	}
	if c.Crisis.AlertThreshold <= 0 {
		return fmt.Errorf("crisis.alert_threshold must be positive, got %v", c.Crisis.AlertThreshold)
	}
	if c.Crisis.FuzzySimilarity < 0 || c.Crisis.FuzzySimilarity > 1 {
		return fmt.Errorf("crisis.fuzzy_similarity must be in [0,1], got %v", c.Crisis.FuzzySimilarity)
	}
	if len(c.Agents.Roles) == 0 {
		return fmt.Errorf("agents.roles must not be empty")
	}

	known := make(map[Role]bool, len(c.Agents.Roles))
	for _, rc := range c.Agents.Roles {
		if rc.Weight < 0 {
			return fmt.Errorf("agent role %q has negative weight", rc.Role)
		}
		if known[rc.Role] {
			return fmt.Errorf("agent role %q configured twice", rc.Role)
		}
		known[rc.Role] = true
	}
	for _, rc := range c.Agents.Roles {
		for _, dep := range rc.DependsOn {
			if !known[dep] {
				return fmt.Errorf("agent role %q depends on unknown role %q", rc.Role, dep)
			}
		}
	}
	for _, r := range c.Agents.ScanRoles {
		if !known[r] {
			return fmt.Errorf("scan role %q is not a configured agent role", r)
		}
	}

	return nil
}
