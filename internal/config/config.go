package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"plumage/internal/features"
)

// Config is the application's configuration model: account identity, tier
// cutovers, analysis knobs, LLM model lists, enrichment CLI settings, and
// storage. All analysis constants live here instead of module-level globals.
type Config struct {
	Account  AccountConfig  `yaml:"account"`
	Tiers    TierConfig     `yaml:"tiers"`
	Analysis AnalysisConfig `yaml:"analysis"`
	LLM      LLMConfig      `yaml:"llm"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Storage  StorageConfig  `yaml:"storage"`
}

type AccountConfig struct {
	// Username improves self-id inference when UserID is unset.
	Username string `yaml:"username"`
	// UserID, when set, skips inference entirely.
	UserID string `yaml:"userID"`
}

// TierConfig holds the account-capability cutover dates as YYYY-MM-DD.
type TierConfig struct {
	UpgradedStart    string `yaml:"upgradedStart"`
	PostUpgradeStart string `yaml:"postUpgradeStart"`
}

type AnalysisConfig struct {
	// WinsorizeQuantile caps total engagement at this quantile, recomputed
	// per table.
	WinsorizeQuantile float64 `yaml:"winsorizeQuantile"`
	// MinTextChars drops near-empty tweets from classification samples.
	MinTextChars int `yaml:"minTextChars"`
	// SampleSize is the classification workflow sample; EvalSampleSize the
	// (smaller, reference-model-priced) selection sample.
	SampleSize     int   `yaml:"sampleSize"`
	EvalSampleSize int   `yaml:"evalSampleSize"`
	Seed           int64 `yaml:"seed"`
}

// ModelSpec names one hosted model behind an OpenAI-compatible endpoint.
// The API key is read from the named environment variable at call time.
type ModelSpec struct {
	Name      string `yaml:"name"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"baseURL"`
	APIKeyEnv string `yaml:"apiKeyEnv"`
}

// APIKey resolves the key from the environment.
func (m ModelSpec) APIKey() string { return os.Getenv(m.APIKeyEnv) }

type LLMConfig struct {
	// Reference is the stronger ground-truth model for selection runs.
	Reference  ModelSpec   `yaml:"reference"`
	Candidates []ModelSpec `yaml:"candidates"`
	// MaxParallel caps simultaneously in-flight classification calls.
	MaxParallel int `yaml:"maxParallel"`
}

type EnrichConfig struct {
	// Command and Args invoke the account-lookup CLI; ids are appended.
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args"`
	BatchSize int      `yaml:"batchSize"`
	// Dir receives numbered batch files; existing batches are skipped.
	Dir string `yaml:"dir"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Account: AccountConfig{},
		Tiers: TierConfig{
			UpgradedStart:    "2023-09-12",
			PostUpgradeStart: "2024-09-12",
		},
		Analysis: AnalysisConfig{
			WinsorizeQuantile: 0.95,
			MinTextChars:      15,
			SampleSize:        500,
			EvalSampleSize:    15,
			Seed:              42,
		},
		LLM: LLMConfig{
			Reference: ModelSpec{
				Name: "gpt-5", Model: "openai/gpt-5",
				BaseURL: "https://openrouter.ai/api/v1", APIKeyEnv: "OPENROUTER_API_KEY",
			},
			Candidates: []ModelSpec{
				{Name: "gpt-4o-mini", Model: "gpt-4o-mini",
					BaseURL: "https://api.openai.com/v1", APIKeyEnv: "OPENAI_API_KEY"},
				{Name: "gemini-2.5-flash-lite", Model: "google/gemini-2.5-flash-lite",
					BaseURL: "https://openrouter.ai/api/v1", APIKeyEnv: "OPENROUTER_API_KEY"},
				{Name: "deepseek-chat", Model: "deepseek/deepseek-chat",
					BaseURL: "https://openrouter.ai/api/v1", APIKeyEnv: "OPENROUTER_API_KEY"},
			},
			MaxParallel: 5,
		},
		Enrich: EnrichConfig{
			Command:   "x-cli",
			Args:      []string{"user", "--by-id", "--json"},
			BatchSize: 100,
			Dir:       "./data",
		},
		Storage: StorageConfig{DBPath: "./plumage.db"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Account.Username == "" {
		c.Account.Username = os.Getenv("PLUMAGE_USERNAME")
	}
	if c.Account.UserID == "" {
		c.Account.UserID = os.Getenv("PLUMAGE_USER_ID")
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = os.Getenv("PLUMAGE_DB")
	}
}

// FeatureConfig translates the YAML view into the feature engine's config.
func (c Config) FeatureConfig() (features.Config, error) {
	fc := features.DefaultConfig()
	fc.SelfUserID = c.Account.UserID
	fc.UsernameHint = c.Account.Username
	if c.Analysis.WinsorizeQuantile > 0 {
		fc.WinsorizeQuantile = c.Analysis.WinsorizeQuantile
	}
	if c.Tiers.UpgradedStart != "" {
		tm, err := time.Parse("2006-01-02", c.Tiers.UpgradedStart)
		if err != nil {
			return fc, fmt.Errorf("tiers.upgradedStart: %w", err)
		}
		fc.TierUpgradedStart = tm
	}
	if c.Tiers.PostUpgradeStart != "" {
		tm, err := time.Parse("2006-01-02", c.Tiers.PostUpgradeStart)
		if err != nil {
			return fc, fmt.Errorf("tiers.postUpgradeStart: %w", err)
		}
		fc.TierPostUpgradeStart = tm
	}
	return fc, nil
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
