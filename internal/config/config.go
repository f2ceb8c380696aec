// Package config provides configuration types and loading for crewclaw.
package config

// Config is the root configuration struct.
type Config struct {
	Paths    PathsConfig    `json:"paths"`
	Model    ModelConfig    `json:"model"`
	Provider ProviderConfig `json:"provider"`
	Policy   PolicyConfig   `json:"policy"`
	Store    StoreConfig    `json:"store"`
	Trace    TraceConfig    `json:"trace"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	Workspace  string `json:"workspace" envconfig:"WORKSPACE"`
	SessionDir string `json:"sessionDir" envconfig:"SESSION_DIR"`
}

// ModelConfig groups LLM model and agent-loop settings.
type ModelConfig struct {
	Name             string  `json:"name" envconfig:"MODEL"`
	MaxTokens        int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature      float64 `json:"temperature" envconfig:"TEMPERATURE"`
	MaxTurns         int     `json:"maxTurns" envconfig:"MAX_TURNS"`
	CompactThreshold float64 `json:"compactThreshold" envconfig:"COMPACT_THRESHOLD"`
}

// ProviderConfig configures the OpenAI-compatible LLM endpoint.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	BaseURL string `json:"baseUrl" envconfig:"BASE_URL"`
}

// PolicyConfig seeds the permission engine. Allow and Deny hold rule
// specifiers like "Exec(git status:*)" or "WriteFile(/tmp/**)".
type PolicyConfig struct {
	Mode  string   `json:"mode" envconfig:"MODE"`
	Allow []string `json:"allow"`
	Deny  []string `json:"deny"`
}

// StoreConfig configures the local SQLite store.
type StoreConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	DBPath  string `json:"dbPath" envconfig:"DB_PATH"`
}

// TraceConfig configures the optional Kafka event mirror.
type TraceConfig struct {
	Enabled bool     `json:"enabled" envconfig:"ENABLED"`
	Brokers []string `json:"brokers" envconfig:"BROKERS"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			MaxTokens:        4096,
			Temperature:      0.7,
			MaxTurns:         100,
			CompactThreshold: 0.8,
		},
		Policy: PolicyConfig{
			Mode: "default",
		},
		Store: StoreConfig{
			Enabled: true,
		},
	}
}
