package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
)

type Config struct {
	App         AppConfig                 `json:"app"`
	Gateways    map[string]GatewayConfig  `json:"gateways"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Memory      MemoryConfig              `json:"memory"`
	Interpreter InterpreterConfig         `json:"interpreter"`
	Governance  GovernanceConfig          `json:"governance"`
}

type AppConfig struct {
	Name       string `json:"name"`
	Workspace  string `json:"workspace"`
	PromptsDir string `json:"prompts_dir,omitempty"`
}

type GatewayConfig struct {
	Token        string  `json:"token"`
	Enabled      bool    `json:"enabled"`
	AllowedChats []int64 `json:"allowed_chats,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
	Enabled bool   `json:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// InterpreterConfig tunes how model output is turned into plans.
type InterpreterConfig struct {
	// SchemaPath is a YAML file composed onto the built-in tool tables.
	SchemaPath    string      `json:"schema_path,omitempty"`
	WatchSchema   bool        `json:"watch_schema"`
	ReasoningTags [][2]string `json:"reasoning_tags,omitempty"` // [open, close] pairs
	SummaryStep   bool        `json:"summary_step"`
	FallbackTool  string      `json:"fallback_tool,omitempty"`
	OfferTools    *bool       `json:"offer_tools,omitempty"`
}

type GovernanceConfig struct {
	DenyTools     []string            `json:"deny_tools,omitempty"`
	DenyActions   map[string][]string `json:"deny_actions,omitempty"`
	DenyArguments []string            `json:"deny_arguments,omitempty"`
}

// Default returns the configuration used for every field a file leaves unset.
func Default() *Config {
	return &Config{
		App:       AppConfig{Name: "stepwright", Workspace: ".", PromptsDir: "./prompts"},
		Gateways:  map[string]GatewayConfig{},
		Providers: map[string]ProviderConfig{},
		Memory:    MemoryConfig{Type: "sqlite", Path: "stepwright.db"},
		Interpreter: InterpreterConfig{
			FallbackTool: "explain",
		},
		Governance: GovernanceConfig{
			DenyActions:   map[string][]string{"git": {"push"}},
			DenyArguments: []string{`rm\s+-rf`, `mkfs`, `shutdown`, `reboot`},
		},
	}
}

// Load reads a JSON config file on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func (c *Config) validate() error {
	for i, pair := range c.Interpreter.ReasoningTags {
		if pair[0] == "" || pair[1] == "" {
			return fmt.Errorf("reasoning_tags[%d]: open and close must both be set", i)
		}
	}
	if c.App.Workspace == "" {
		c.App.Workspace = "."
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "stepwright.db"
	}
	return nil
}

// GetDefaultProvider returns the enabled provider with the smallest name,
// so the choice does not depend on map order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled && tg.Token != "" {
		return tg, true
	}
	return GatewayConfig{}, false
}

// OfferTools reports whether tool definitions are sent with the analyzer call.
func (c *Config) OfferTools() bool {
	return c.Interpreter.OfferTools == nil || *c.Interpreter.OfferTools
}
