package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config models govpulse.yml.
type Config struct {
	Workspace string `yaml:"workspace"`
	Server    struct {
		Addr      string        `yaml:"addr"`
		BasePath  string        `yaml:"base_path"`
		JWTSecret string        `yaml:"jwt_secret"`
		Tokens    []StaticToken `yaml:"tokens"`
	} `yaml:"server"`
	Sources []SourceConfig `yaml:"sources"`
	Sync    struct {
		Interval  Duration `yaml:"interval"`
		BatchSize int      `yaml:"batch_size"`
	} `yaml:"sync"`
	SLA struct {
		Allowances map[string]Duration `yaml:"allowances"`
		Lookahead  Duration            `yaml:"lookahead"`
	} `yaml:"sla"`
}

// StaticToken grants a pre-shared token a typed capability set instead
// of a free-form permission document. An empty Projects list means all
// projects.
type StaticToken struct {
	Name         string   `yaml:"name"`
	Token        string   `yaml:"token"`
	Capabilities []string `yaml:"capabilities"`
	Projects     []string `yaml:"projects"`
}

// HasCapability reports whether the token carries the named capability,
// directly or through the admin wildcard.
func (t StaticToken) HasCapability(cap string) bool {
	for _, c := range t.Capabilities {
		if c == cap || c == "*" {
			return true
		}
	}
	return false
}

type SourceConfig struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"` // tracker | desk
	Mode        string   `yaml:"mode"` // live | stub
	BaseURL     string   `yaml:"base_url"`
	Token       string   `yaml:"token"`
	ProjectKeys []string `yaml:"project_keys"`
	Timeout     Duration `yaml:"timeout"`
}

// Capabilities checked by the API boundary.
const (
	CapSyncRun       = "sync:run"
	CapAnalyticsRead = "analytics:read"
	CapItemsRead     = "items:read"
	CapItemsWrite    = "items:write"
)

var knownCapabilities = map[string]bool{
	"*":              true,
	CapSyncRun:       true,
	CapAnalyticsRead: true,
	CapItemsRead:     true,
	CapItemsWrite:    true,
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with gp config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	seen := map[string]bool{}
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %s", s.Name)
		}
		seen[s.Name] = true
		if s.Kind != "tracker" && s.Kind != "desk" {
			return fmt.Errorf("source %s: kind must be tracker or desk", s.Name)
		}
		switch s.Mode {
		case "", "stub":
		case "live":
			if s.BaseURL == "" {
				return fmt.Errorf("source %s: base_url is required in live mode", s.Name)
			}
			if s.Token == "" {
				return fmt.Errorf("source %s: token is required in live mode", s.Name)
			}
		default:
			return fmt.Errorf("source %s: mode must be live or stub", s.Name)
		}
	}
	for i, t := range c.Server.Tokens {
		if t.Name == "" {
			return fmt.Errorf("server.tokens[%d].name is required", i)
		}
		if t.Token == "" {
			return fmt.Errorf("server token %s has no token value", t.Name)
		}
		if len(t.Capabilities) == 0 {
			return fmt.Errorf("server token %s grants no capabilities", t.Name)
		}
		for _, cap := range t.Capabilities {
			if !knownCapabilities[cap] {
				return fmt.Errorf("server token %s: unknown capability %s", t.Name, cap)
			}
		}
	}
	if c.Sync.BatchSize < 0 {
		return fmt.Errorf("sync.batch_size must not be negative")
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval must not be negative")
	}
	for priority, d := range c.SLA.Allowances {
		if d <= 0 {
			return fmt.Errorf("sla.allowances.%s must be positive", priority)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "govpulse.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `workspace: .

server:
  addr: ":8080"
  base_path: /v0
  jwt_secret: ""
  tokens: []

sources:
  - name: tracker
    kind: tracker
    mode: stub
    project_keys: [CORE]
  - name: desk
    kind: desk
    mode: stub
    project_keys: [HELP]

sync:
  interval: 5m
  batch_size: 50

sla:
  allowances:
    critical: 4h
    high: 24h
    medium: 72h
    low: 168h
  lookahead: 1h
`
