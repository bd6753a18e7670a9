package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseClaims         int            `yaml:"base_claims"`
	ClaimLimits        map[string]int `yaml:"claim_limits"`
	ClaimPrice         float64        `yaml:"claim_price"`
	MaxPurchasedClaims int            `yaml:"max_purchased_claims"`

	ModeChangeCooldownHours int `yaml:"mode_change_cooldown_hours"`
	ModeConfirmSeconds      int `yaml:"mode_confirm_seconds"`

	ShowRadius  int `yaml:"show_radius"`
	NoobMinutes int `yaml:"noob_minutes"`

	UpdateCheck UpdateCheck `yaml:"update_check"`
	Persistence Persistence `yaml:"persistence"`

	Messages map[string]string `yaml:"messages"`
}

type UpdateCheck struct {
	Enabled       bool `yaml:"enabled"`
	IntervalHours int  `yaml:"interval_hours"`
}

type Persistence struct {
	TimeoutMS int `yaml:"timeout_ms"`
	QueueSize int `yaml:"queue_size"`
}

// Limits on admin-editable values.
const (
	MinShowRadius  = 1
	MaxShowRadius  = 10
	MaxClaimsLimit = 1000
)

func Defaults() Config {
	return Config{
		BaseClaims:              1,
		ClaimLimits:             map[string]int{},
		ClaimPrice:              1000,
		MaxPurchasedClaims:      MaxClaimsLimit,
		ModeChangeCooldownHours: 24,
		ModeConfirmSeconds:      30,
		ShowRadius:              3,
		NoobMinutes:             30,
		UpdateCheck:             UpdateCheck{Enabled: true, IntervalHours: 12},
		Persistence:             Persistence{TimeoutMS: 2000, QueueSize: 4096},
		Messages:                DefaultMessages(),
	}
}

//go:embed config.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("config.schema.json")
	})
	return schema, schemaErr
}

// Load reads a YAML config file. A missing path yields defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(b)
}

// Parse validates raw YAML against the embedded schema and decodes it over
// the defaults.
func Parse(b []byte) (Config, error) {
	cfg := Defaults()
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return cfg, fmt.Errorf("config.yaml: %w", err)
	}
	if doc != nil {
		// Round-trip through JSON so the validator sees JSON types.
		raw, err := json.Marshal(doc)
		if err != nil {
			return cfg, fmt.Errorf("config.yaml: %w", err)
		}
		var jdoc any
		if err := json.Unmarshal(raw, &jdoc); err != nil {
			return cfg, fmt.Errorf("config.yaml: %w", err)
		}
		sch, err := compiledSchema()
		if err != nil {
			return cfg, fmt.Errorf("config schema: %w", err)
		}
		if err := sch.Validate(jdoc); err != nil {
			return cfg, fmt.Errorf("config.yaml: %w", err)
		}
	}
	userMessages := map[string]string{}
	cfg.Messages = userMessages
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config.yaml: %w", err)
	}
	merged := DefaultMessages()
	for k, v := range cfg.Messages {
		merged[k] = v
	}
	cfg.Messages = merged
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config.yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if c.ClaimLimits == nil {
		c.ClaimLimits = map[string]int{}
	}
	lower := make(map[string]int, len(c.ClaimLimits))
	for k, v := range c.ClaimLimits {
		lower[strings.ToLower(strings.TrimSpace(k))] = v
	}
	c.ClaimLimits = lower
	if c.ModeConfirmSeconds <= 0 {
		c.ModeConfirmSeconds = 30
	}
	if c.Persistence.TimeoutMS <= 0 {
		c.Persistence.TimeoutMS = 2000
	}
	if c.Persistence.QueueSize <= 0 {
		c.Persistence.QueueSize = 4096
	}
	if c.UpdateCheck.IntervalHours <= 0 {
		c.UpdateCheck.IntervalHours = 12
	}
	if c.Messages == nil {
		c.Messages = DefaultMessages()
	}
}

func (c Config) Validate() error {
	if c.BaseClaims < 0 || c.BaseClaims > MaxClaimsLimit {
		return fmt.Errorf("base_claims must be within [0,%d]", MaxClaimsLimit)
	}
	for group, n := range c.ClaimLimits {
		if group == "" {
			return fmt.Errorf("claim_limits: empty group name")
		}
		if n < 0 || n > MaxClaimsLimit {
			return fmt.Errorf("claim_limits.%s must be within [0,%d]", group, MaxClaimsLimit)
		}
	}
	if c.MaxPurchasedClaims < 0 || c.MaxPurchasedClaims > MaxClaimsLimit {
		return fmt.Errorf("max_purchased_claims must be within [0,%d]", MaxClaimsLimit)
	}
	if c.ClaimPrice < 0 {
		return fmt.Errorf("claim_price must be >= 0")
	}
	if c.ModeChangeCooldownHours < 0 {
		return fmt.Errorf("mode_change_cooldown_hours must be >= 0")
	}
	if c.ShowRadius < MinShowRadius || c.ShowRadius > MaxShowRadius {
		return fmt.Errorf("show_radius must be within [%d,%d]", MinShowRadius, MaxShowRadius)
	}
	if c.NoobMinutes < 0 {
		return fmt.Errorf("noob_minutes must be >= 0")
	}
	return nil
}

func (c Config) ModeCooldown() time.Duration {
	return time.Duration(c.ModeChangeCooldownHours) * time.Hour
}

func (c Config) ModeConfirmWindow() time.Duration {
	return time.Duration(c.ModeConfirmSeconds) * time.Second
}

func (c Config) NoobWindow() time.Duration {
	return time.Duration(c.NoobMinutes) * time.Minute
}

func (c Config) PersistenceTimeout() time.Duration {
	return time.Duration(c.Persistence.TimeoutMS) * time.Millisecond
}

func (c Config) UpdateCheckInterval() time.Duration {
	return time.Duration(c.UpdateCheck.IntervalHours) * time.Hour
}
