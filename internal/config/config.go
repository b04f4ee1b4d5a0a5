// Package config defines the analysis run configuration: target
// company, run mode, selected frameworks, data-source toggles, and
// safety limits. Configuration loads from config.yaml with API keys
// overridable from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RunMode selects which analysis phases execute.
type RunMode string

const (
	// ModeBusinessOverview runs Phase 1 only.
	ModeBusinessOverview RunMode = "business_overview"
	// ModeFrameworksOnly runs Phase 2 over a previously saved Phase 1
	// context.
	ModeFrameworksOnly RunMode = "frameworks"
	// ModeFull runs both phases.
	ModeFull RunMode = "full"
)

// Framework is a Phase 2 strategic framework.
type Framework string

const (
	FrameworkSWOT                Framework = "SWOT Analysis"
	FrameworkPortersFiveForces   Framework = "Porter's Five Forces"
	FrameworkPESTEL              Framework = "PESTEL Analysis"
	FrameworkBCGMatrix           Framework = "BCG Matrix"
	FrameworkBlueOcean           Framework = "Blue Ocean Strategy"
	FrameworkCompetitiveStrategy Framework = "Competitive Strategy"
	FrameworkSalesIntelligence   Framework = "Sales Intelligence"
)

// frameworkSkills maps each known framework to its skill identifier.
var frameworkSkills = map[Framework]string{
	FrameworkSWOT:                "swot-analyzer",
	FrameworkPortersFiveForces:   "porters-five-forces",
	FrameworkPESTEL:              "pestel-analyzer",
	FrameworkBCGMatrix:           "bcg-matrix",
	FrameworkBlueOcean:           "blue-ocean-strategy",
	FrameworkCompetitiveStrategy: "competitive-strategy",
	FrameworkSalesIntelligence:   "sales-intelligence",
}

// Skill returns the skill identifier for the framework. Unknown
// frameworks slugify their name.
func (f Framework) Skill() string {
	if skill, ok := frameworkSkills[f]; ok {
		return skill
	}
	slug := strings.ToLower(string(f))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-':
			return '-'
		default:
			return -1
		}
	}, slug)
	return strings.Trim(slug, "-")
}

// MaxCompetitors caps the competitor list.
const MaxCompetitors = 5

// Company identifies the analysis target. Set once per run.
type Company struct {
	Name     string `yaml:"name" json:"name"`
	Website  string `yaml:"website" json:"website"`
	Industry string `yaml:"industry" json:"industry"`
}

// Advanced holds run safety limits.
type Advanced struct {
	Debug           bool `yaml:"debug" json:"debug"`
	MaxSteps        int  `yaml:"max_steps" json:"max_steps"`
	MaxStepsPerTask int  `yaml:"max_steps_per_task" json:"max_steps_per_task"`
}

// Provider toggles one external data source.
type Provider struct {
	Enabled           bool   `yaml:"enabled" json:"enabled"`
	UseRemoteProtocol bool   `yaml:"use_remote_protocol" json:"use_remote_protocol"`
	APIKey            string `yaml:"api_key" json:"-"`
}

// DataSources enumerates the external providers skills may call.
// Skills check Enabled before calling and degrade to knowledge-base
// LLM calls when a provider is off.
type DataSources struct {
	Firecrawl  Provider `yaml:"firecrawl" json:"firecrawl"`
	Exa        Provider `yaml:"exa" json:"exa"`
	Perplexity Provider `yaml:"perplexity" json:"perplexity"`
}

// Truth configures the verification engine.
type Truth struct {
	Mode          string  `yaml:"mode" json:"mode"` // permissive | strict
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`
}

// Config is the full input bundle for one analysis run.
type Config struct {
	Company     Company     `yaml:"company" json:"company"`
	Mode        RunMode     `yaml:"mode" json:"mode"`
	Frameworks  []Framework `yaml:"frameworks" json:"frameworks"`
	Goal        string      `yaml:"goal" json:"goal"`
	Competitors []string    `yaml:"competitors" json:"competitors"`
	Advanced    Advanced    `yaml:"advanced" json:"advanced"`
	DataSources DataSources `yaml:"data_sources" json:"data_sources"`
	Truth       Truth       `yaml:"truth" json:"truth"`
}

// Defaults returns a config with the standard limits applied.
func Defaults() Config {
	return Config{
		Mode: ModeFull,
		Advanced: Advanced{
			MaxSteps:        50,
			MaxStepsPerTask: 10,
		},
	}
}

// Load reads configuration from a YAML file, applies defaults, and
// overlays API keys from the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.ApplyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeFull
	}
	if c.Advanced.MaxSteps == 0 {
		c.Advanced.MaxSteps = 50
	}
	if c.Advanced.MaxStepsPerTask == 0 {
		c.Advanced.MaxStepsPerTask = 10
	}
	if c.Goal == "" && c.Company.Name != "" {
		c.Goal = "Comprehensive analysis of " + c.Company.Name
	}
}

// ApplyEnv fills provider API keys from the environment when the
// config file does not carry them. Secrets stay at the edges; the
// engine core never reads the process environment.
func (c *Config) ApplyEnv() {
	if c.DataSources.Firecrawl.APIKey == "" {
		c.DataSources.Firecrawl.APIKey = os.Getenv("FIRECRAWL_API_KEY")
	}
	if c.DataSources.Exa.APIKey == "" {
		c.DataSources.Exa.APIKey = os.Getenv("EXA_API_KEY")
	}
	if c.DataSources.Perplexity.APIKey == "" {
		c.DataSources.Perplexity.APIKey = os.Getenv("PERPLEXITY_API_KEY")
	}
}

// Validate checks structural requirements before a run starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Company.Name) == "" {
		return fmt.Errorf("company name is required")
	}
	switch c.Mode {
	case ModeBusinessOverview, ModeFrameworksOnly, ModeFull:
	default:
		return fmt.Errorf("unknown run mode %q", c.Mode)
	}
	if len(c.Competitors) > MaxCompetitors {
		return fmt.Errorf("at most %d competitors supported, got %d", MaxCompetitors, len(c.Competitors))
	}
	return nil
}
