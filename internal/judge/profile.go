// Package judge evaluates generated logos with several independent judges
// and combines their verdicts into one pass/fail decision.
package judge

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes one judge: what it looks at and how much it counts.
type Profile struct {
	Name         string   `yaml:"name"`
	Weight       float64  `yaml:"weight"`
	Threshold    float64  `yaml:"threshold"`
	Criteria     []string `yaml:"criteria"`
	Instructions string   `yaml:"instructions"`
}

// Policy holds the aggregation rules shared by all judges.
type Policy struct {
	GlobalThreshold float64 `yaml:"global_threshold"`
	TopSuggestions  int     `yaml:"top_suggestions"`
}

// Config is the full judge panel.
type Config struct {
	Policy Policy    `yaml:"policy"`
	Judges []Profile `yaml:"judges"`
}

// Profile returns the judge profile with name.
func (c Config) Profile(name string) (Profile, bool) {
	for _, p := range c.Judges {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Validate checks the panel for unusable entries.
func (c Config) Validate() error {
	if len(c.Judges) == 0 {
		return fmt.Errorf("at least one judge is required")
	}
	if c.Policy.TopSuggestions <= 0 {
		return fmt.Errorf("top_suggestions must be > 0")
	}
	seen := make(map[string]bool, len(c.Judges))
	for _, p := range c.Judges {
		if p.Name == "" {
			return fmt.Errorf("judge name is required")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate judge %q", p.Name)
		}
		seen[p.Name] = true
		if p.Weight <= 0 {
			return fmt.Errorf("judge %q: weight must be > 0", p.Name)
		}
		if p.Threshold < 0 || p.Threshold > 10 {
			return fmt.Errorf("judge %q: threshold must be within 0-10", p.Name)
		}
		if len(p.Criteria) == 0 {
			return fmt.Errorf("judge %q: at least one criterion is required", p.Name)
		}
	}
	return nil
}

// DefaultConfig returns the built-in panel.
func DefaultConfig() Config {
	return Config{
		Policy: Policy{GlobalThreshold: 7.5, TopSuggestions: 10},
		Judges: []Profile{
			{
				Name:      "brand_alignment",
				Weight:    0.35,
				Threshold: 7.0,
				Criteria:  []string{"brand_fit", "audience_fit", "personality", "differentiation"},
				Instructions: "Judge how well the logo expresses the brand: its industry, " +
					"audience and personality, and whether it stands apart from competitors.",
			},
			{
				Name:      "technical_quality",
				Weight:    0.25,
				Threshold: 7.0,
				Criteria:  []string{"svg_validity", "path_efficiency", "scalability", "typography"},
				Instructions: "Judge the SVG as an engineering artifact: valid markup, clean " +
					"paths, crisp rendering at small and large sizes, sound text handling.",
			},
			{
				Name:      "aesthetics",
				Weight:    0.15,
				Threshold: 6.5,
				Criteria:  []string{"balance", "color_harmony", "visual_hierarchy", "originality"},
				Instructions: "Judge the visual design: composition, color, hierarchy and " +
					"whether it feels fresh rather than generic.",
			},
			{
				Name:      "versatility",
				Weight:    0.25,
				Threshold: 7.0,
				Criteria:  []string{"monochrome", "small_size", "background_contrast", "format_adaptability"},
				Instructions: "Judge how the logo holds up across uses: single color, favicon " +
					"size, light and dark backgrounds, print and digital.",
			},
		},
	}
}

// ParseConfig decodes a YAML panel. Missing policy fields fall back to the
// defaults.
func ParseConfig(data []byte) (Config, error) {
	def := DefaultConfig()
	cfg := Config{Policy: def.Policy}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse judge profiles: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid judge profiles: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads the panel from path, or returns the defaults when path
// is empty.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read judge profiles: %w", err)
	}
	return ParseConfig(data)
}
