package classes

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Class is one label a shape can carry.
type Class struct {
	ID       int    `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Color    string `yaml:"color,omitempty" json:"color,omitempty"`
	Shortcut string `yaml:"shortcut,omitempty" json:"shortcut,omitempty"`
}

// Config is the class list plus an optional key hierarchy for picking among
// more classes than there are number keys.
type Config struct {
	Classes   []Class `yaml:"classes" json:"classes"`
	Hierarchy []Node  `yaml:"hierarchy,omitempty" json:"hierarchy,omitempty"`
}

var defaultColors = []string{"#ff0000", "#00ff00", "#0000ff", "#ffff00", "#ff00ff"}

// Default returns five classes bound to keys 1-5.
func Default() *Config {
	cfg := &Config{}
	for i, c := range defaultColors {
		id := i + 1
		cfg.Classes = append(cfg.Classes, Class{
			ID:       id,
			Name:     fmt.Sprintf("Class %d", id),
			Color:    c,
			Shortcut: strconv.Itoa(id),
		})
	}
	return cfg
}

// Load reads a YAML class file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse class config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid class config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault loads path, returning Default when path is empty or the file
// does not exist. A file that exists but cannot be used also yields Default,
// together with the error so the caller can report it.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), err
	}
	return cfg, nil
}

// Validate checks class ids are unique and positive, colors parse, and the
// hierarchy respects the branching and depth limits.
func (c *Config) Validate() error {
	seen := make(map[int]bool, len(c.Classes))
	for _, cl := range c.Classes {
		if cl.ID < 1 {
			return fmt.Errorf("class %q has id %d, ids start at 1", cl.Name, cl.ID)
		}
		if seen[cl.ID] {
			return fmt.Errorf("duplicate class id %d", cl.ID)
		}
		seen[cl.ID] = true
		if cl.Color != "" {
			if _, err := ParseColor(cl.Color); err != nil {
				return fmt.Errorf("class %d: %w", cl.ID, err)
			}
		}
	}
	return Validate(c.Hierarchy)
}

// Find returns the class with the given id.
func (c *Config) Find(id int) (Class, bool) {
	for _, cl := range c.Classes {
		if cl.ID == id {
			return cl, true
		}
	}
	return Class{}, false
}

// IDs returns the configured class ids in configuration order.
func (c *Config) IDs() []int {
	ids := make([]int, len(c.Classes))
	for i, cl := range c.Classes {
		ids[i] = cl.ID
	}
	return ids
}

// Name returns the display name for id, or "Class <id>" when undefined.
func (c *Config) Name(id int) string {
	if cl, ok := c.Find(id); ok && cl.Name != "" {
		return cl.Name
	}
	return fmt.Sprintf("Class %d", id)
}

// Color returns the "#rrggbb" color for id. Classes without a configured
// color get a stable generated one so every class is distinguishable.
func (c *Config) Color(id int) string {
	if cl, ok := c.Find(id); ok && cl.Color != "" {
		if col, err := ParseColor(cl.Color); err == nil {
			return col.Hex()
		}
	}
	return generatedColor(id)
}

// ForKey maps a number key to a class id in flat mode: a class whose
// shortcut is the key wins, then a class whose id equals the key.
func (c *Config) ForKey(key int) (int, bool) {
	k := strconv.Itoa(key)
	for _, cl := range c.Classes {
		if cl.Shortcut == k {
			return cl.ID, true
		}
	}
	if _, ok := c.Find(key); ok {
		return key, true
	}
	return 0, false
}

// Navigator returns a navigator over the configured hierarchy. When no
// hierarchy is configured but there are more classes than number keys, one
// is generated with BuildHierarchy.
func (c *Config) Navigator() (*Navigator, error) {
	tree := c.Hierarchy
	if len(tree) == 0 && len(c.Classes) > MaxBranching {
		built, err := BuildHierarchy(c.Classes)
		if err != nil {
			return nil, err
		}
		tree = built
	}
	return NewNavigator(tree), nil
}

// ParseColor parses "#rrggbb" or "#rgb"; the leading '#' is optional.
func ParseColor(s string) (colorful.Color, error) {
	if s == "" {
		return colorful.Color{}, errors.New("empty color string")
	}
	if s[0] != '#' {
		s = "#" + s
	}
	col, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return col, nil
}

// generatedColor spaces hues by the golden angle so neighbouring ids differ.
func generatedColor(id int) string {
	hue := (id * 137) % 360
	if hue < 0 {
		hue += 360
	}
	return colorful.Hsv(float64(hue), 0.75, 0.95).Hex()
}
