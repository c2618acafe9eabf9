package skills

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinCatalogYAML []byte

type builtinCatalog struct {
	Skills []builtinEntry `yaml:"skills"`
}

type builtinEntry struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	Triggers    []string `yaml:"triggers"`
	Tags        []string `yaml:"tags"`
}

var (
	builtinOnce   sync.Once
	builtinSkills []Skill
	builtinErr    error
)

func loadBuiltIn() ([]Skill, error) {
	builtinOnce.Do(func() {
		var cat builtinCatalog
		if err := yaml.Unmarshal(builtinCatalogYAML, &cat); err != nil {
			builtinErr = fmt.Errorf("parse built-in skill catalog: %w", err)
			return
		}
		out := make([]Skill, 0, len(cat.Skills))
		for i, e := range cat.Skills {
			id := strings.TrimSpace(e.ID)
			name := strings.TrimSpace(e.Name)
			if id == "" || name == "" {
				builtinErr = fmt.Errorf("built-in skill catalog entry %d is missing id or name", i)
				return
			}
			out = append(out, Skill{
				ID:          id,
				Name:        name,
				Description: strings.TrimSpace(e.Description),
				Triggers:    e.Triggers,
				Category:    strings.TrimSpace(e.Category),
				Tags:        e.Tags,
				Source:      SourceBuiltIn,
			})
		}
		builtinSkills = out
	})
	return builtinSkills, builtinErr
}
