package guardrail

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/labhacker007/Joti-sub001/internal/catalog"
)

// Pack is a YAML file of guardrail definitions shipped together.
type Pack struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	PackVersion string          `yaml:"version"`
	Author      string          `yaml:"author"`
	Guardrails  []PackGuardrail `yaml:"guardrails"`
}

// PackGuardrail is the YAML form of a definition.
type PackGuardrail struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Category    string         `yaml:"category"`
	Severity    Severity       `yaml:"severity"`
	Scope       Scope          `yaml:"scope"`
	Functions   []string       `yaml:"functions"`
	Platforms   []string       `yaml:"platforms"`
	Validation  ValidationSpec `yaml:"validation"`
	Config      map[string]any `yaml:"config"`
	Action      Action         `yaml:"action"`
	MaxRetries  int            `yaml:"max_retries"`
}

// PackInfo is a summary of a pack for listing.
type PackInfo struct {
	Name           string
	Description    string
	Version        string
	Author         string
	Enabled        bool
	Path           string
	GuardrailCount int
	// Error is set when the pack could not be parsed or converted.
	Error string
}

// Definition converts the YAML form. The result still needs Validate.
func (g PackGuardrail) Definition() (Definition, error) {
	cat, err := catalog.ParseCategory(g.Category)
	if err != nil {
		return Definition{}, &ValidationError{Field: "category", Reason: err.Error()}
	}
	v, err := g.Validation.Build()
	if err != nil {
		return Definition{}, err
	}
	scope := g.Scope
	if scope == "" {
		scope = ScopeGlobal
	}
	return Definition{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Category:    cat,
		Severity:    g.Severity,
		Scope:       scope,
		Functions:   g.Functions,
		Platforms:   g.Platforms,
		Validation:  v,
		Config:      g.Config,
		Action:      g.Action,
		MaxRetries:  g.MaxRetries,
		Status:      StatusActive,
	}, nil
}

// LoadPacks reads all .yaml files from the packs directory and returns the
// definitions of enabled packs in file order. Files whose name starts with
// an underscore are listed but disabled. A missing directory is not an error.
func LoadPacks(packsDir string) ([]Definition, []PackInfo, error) {
	entries, err := os.ReadDir(packsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var defs []Definition
	var infos []PackInfo
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}

		path := filepath.Join(packsDir, entry.Name())

		// Check if pack is disabled (prefixed with underscore)
		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		enabled := !strings.HasPrefix(baseName, "_")

		pack, err := loadPack(path)
		if err != nil {
			infos = append(infos, PackInfo{Name: baseName, Enabled: enabled, Path: path, Error: err.Error()})
			continue
		}

		info := PackInfo{
			Name:           pack.Name,
			Description:    pack.Description,
			Version:        pack.PackVersion,
			Author:         pack.Author,
			Enabled:        enabled,
			Path:           path,
			GuardrailCount: len(pack.Guardrails),
		}
		if info.Name == "" {
			info.Name = baseName
		}

		converted, err := pack.definitions()
		if err != nil {
			info.Error = err.Error()
			infos = append(infos, info)
			continue
		}
		infos = append(infos, info)

		if enabled {
			defs = append(defs, converted...)
		}
	}

	return defs, infos, nil
}

func (p *Pack) definitions() ([]Definition, error) {
	out := make([]Definition, 0, len(p.Guardrails))
	for i, g := range p.Guardrails {
		d, err := g.Definition()
		if err != nil {
			return nil, fmt.Errorf("guardrail %d (%s): %w", i, g.ID, err)
		}
		if d.ID == "" {
			return nil, fmt.Errorf("guardrail %d: missing id", i)
		}
		out = append(out, d)
	}
	return out, nil
}

func loadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse pack %s: %w", path, err)
	}

	return &pack, nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
