package data

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/attrpool/internal/attribute"
)

// ErrEffectNotFound is returned for unknown effect names.
var ErrEffectNotFound = errors.New("effect not found")

type effectFile struct {
	Effects []effectDef `yaml:"effects"`
}

type effectDef struct {
	Name  string    `yaml:"name"`
	Buffs []buffDef `yaml:"buffs"`
}

type buffDef struct {
	Name      string  `yaml:"name"`
	Attribute string  `yaml:"attribute"`
	Operation string  `yaml:"operation"`
	Magnitude float64 `yaml:"magnitude"`
	Duration  float64 `yaml:"duration"`
	Kind      string  `yaml:"kind"` // defaults to persistent
}

// EffectTable is a registry of named effect templates.
type EffectTable struct {
	effects map[string]attribute.Effect
	order   []string
}

// NewEffectTable builds a table from already constructed effects.
// Later effects replace earlier ones with the same name.
func NewEffectTable(effects ...attribute.Effect) *EffectTable {
	t := &EffectTable{effects: make(map[string]attribute.Effect, len(effects))}
	for _, e := range effects {
		if _, exists := t.effects[e.Name()]; !exists {
			t.order = append(t.order, e.Name())
		}
		t.effects[e.Name()] = e
	}
	return t
}

// Effect returns the named template.
func (t *EffectTable) Effect(name string) (attribute.Effect, error) {
	e, ok := t.effects[name]
	if !ok {
		return attribute.Effect{}, fmt.Errorf("effect %q: %w", name, ErrEffectNotFound)
	}
	return e, nil
}

// Names returns effect names in file order.
func (t *EffectTable) Names() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of effects.
func (t *EffectTable) Len() int {
	return len(t.order)
}

// LoadEffects reads effect templates from a YAML file.
func LoadEffects(path string) (*EffectTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening effects %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadEffectsYAML(f)
	if err != nil {
		return nil, fmt.Errorf("loading effects %s: %w", path, err)
	}

	slog.Info("loaded effect templates", "path", path, "count", t.Len())
	return t, nil
}

// ReadEffectsYAML decodes effect templates:
//
//	effects:
//	  - name: haste
//	    buffs:
//	      - {attribute: speed, operation: percentage, magnitude: 30, duration: 10}
func ReadEffectsYAML(r io.Reader) (*EffectTable, error) {
	var file effectFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding effects yaml: %w", err)
	}

	effects := make([]attribute.Effect, 0, len(file.Effects))
	seen := make(map[string]struct{}, len(file.Effects))
	for _, def := range file.Effects {
		if def.Name == "" {
			return nil, errors.New("decoding effects yaml: effect without name")
		}
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("decoding effects yaml: duplicate effect %q", def.Name)
		}
		seen[def.Name] = struct{}{}

		buffs := make([]attribute.Buff, 0, len(def.Buffs))
		for i, bd := range def.Buffs {
			b, err := bd.buff()
			if err != nil {
				return nil, fmt.Errorf("effect %q buff %d: %w", def.Name, i, err)
			}
			buffs = append(buffs, b)
		}
		effects = append(effects, attribute.NewEffect(def.Name, buffs...))
	}
	return NewEffectTable(effects...), nil
}

func (bd buffDef) buff() (attribute.Buff, error) {
	if bd.Attribute == "" {
		return attribute.Buff{}, errors.New("missing attribute")
	}
	op, err := attribute.ParseOperation(bd.Operation)
	if err != nil {
		return attribute.Buff{}, err
	}
	kind := attribute.BuffPersistent
	if bd.Kind != "" {
		if kind, err = attribute.ParseBuffKind(bd.Kind); err != nil {
			return attribute.Buff{}, err
		}
	}
	if bd.Duration < 0 {
		return attribute.Buff{}, fmt.Errorf("negative duration %g", bd.Duration)
	}
	return attribute.Buff{
		Name:      bd.Name,
		Attribute: bd.Attribute,
		Operation: op,
		Magnitude: bd.Magnitude,
		Duration:  bd.Duration,
		Kind:      kind,
	}, nil
}
