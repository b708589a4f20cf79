package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/attrpool/internal/attribute"
)

const sampleEffects = `
effects:
  - name: haste
    buffs:
      - {name: haste, attribute: speed, operation: percentage, magnitude: 30, duration: 10}
  - name: potion
    buffs:
      - {attribute: health, operation: add, magnitude: 50, kind: immediate}
      - {attribute: health, operation: multiply, magnitude: 1.1, duration: 5, kind: persistent}
`

func TestReadEffectsYAML(t *testing.T) {
	table, err := ReadEffectsYAML(strings.NewReader(sampleEffects))
	require.NoError(t, err)

	assert.Equal(t, []string{"haste", "potion"}, table.Names())

	haste, err := table.Effect("haste")
	require.NoError(t, err)
	assert.Equal(t, []attribute.Buff{{
		Name:      "haste",
		Attribute: "speed",
		Operation: attribute.OpPercentage,
		Magnitude: 30,
		Duration:  10,
		Kind:      attribute.BuffPersistent,
	}}, haste.Buffs())

	potion, err := table.Effect("potion")
	require.NoError(t, err)
	require.Equal(t, 2, potion.Len())
	assert.Equal(t, attribute.BuffImmediate, potion.Buffs()[0].Kind)

	_, err = table.Effect("curse")
	assert.ErrorIs(t, err, ErrEffectNotFound)
}

func TestReadEffectsYAML_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown operation": "effects: [{name: x, buffs: [{attribute: hp, operation: pow}]}]",
		"unknown kind":      "effects: [{name: x, buffs: [{attribute: hp, operation: add, kind: stackable}]}]",
		"missing attribute": "effects: [{name: x, buffs: [{operation: add}]}]",
		"negative duration": "effects: [{name: x, buffs: [{attribute: hp, operation: add, duration: -1}]}]",
		"duplicate":         "effects: [{name: x}, {name: x}]",
		"unnamed":           "effects: [{buffs: []}]",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadEffectsYAML(strings.NewReader(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadEffects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleEffects), 0o644))

	table, err := LoadEffects(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	_, err = LoadEffects(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEffectTemplateAppliesToSeededContainer(t *testing.T) {
	effects, err := ReadEffectsYAML(strings.NewReader(sampleEffects))
	require.NoError(t, err)
	table, err := ReadTableCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	ogre, err := table.Record("ogre")
	require.NoError(t, err)

	c := attribute.NewContainer(attribute.Options{})
	ogre.Seed(c)

	potion, err := effects.Effect("potion")
	require.NoError(t, err)
	assert.Equal(t, 2, c.ApplyEffect(potion))

	health, _ := c.Value("health")
	assert.InDelta(t, 187.0, health, 1e-9) // (120+50)*1.1
	assert.Equal(t, 1, c.Queue().Len())
}
