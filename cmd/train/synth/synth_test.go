package synth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/awender/fableforge/features/registry"
)

func TestCharacterDescription(t *testing.T) {
	char := registry.Character{
		FantasyName: "Olive Elmmist",
		Race:        "halfling",
		Class:       "druid",
		VisualDesign: map[string]string{
			"face":           "round friendly face with freckles",
			"hair":           "curly auburn hair in a loose braid",
			"eyes":           "bright green eyes",
			"typical_outfit": "green and brown layered robes",
		},
	}
	got := CharacterDescription(char)
	assert.Equal(t, "Olive Elmmist, halfling druid, round friendly face with freckles, "+
		"curly auburn hair in a loose braid, bright green eyes, "+
		"wearing green and brown layered robes", got)
}

func TestCharacterDescriptionDefaults(t *testing.T) {
	got := CharacterDescription(registry.Character{FantasyName: "Brann"})
	assert.Equal(t, "Brann, human adventurer", got)
}

func TestVariationsCoverAngles(t *testing.T) {
	assert.Len(t, variations, 20)
	for _, v := range variations {
		assert.NotEmpty(t, v.angle)
		assert.NotEmpty(t, v.expression)
		assert.NotEmpty(t, v.lighting)
	}
	profiles := 0
	for _, v := range variations {
		if strings.Contains(v.angle, "profile") {
			profiles++
		}
	}
	assert.Equal(t, 4, profiles)
}
