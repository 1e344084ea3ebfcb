package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awender/fableforge/features/registry"
)

const sampleScene = "Olive Elmmist, on the right, kneels to examine a white flower glowing softly. " +
	"Tobias Dunsmir stands on the left, one hand on his hip, scowling down at his muddy boots. " +
	"The forest is dense around them, dappled sunlight filtering through the leaves."

func testRoster() registry.Roster {
	return registry.Roster{
		Character1: registry.Character{
			FantasyName:  "Olive Elmmist",
			VisualDesign: map[string]string{"keywords": "freckles, auburn braid"},
		},
		Character2:   registry.Character{FantasyName: "Tobias Dunsmir"},
		Relationship: "wary allies",
	}
}

// assembler over synthesized-default adapter registrations, the same shape
// Load produces when lora_config.json is absent
func defaultedAssembler() *Assembler {
	roster := testRoster()
	return NewAssembler(registry.New(roster, registry.SynthesizeDefaults(roster)))
}

func TestComposeDeterministic(t *testing.T) {
	a := defaultedAssembler()
	first, err := a.Compose(sampleScene)
	require.NoError(t, err)
	second, err := a.Compose(sampleScene)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCharacterPromptShape(t *testing.T) {
	b, err := defaultedAssembler().Compose(sampleScene)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(b.Character1Prompt, "<lora:OliveElmmist.safetensors:0.8> olive_elmmist"))
	assert.True(t, strings.HasPrefix(b.Character2Prompt, "<lora:TobiasDunsmir.safetensors:0.75> tobias_dunsmir"))
	assert.Contains(t, b.Character1Prompt, "kneels to examine a white flower")
	assert.Contains(t, b.Character1Prompt, "freckles, auburn braid")
	assert.Contains(t, b.Character2Prompt, "stands on the left")
}

func TestScenePromptPositions(t *testing.T) {
	sp := defaultedAssembler().ScenePrompt(sampleScene)
	assert.Contains(t, sp, "Olive Elmmist on the right")
	assert.Contains(t, sp, "Tobias Dunsmir on the left")
	assert.True(t, strings.HasSuffix(sp, StyleSuffix))
}

func TestScenePromptDefaultPositions(t *testing.T) {
	// only one character named, no position keywords: fixed slot defaults
	sp := defaultedAssembler().ScenePrompt("Olive Elmmist studies an old map.")
	assert.Contains(t, sp, "Olive Elmmist on the right")
	assert.Contains(t, sp, "Tobias Dunsmir on the left")
}

func TestScenePromptEnvironmentFallback(t *testing.T) {
	sp := defaultedAssembler().ScenePrompt("Two figures exchange a glance.")
	assert.True(t, strings.HasPrefix(sp, EnvironmentFallback+", "))
}

func TestNegativePromptConstant(t *testing.T) {
	a := defaultedAssembler()
	for _, desc := range []string{sampleScene, "", "Nothing recognizable here."} {
		b, err := a.Compose(desc)
		require.NoError(t, err)
		assert.Equal(t, NegativePrompt, b.NegativePrompt)
	}
}

func TestComposeMissingAdapter(t *testing.T) {
	reg := registry.New(testRoster(), map[string]registry.Adapter{
		"Olive Elmmist": {TriggerWord: "olive_elmmist", Filename: "OliveElmmist.safetensors", Strength: 0.8},
	})

	_, err := NewAssembler(reg).Compose(sampleScene)
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrAdapterNotRegistered))
	assert.Contains(t, err.Error(), "Tobias Dunsmir")
}

func TestFormatStrength(t *testing.T) {
	assert.Equal(t, "0.8", formatStrength(0.8))
	assert.Equal(t, "0.75", formatStrength(0.75))
	assert.Equal(t, "1", formatStrength(1))
}

func TestStoryPrompt(t *testing.T) {
	p := StoryPrompt(testRoster(), "a cursed lighthouse")
	assert.Contains(t, p, "CHARACTER PROFILES:")
	assert.Contains(t, p, "CHARACTER 1: Olive Elmmist")
	assert.Contains(t, p, "CHARACTER 2: Tobias Dunsmir")
	assert.Contains(t, p, "RELATIONSHIP DYNAMIC:\nwary allies")
	assert.Contains(t, p, "Story theme: a cursed lighthouse")
	assert.Contains(t, p, "never pronouns")
}
