package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const charactersJson = `{
  "character_1": {
    "fantasy_name": "Olive Elmmist",
    "race": "Wood Elf",
    "class": "Ranger",
    "visual_design": {"hair": "auburn braid"}
  },
  "character_2": {
    "fantasy_name": "Tobias Ironwood",
    "race": "Human",
    "class": "Paladin"
  },
  "relationship": "childhood friends turned adventuring partners"
}`

const loraConfigJson = `{
  "Olive Elmmist": {
    "trigger_word": "olive_elmmist",
    "lora_filename": "OliveElmmist.safetensors",
    "lora_url": "https://example.com/files/OliveElmmist.safetensors",
    "default_strength": 0.9
  },
  "Tobias Ironwood": {
    "trigger_word": "tobias_ironwood",
    "lora_url": "https://example.com/files/TobiasIronwood.safetensors"
  }
}`

func writeFixture(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	chars := writeFixture(t, "characters.json", charactersJson)
	loras := writeFixture(t, "lora_config.json", loraConfigJson)

	reg, err := Load(chars, loras)
	require.NoError(t, err)
	assert.Equal(t, SourceLoaded, reg.Source())

	name1, name2 := reg.Names()
	assert.Equal(t, "Olive Elmmist", name1)
	assert.Equal(t, "Tobias Ironwood", name2)
	assert.Equal(t, "childhood friends turned adventuring partners", reg.Roster.Relationship)

	a, err := reg.AdapterFor("Olive Elmmist")
	require.NoError(t, err)
	assert.Equal(t, "olive_elmmist", a.TriggerWord)
	assert.Equal(t, "OliveElmmist.safetensors", a.Filename)
	assert.Equal(t, 0.9, a.Strength)
	assert.Equal(t, SourceLoaded, a.Source)

	// filename derived from the URL, strength falls back to the slot default
	b, err := reg.AdapterFor("Tobias Ironwood")
	require.NoError(t, err)
	assert.Equal(t, "TobiasIronwood.safetensors", b.Filename)
	assert.Equal(t, DefaultStrengthCharacter2, b.Strength)
}

func TestLoadMissingAdapterFileSynthesizesDefaults(t *testing.T) {
	chars := writeFixture(t, "characters.json", charactersJson)

	reg, err := Load(chars, filepath.Join(t.TempDir(), "lora_config.json"))
	require.NoError(t, err)
	assert.Equal(t, SourceDefaulted, reg.Source())

	a, err := reg.AdapterFor("Olive Elmmist")
	require.NoError(t, err)
	assert.Equal(t, "olive_elmmist", a.TriggerWord)
	assert.Equal(t, "OliveElmmist.safetensors", a.Filename)
	assert.Equal(t, DefaultStrengthCharacter1, a.Strength)
	assert.Equal(t, SourceDefaulted, a.Source)

	b, err := reg.AdapterFor("Tobias Ironwood")
	require.NoError(t, err)
	assert.Equal(t, DefaultStrengthCharacter2, b.Strength)
}

func TestLoadRejectsOutOfRangeStrength(t *testing.T) {
	chars := writeFixture(t, "characters.json", charactersJson)

	for _, bad := range []string{"-0.5", "1.2"} {
		loras := writeFixture(t, "lora_config.json", `{
  "Olive Elmmist": {
    "trigger_word": "olive_elmmist",
    "lora_filename": "OliveElmmist.safetensors",
    "default_strength": `+bad+`
  }
}`)
		_, err := Load(chars, loras)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	}
}

func TestLoadMissingCharactersFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "characters.json"), "unused")
	require.Error(t, err)
}

func TestLoadMalformedFails(t *testing.T) {
	chars := writeFixture(t, "characters.json", "{not json")
	_, err := Load(chars, "unused")
	require.Error(t, err)

	chars = writeFixture(t, "characters.json", charactersJson)
	loras := writeFixture(t, "lora_config.json", "[]")
	_, err = Load(chars, loras)
	require.Error(t, err)
}

func TestAdapterForUnknownName(t *testing.T) {
	chars := writeFixture(t, "characters.json", charactersJson)
	loras := writeFixture(t, "lora_config.json", loraConfigJson)
	reg, err := Load(chars, loras)
	require.NoError(t, err)

	_, err = reg.AdapterFor("Shadowy Stranger")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAdapterNotRegistered))
	assert.Contains(t, err.Error(), "Shadowy Stranger")
}

func TestDefaultDerivations(t *testing.T) {
	assert.Equal(t, "olive_elmmist", DefaultTriggerWord("Olive Elmmist"))
	assert.Equal(t, "OliveElmmist.safetensors", DefaultFilename("Olive Elmmist"))
	// display names are user input; filesystem-hostile chars get replaced
	assert.Equal(t, "Mara：Ash.safetensors", DefaultFilename("Mara: Ash"))
}
