package story

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awender/fableforge/features/registry"
)

func testStory() *Story {
	roster := registry.Roster{
		Character1: registry.Character{FantasyName: "Olive Elmmist"},
		Character2: registry.Character{FantasyName: "Tobias Dunsmir"},
	}
	return New("20260826_120000", roster, []*Page{
		{Page: 1, Text: "They set out at dawn.", SceneDescription: "Olive Elmmist walks left, Tobias Dunsmir right, forest road."},
		{Page: 2, Text: "A shadow crosses the path.", SceneDescription: "Dark crypt entrance, both characters in foreground."},
	})
}

func TestNewID(t *testing.T) {
	ts := time.Date(2026, 8, 26, 14, 25, 1, 0, time.UTC)
	assert.Equal(t, "20260826_142501", NewID(ts))
}

func TestRoundTrip(t *testing.T) {
	s := testStory()
	s.Pages[0].Character1Prompt = "<lora:OliveElmmist.safetensors:0.8> olive_elmmist, walking"
	s.Pages[0].NegativePrompt = "low quality"
	s.Pages[1].SetImagePath("images/20260826_120000/page_02.png")

	path := filepath.Join(t.TempDir(), "stories", "story_20260826_120000.json")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestImagePathExplicitNull(t *testing.T) {
	s := testStory()
	s.Pages[0].SetImagePath("")

	path := filepath.Join(t.TempDir(), "story_x.json")
	require.NoError(t, s.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// failed generation is recorded as a literal null, not an omitted field
	assert.Contains(t, string(data), `"image_path": null`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, loaded.Pages[0].ImagePath)
}

func TestPageByNumber(t *testing.T) {
	s := testStory()
	assert.Equal(t, "A shadow crosses the path.", s.PageByNumber(2).Text)
	assert.Nil(t, s.PageByNumber(99))
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"story_20260802_000000.json", "story_20260801_000000.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	files, err := List(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "story_20260801_000000.json", filepath.Base(files[0]))
	assert.Equal(t, "story_20260802_000000.json", filepath.Base(files[1]))
}
