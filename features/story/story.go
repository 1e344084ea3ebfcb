// Package story is the persistence model for generated stories. The story
// file is the single source of truth: every update re-reads, modifies, and
// atomically rewrites the whole file.
package story

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/natefinch/atomic"

	"github.com/awender/fableforge/constants"
	"github.com/awender/fableforge/features/registry"
)

// Page is one illustrated story page. Prompt fields are attached by the
// compositor; ImagePath by the generation step, with an explicit null
// signalling failed generation.
type Page struct {
	Page             int     `json:"page"`
	Text             string  `json:"text"`
	SceneDescription string  `json:"scene_description"`
	ImagePath        *string `json:"image_path"`
	Character1Prompt string  `json:"character_1_prompt,omitempty"`
	Character2Prompt string  `json:"character_2_prompt,omitempty"`
	ScenePrompt      string  `json:"scene_prompt,omitempty"`
	NegativePrompt   string  `json:"negative_prompt,omitempty"`
}

// Story is one generated story: a timestamp identifier, the roster snapshot
// it was generated against, and the ordered pages.
type Story struct {
	GeneratedAt string          `json:"generated_at"`
	Characters  registry.Roster `json:"characters"`
	Pages       []*Page         `json:"pages"`
}

// NewID derives a story identifier from a timestamp, e.g. "20260826_142501".
func NewID(t time.Time) string {
	return t.Format(constants.STORY_TIME_FORMAT)
}

// New builds a story around a roster snapshot.
func New(id string, roster registry.Roster, pages []*Page) *Story {
	return &Story{GeneratedAt: id, Characters: roster, Pages: pages}
}

// Load reads and parses a story file.
func Load(path string) (*Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load story %q: %w", path, err)
	}
	var s Story
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse story %q: %w", path, err)
	}
	return &s, nil
}

// Save writes the whole story atomically as two-space indented JSON.
func (s *Story) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(append(data, '\n'))); err != nil {
		return fmt.Errorf("failed to save story %q: %w", path, err)
	}
	return nil
}

// PageByNumber returns the page with the given 1-based number, or nil.
func (s *Story) PageByNumber(n int) *Page {
	for _, p := range s.Pages {
		if p.Page == n {
			return p
		}
	}
	return nil
}

// SetImagePath records a generated image on a page. An empty path records an
// explicit null, marking the generation as failed.
func (p *Page) SetImagePath(path string) {
	if path == "" {
		p.ImagePath = nil
		return
	}
	p.ImagePath = &path
}

// List returns the story files in a directory, newest last.
func List(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "story_*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
