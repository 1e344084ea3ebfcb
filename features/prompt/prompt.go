// Package prompt assembles the generation prompt strings for a story page:
// one prompt per character, a shared scene prompt, and the fixed negative
// prompt. Assembly is deterministic and performs no I/O, so it can run
// concurrently across pages.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/awender/fableforge/features/registry"
	"github.com/awender/fableforge/features/scene"
)

const (
	// NegativePrompt is appended to every two-character generation.
	NegativePrompt = "low quality, blurry, extra people, watermark, text, deformed, bad anatomy, multiple faces, distorted perspective"

	// NegativeSingleCharacter is the variant for split generation, where
	// each image must contain exactly one figure.
	NegativeSingleCharacter = "low quality, blurry, two people, multiple people, crowd, watermark, text, deformed, bad anatomy, multiple faces"

	// StyleSuffix closes every scene prompt.
	StyleSuffix = "cinematic lighting, fantasy illustration, high detail"

	// EnvironmentFallback stands in when no setting could be extracted from
	// the scene description.
	EnvironmentFallback = "fantasy illustration, cinematic lighting, high detail"
)

// Bundle is the per-page compositor output, attached onto the page before
// generation.
type Bundle struct {
	Character1Prompt string `json:"character_1_prompt"`
	Character2Prompt string `json:"character_2_prompt"`
	ScenePrompt      string `json:"scene_prompt"`
	NegativePrompt   string `json:"negative_prompt"`
}

// Assembler composes prompt bundles against one loaded registry. Stateless
// beyond the immutable registry reference.
type Assembler struct {
	reg *registry.Registry
}

func NewAssembler(reg *registry.Registry) *Assembler {
	return &Assembler{reg: reg}
}

// Compose builds the full bundle for one scene description. Fails only when
// a roster character lacks an adapter registration; every text-heuristic miss
// is absorbed by defaults.
func (a *Assembler) Compose(sceneDescription string) (*Bundle, error) {
	name1, name2 := a.reg.Names()

	c1, err := a.CharacterPrompt(sceneDescription, name1)
	if err != nil {
		return nil, err
	}
	c2, err := a.CharacterPrompt(sceneDescription, name2)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Character1Prompt: c1,
		Character2Prompt: c2,
		ScenePrompt:      a.ScenePrompt(sceneDescription),
		NegativePrompt:   NegativePrompt,
	}, nil
}

// CharacterPrompt renders one character's fragment:
//
//	<lora:FILE:STRENGTH> trigger[, action][, outfit][, extraKeywords]
//
// The adapter tag and trigger token are always present and always first.
func (a *Assembler) CharacterPrompt(sceneDescription, name string) (string, error) {
	adapter, err := a.reg.AdapterFor(name)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<lora:%s:%s> %s", adapter.Filename, formatStrength(adapter.Strength), adapter.TriggerWord)

	if action := scene.ExtractAction(sceneDescription, name); action.Phrase != "" {
		b.WriteString(", ")
		b.WriteString(action.Phrase)
	}
	if outfit := scene.ExtractOutfit(sceneDescription, name); outfit.Cue != "" {
		b.WriteString(", ")
		b.WriteString(outfit.Cue)
	}
	if kw := a.extraKeywords(name); kw != "" {
		b.WriteString(", ")
		b.WriteString(kw)
	}
	return b.String(), nil
}

// ScenePrompt renders the shared environment + positioning fragment:
//
//	ENV, Name1 pos1, Name2 pos2, cinematic lighting, fantasy illustration, high detail
//
// Unpositioned characters fall back to fixed slots: the first character goes
// right, the second left.
func (a *Assembler) ScenePrompt(sceneDescription string) string {
	name1, name2 := a.reg.Names()

	env := EnvironmentFallback
	if res := scene.ExtractEnvironment(sceneDescription, name1, name2); res.Matched {
		env = res.Description
	}

	pos1 := scene.PositionRight
	if res := scene.ExtractPosition(sceneDescription, name1); res.Matched {
		pos1 = res.Position
	}
	pos2 := scene.PositionLeft
	if res := scene.ExtractPosition(sceneDescription, name2); res.Matched {
		pos2 = res.Position
	}

	return fmt.Sprintf("%s, %s %s, %s %s, %s", env, name1, pos1, name2, pos2, StyleSuffix)
}

func (a *Assembler) extraKeywords(name string) string {
	for _, char := range a.reg.Roster.Characters() {
		if char.FantasyName == name {
			return char.VisualDesign["keywords"]
		}
	}
	return ""
}

// formatStrength renders a blend strength the shortest way: 0.8, 0.75, 1.
func formatStrength(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
