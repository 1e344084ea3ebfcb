package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/awender/fableforge/util/pathutil"
)

// ErrAdapterNotRegistered is returned when a character named by a story has
// no LoRA adapter registration. Generation for that character must fail fast
// rather than silently omit the adapter.
var ErrAdapterNotRegistered = errors.New("no LoRA adapter registered")

// Default adapter blend strengths applied when lora_config.json does not
// exist yet and a placeholder registration is synthesized.
const (
	DefaultStrengthCharacter1 = 0.8
	DefaultStrengthCharacter2 = 0.75
)

// Character is one of the two recurring story protagonists, loaded from
// characters.json. Immutable for the process lifetime.
type Character struct {
	FantasyName   string            `json:"fantasy_name"`
	Race          string            `json:"race,omitempty"`
	Class         string            `json:"class,omitempty"`
	Age           json.Number       `json:"age,omitempty"`
	AgeAppearance string            `json:"age_appearance,omitempty"`
	Background    string            `json:"background,omitempty"`
	Deity         string            `json:"deity,omitempty"`
	Goals         string            `json:"goals,omitempty"`
	VisualDesign  map[string]string `json:"visual_design,omitempty"`
	Personality   []string          `json:"personality,omitempty"`
	Quirks        []string          `json:"quirks,omitempty"`
	Equipment     *Equipment        `json:"equipment,omitempty"`
}

type Equipment struct {
	Weapons []string `json:"weapons,omitempty"`
	Armor   string   `json:"armor,omitempty"`
	Items   []string `json:"items,omitempty"`
}

// Roster is the full characters.json contents: the two fixed character slots
// plus their relationship dynamic (used by the story LLM prompt).
type Roster struct {
	Character1   Character `json:"character_1"`
	Character2   Character `json:"character_2"`
	Relationship string    `json:"relationship,omitempty"`
}

// Characters returns the roster slots in fixed order.
func (r *Roster) Characters() [2]Character {
	return [2]Character{r.Character1, r.Character2}
}

// AdapterSource records whether an adapter registration was read from
// lora_config.json or synthesized as a placeholder before training.
type AdapterSource int

const (
	SourceLoaded AdapterSource = iota
	SourceDefaulted
)

func (s AdapterSource) String() string {
	if s == SourceDefaulted {
		return "defaulted"
	}
	return "loaded"
}

// Adapter is one trained LoRA registration: the trigger token that invokes
// the character's likeness, the adapter file reference, and the default
// blend strength.
type Adapter struct {
	TriggerWord string        `json:"trigger_word"`
	Filename    string        `json:"lora_filename,omitempty"`
	URL         string        `json:"lora_url,omitempty"`
	Strength    float64       `json:"default_strength,omitempty"`
	Source      AdapterSource `json:"-"`
}

// Registry holds the character roster and the per-character adapter
// registrations, keyed by character display (fantasy) name. Read-only after
// Load; safe for concurrent use.
type Registry struct {
	Roster   Roster
	adapters map[string]Adapter
	source   AdapterSource
}

// New builds a registry from in-memory data. Adapters synthesized via
// SynthesizeDefaults mark the registry as defaulted.
func New(roster Roster, adapters map[string]Adapter) *Registry {
	source := SourceLoaded
	for _, a := range adapters {
		if a.Source == SourceDefaulted {
			source = SourceDefaulted
			break
		}
	}
	return &Registry{Roster: roster, adapters: adapters, source: source}
}

// Load reads characters.json and lora_config.json. A missing characters file
// is fatal (nothing can be generated without the roster). A missing adapter
// file is not: placeholder registrations are synthesized per character so the
// pipeline can run in a degraded mode before any adapter has been trained.
func Load(charactersFile, adapterFile string) (*Registry, error) {
	data, err := os.ReadFile(charactersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load character registry %q: %w", charactersFile, err)
	}
	var roster Roster
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse character registry %q: %w", charactersFile, err)
	}
	if roster.Character1.FantasyName == "" || roster.Character2.FantasyName == "" {
		return nil, fmt.Errorf("character registry %q must define character_1 and character_2 with fantasy_name", charactersFile)
	}

	reg := &Registry{Roster: roster}
	adapterData, err := os.ReadFile(adapterFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load adapter registry %q: %w", adapterFile, err)
		}
		reg.adapters = SynthesizeDefaults(roster)
		reg.source = SourceDefaulted
		log.Warnf("adapter registry %q not found, using synthesized default registrations (train LoRAs to replace them)", adapterFile)
		return reg, nil
	}
	adapters := map[string]Adapter{}
	if err := json.Unmarshal(adapterData, &adapters); err != nil {
		return nil, fmt.Errorf("failed to parse adapter registry %q: %w", adapterFile, err)
	}
	for name, a := range adapters {
		a.Source = SourceLoaded
		if a.Filename == "" && a.URL != "" {
			a.Filename = filenameFromURL(a.URL)
		}
		if a.Strength == 0 {
			a.Strength = defaultStrengthFor(roster, name)
		}
		// the strength flows verbatim into <lora:FILE:STRENGTH> tags, so a
		// bad value in the file corrupts every prompt downstream
		if a.Strength < 0 || a.Strength > 1 {
			return nil, fmt.Errorf("adapter registry %q: default_strength %v for %q out of range (0, 1]", adapterFile, a.Strength, name)
		}
		adapters[name] = a
	}
	reg.adapters = adapters
	reg.source = SourceLoaded
	return reg, nil
}

// SynthesizeDefaults derives a placeholder adapter registration per roster
// character: trigger token from the lower-cased, underscore-joined display
// name, a conventional .safetensors filename, and the fixed default
// strengths (0.8 / 0.75).
func SynthesizeDefaults(roster Roster) map[string]Adapter {
	adapters := map[string]Adapter{}
	strengths := [2]float64{DefaultStrengthCharacter1, DefaultStrengthCharacter2}
	for i, char := range roster.Characters() {
		adapters[char.FantasyName] = Adapter{
			TriggerWord: DefaultTriggerWord(char.FantasyName),
			Filename:    DefaultFilename(char.FantasyName),
			Strength:    strengths[i],
			Source:      SourceDefaulted,
		}
	}
	return adapters
}

// DefaultTriggerWord derives the conventional trigger token for a display
// name: "Olive Elmmist" => "olive_elmmist".
func DefaultTriggerWord(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// DefaultFilename derives the conventional adapter filename for a display
// name: "Olive Elmmist" => "OliveElmmist.safetensors". Display names come
// from a user-edited file, so the result is sanitized for the filesystem.
func DefaultFilename(name string) string {
	return pathutil.CleanBasename(strings.ReplaceAll(name, " ", "")) + ".safetensors"
}

// AdapterFor returns the adapter registration for a character display name.
// Returns ErrAdapterNotRegistered (wrapped with the name) when the registry
// has no entry; this is fatal for that character's generation but the caller
// is expected to continue with remaining pages / characters.
func (r *Registry) AdapterFor(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return Adapter{}, fmt.Errorf("%s: %w", name, ErrAdapterNotRegistered)
	}
	return a, nil
}

// Source reports whether the adapter registrations were loaded from file or
// synthesized, so callers can disclose degraded mode in their output.
func (r *Registry) Source() AdapterSource {
	return r.source
}

// Names returns the two character display names in fixed roster order.
func (r *Registry) Names() (string, string) {
	return r.Roster.Character1.FantasyName, r.Roster.Character2.FantasyName
}

func defaultStrengthFor(roster Roster, name string) float64 {
	if name == roster.Character2.FantasyName {
		return DefaultStrengthCharacter2
	}
	return DefaultStrengthCharacter1
}

func filenameFromURL(url string) string {
	if idx := strings.LastIndexByte(url, '/'); idx >= 0 {
		return url[idx+1:]
	}
	return url
}
