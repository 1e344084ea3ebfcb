// Package scene extracts per-character generation cues (action, position,
// outfit) and a shared environment description from free-text scene
// descriptions. These are best-effort string heuristics over sentences, not a
// parser: every extractor degrades to a documented default and reports
// whether it genuinely matched, so callers can tell a real extraction from a
// fallback.
package scene

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/awender/fableforge/util/stringutil"
)

// Position is the coarse spatial slot a character occupies in the scene.
type Position int

const (
	PositionLeft Position = iota
	PositionRight
	PositionCenter
	PositionForeground
	PositionBackground
)

// String renders the position the way it appears in scene prompts.
func (p Position) String() string {
	switch p {
	case PositionLeft:
		return "on the left"
	case PositionRight:
		return "on the right"
	case PositionCenter:
		return "in center"
	case PositionForeground:
		return "in foreground"
	case PositionBackground:
		return "in background"
	}
	return "in center"
}

// ActionResult is an extracted action phrase. Matched is false when the
// phrase is a fallback default rather than text taken from the description.
type ActionResult struct {
	Phrase  string
	Matched bool
}

// PositionResult is an extracted position. Matched is false when no keyword
// co-occurred with the character name; the caller decides the default slot.
type PositionResult struct {
	Position Position
	Matched  bool
}

// OutfitResult is an extracted outfit/color cue. An unmatched result carries
// an empty cue, which the prompt assembler omits entirely.
type OutfitResult struct {
	Cue     string
	Matched bool
}

// EnvironmentResult is the extracted setting description. Matched is false
// when no sentence qualified and the cue is empty; the prompt assembler
// substitutes its fallback constant.
type EnvironmentResult struct {
	Description string
	Matched     bool
}

// positionKeywords in fixed priority order: left/right before center before
// foreground/background. "middle" is an alias for center.
var positionKeywords = []struct {
	keyword string
	pos     Position
}{
	{"left", PositionLeft},
	{"right", PositionRight},
	{"center", PositionCenter},
	{"middle", PositionCenter},
	{"foreground", PositionForeground},
	{"background", PositionBackground},
}

// positionWindow is how far, in characters, a position keyword may sit from
// the character name and still be attributed to that character.
const positionWindow = 40

// colorPalette lists recognized outfit colors. Compound colors come first so
// "dark blue" is not reported as plain "blue".
var colorPalette = []string{
	"dark blue", "dark green", "dark red",
	"black", "white", "red", "green", "blue", "brown",
	"silver", "gold", "grey", "gray", "purple", "crimson", "emerald",
}

// settingKeywords mark a sentence as describing the environment rather than
// a character.
var settingKeywords = []string{
	"forest", "clearing", "village", "temple", "ruins", "cave", "crypt",
	"tomb", "hill", "mountain", "river", "tavern", "castle", "tower",
	"lighting", "sunlight", "moonlight", "shadows", "smoke", "mist", "fog",
	"atmosphere", "cinematic", "fantasy", "dramatic",
}

// SplitSentences splits a description on periods, trimming whitespace and
// dropping empty fragments.
func SplitSentences(description string) []string {
	var sentences []string
	for _, s := range strings.Split(description, ".") {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// ExtractAction finds what a character is doing: the text of up to two
// sentences that mention the character, with the name stripped out, joined
// by ", ". Characters never mentioned fall back to "standing"; characters
// mentioned in sentences that leave no usable text fall back to
// "standing confidently".
func ExtractAction(description, name string) ActionResult {
	var fragments []string
	mentioned := false
	for _, sentence := range SplitSentences(description) {
		if !stringutil.ContainsI(sentence, name) {
			continue
		}
		mentioned = true
		if frag := stripName(sentence, name); frag != "" {
			fragments = append(fragments, frag)
		}
		if len(fragments) == 2 {
			break
		}
	}
	if len(fragments) > 0 {
		return ActionResult{Phrase: strings.Join(fragments, ", "), Matched: true}
	}
	if mentioned {
		return ActionResult{Phrase: "standing confidently"}
	}
	return ActionResult{Phrase: "standing"}
}

// ExtractPosition attributes a position keyword to a character when the
// keyword and the name occur within positionWindow characters of each other.
// Keywords are tried in fixed priority order and the first co-occurrence
// wins. Known limitation: when both characters and a keyword share one short
// window, the keyword is attributed to both names; callers must accept this
// as heuristic behavior rather than a guaranteed parse.
func ExtractPosition(description, name string) PositionResult {
	lower := strings.ToLower(description)
	lowerName := strings.ToLower(name)
	for _, pk := range positionKeywords {
		from := 0
		for {
			idx := strings.Index(lower[from:], pk.keyword)
			if idx < 0 {
				break
			}
			idx += from
			start := max(0, idx-positionWindow)
			end := min(len(lower), idx+len(pk.keyword)+positionWindow)
			if strings.Contains(lower[start:end], lowerName) {
				return PositionResult{Position: pk.pos, Matched: true}
			}
			from = idx + len(pk.keyword)
		}
	}
	return PositionResult{Position: PositionCenter}
}

// ExtractOutfit scans the character's sentences for palette colors, joined
// with " and " and suffixed with "armor" or "clothing" depending on which
// the sentence mentions. Sentences with no recognized color still yield the
// bare "armor" / "leather outfit" cues. An empty cue is omitted from prompts.
func ExtractOutfit(description, name string) OutfitResult {
	for _, sentence := range SplitSentences(description) {
		if !stringutil.ContainsI(sentence, name) {
			continue
		}
		lower := strings.ToLower(sentence)
		if colors := scanColors(lower); len(colors) > 0 {
			suffix := "clothing"
			if strings.Contains(lower, "armor") {
				suffix = "armor"
			}
			return OutfitResult{Cue: strings.Join(colors, " and ") + " " + suffix, Matched: true}
		}
		if strings.Contains(lower, "armor") {
			return OutfitResult{Cue: "armor", Matched: true}
		}
		if strings.Contains(lower, "leather") {
			return OutfitResult{Cue: "leather outfit", Matched: true}
		}
	}
	return OutfitResult{}
}

// ExtractEnvironment keeps the sentences that describe the setting: those
// containing a setting keyword, plus (when the description names at least
// one character) those naming neither character. Kept sentences are joined
// with ". ". When nothing qualifies the result is unmatched and the prompt
// assembler falls back to its constant.
func ExtractEnvironment(description string, names ...string) EnvironmentResult {
	anyNamed := false
	for _, name := range names {
		if stringutil.ContainsI(description, name) {
			anyNamed = true
			break
		}
	}
	var kept []string
	for _, sentence := range SplitSentences(description) {
		if hasSettingKeyword(sentence) {
			kept = append(kept, sentence)
			continue
		}
		if anyNamed && !mentionsAny(sentence, names) {
			kept = append(kept, sentence)
		}
	}
	if len(kept) == 0 {
		return EnvironmentResult{}
	}
	return EnvironmentResult{Description: strings.Join(kept, ". "), Matched: true}
}

func hasSettingKeyword(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, kw := range settingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func mentionsAny(sentence string, names []string) bool {
	for _, name := range names {
		if stringutil.ContainsI(sentence, name) {
			return true
		}
	}
	return false
}

// stripName removes every occurrence of the character name from a sentence,
// case-insensitively, and tidies the leftover punctuation. Match offsets are
// found in the original string itself: lowercasing can change a rune's byte
// length (e.g. "İ" to "i"), so offsets from a lowered copy must never be used
// to slice the original.
func stripName(sentence, name string) string {
	var b strings.Builder
	from := 0
	for {
		start, end := indexFold(sentence[from:], name)
		if start < 0 {
			b.WriteString(sentence[from:])
			break
		}
		b.WriteString(sentence[from : from+start])
		from += end
	}
	return strings.Trim(b.String(), " ,;:")
}

// indexFold returns the byte offsets [start, end) of the first
// case-insensitive occurrence of substr in s, or (-1, -1). Folding matches
// the per-rune lowercasing the other extractors use.
func indexFold(s, substr string) (start, end int) {
	if substr == "" {
		return -1, -1
	}
	for i := range s {
		j := i
		ok := true
		for _, nr := range substr {
			r, size := utf8.DecodeRuneInString(s[j:])
			if size == 0 || unicode.ToLower(r) != unicode.ToLower(nr) {
				ok = false
				break
			}
			j += size
		}
		if ok {
			return i, j
		}
	}
	return -1, -1
}

// scanColors returns the palette colors present in the sentence, ordered by
// first occurrence. Matched compound colors mask their components so "dark
// blue" does not also report "blue".
func scanColors(lower string) []string {
	type hit struct {
		idx   int
		color string
	}
	var hits []hit
	masked := lower
	for _, color := range colorPalette {
		first := -1
		from := 0
		for {
			idx := strings.Index(masked[from:], color)
			if idx < 0 {
				break
			}
			idx += from
			if first < 0 {
				first = idx
			}
			// mask every occurrence so compound colors hide their components
			masked = masked[:idx] + strings.Repeat("\x00", len(color)) + masked[idx+len(color):]
			from = idx + len(color)
		}
		if first >= 0 {
			hits = append(hits, hit{idx: first, color: color})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].idx < hits[j].idx })
	var colors []string
	for _, h := range hits {
		colors = append(colors, h.color)
	}
	return colors
}
