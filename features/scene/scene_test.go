package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleScene = "Olive Elmmist, on the right, kneels to examine a white flower glowing softly. " +
	"She wears her green and brown leather armor and smiles gently. " +
	"Tobias Dunsmir stands on the left, one hand on his hip, scowling down at his muddy boots. " +
	"He wears dark blue and silver clothing, and the forest is dense around them, dappled sunlight filtering through the leaves. " +
	"The mood is contrasting: Olive is serene and Tobias is annoyed."

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"One", "Two", "Three"}, SplitSentences("One. Two.  Three."))
	assert.Nil(t, SplitSentences("  .. . "))
}

func TestExtractPosition(t *testing.T) {
	olive := ExtractPosition(sampleScene, "Olive Elmmist")
	assert.True(t, olive.Matched)
	assert.Equal(t, PositionRight, olive.Position)
	assert.Equal(t, "on the right", olive.Position.String())

	tobias := ExtractPosition(sampleScene, "Tobias Dunsmir")
	assert.True(t, tobias.Matched)
	assert.Equal(t, PositionLeft, tobias.Position)
	assert.Equal(t, "on the left", tobias.Position.String())
}

func TestExtractPositionNoKeyword(t *testing.T) {
	res := ExtractPosition("Olive Elmmist kneels by the stream.", "Olive Elmmist")
	assert.False(t, res.Matched)
}

// When both names and a keyword share one short window, the keyword is
// attributed to both characters. Accepted heuristic limitation.
func TestExtractPositionSharedWindowAmbiguity(t *testing.T) {
	desc := "Kira stands to the left of Brann in the hall."

	kira := ExtractPosition(desc, "Kira")
	assert.True(t, kira.Matched)
	assert.Equal(t, PositionLeft, kira.Position)

	brann := ExtractPosition(desc, "Brann")
	assert.True(t, brann.Matched)
	assert.Equal(t, PositionLeft, brann.Position)
}

func TestExtractPositionPriorityOrder(t *testing.T) {
	// left outranks background even when background appears first
	desc := "In the background, far behind, Kira waits on the left edge near Kira."
	res := ExtractPosition(desc, "Kira")
	assert.True(t, res.Matched)
	assert.Equal(t, PositionLeft, res.Position)
}

func TestExtractAction(t *testing.T) {
	olive := ExtractAction(sampleScene, "Olive Elmmist")
	assert.True(t, olive.Matched)
	assert.Equal(t, "on the right, kneels to examine a white flower glowing softly", olive.Phrase)

	tobias := ExtractAction(sampleScene, "Tobias Dunsmir")
	assert.True(t, tobias.Matched)
	assert.Equal(t, "stands on the left, one hand on his hip, scowling down at his muddy boots", tobias.Phrase)
}

func TestExtractActionFallbacks(t *testing.T) {
	// never mentioned
	res := ExtractAction("A quiet forest clearing at dawn.", "Olive Elmmist")
	assert.False(t, res.Matched)
	assert.Equal(t, "standing", res.Phrase)

	// mentioned but nothing usable after stripping the name
	res = ExtractAction("Olive Elmmist.", "Olive Elmmist")
	assert.False(t, res.Matched)
	assert.Equal(t, "standing confidently", res.Phrase)
}

func TestExtractActionTwoFragments(t *testing.T) {
	desc := "Kira draws her bow. Kira aims at the wolf. Kira exhales. Kira fires."
	res := ExtractAction(desc, "Kira")
	assert.True(t, res.Matched)
	assert.Equal(t, "draws her bow, aims at the wolf", res.Phrase)
}

func TestExtractActionMultibyteName(t *testing.T) {
	// lowercasing "İ" shrinks it from two bytes to one, so name matching
	// must not mix offsets between the lowered and original text
	res := ExtractAction("İİİİİİ Kira kneels.", "Kira")
	assert.True(t, res.Matched)
	assert.Equal(t, "İİİİİİ  kneels", res.Phrase)

	// multibyte name at the very end of the sentence
	res = ExtractAction("waves İİ", "İİ")
	assert.True(t, res.Matched)
	assert.Equal(t, "waves", res.Phrase)
}

func TestExtractOutfit(t *testing.T) {
	res := ExtractOutfit("Kira wears her green and brown leather armor.", "Kira")
	assert.True(t, res.Matched)
	assert.Equal(t, "green and brown armor", res.Cue)

	res = ExtractOutfit("Brann wears dark blue and silver clothing as he walks.", "Brann")
	assert.True(t, res.Matched)
	assert.Equal(t, "dark blue and silver clothing", res.Cue)

	// repeated colors report once
	res = ExtractOutfit("Kira wears a green cloak over green boots with brown trim.", "Kira")
	assert.True(t, res.Matched)
	assert.Equal(t, "green and brown clothing", res.Cue)
}

func TestExtractOutfitBareFallbacks(t *testing.T) {
	res := ExtractOutfit("Kira adjusts her armor straps.", "Kira")
	assert.True(t, res.Matched)
	assert.Equal(t, "armor", res.Cue)

	res = ExtractOutfit("Kira tightens the worn leather at her wrist.", "Kira")
	assert.True(t, res.Matched)
	assert.Equal(t, "leather outfit", res.Cue)

	res = ExtractOutfit("Kira laughs at the joke.", "Kira")
	assert.False(t, res.Matched)
	assert.Empty(t, res.Cue)
}

// Colors in a name-bearing sentence are attributed to the character even
// when they describe something else. Accepted heuristic limitation.
func TestExtractOutfitColorFalsePositive(t *testing.T) {
	res := ExtractOutfit(sampleScene, "Olive Elmmist")
	assert.True(t, res.Matched)
	assert.Equal(t, "white clothing", res.Cue)
}

func TestExtractEnvironment(t *testing.T) {
	res := ExtractEnvironment(sampleScene, "Olive Elmmist", "Tobias Dunsmir")
	assert.True(t, res.Matched)
	assert.Contains(t, res.Description, "the forest is dense around them")
}

func TestExtractEnvironmentFallback(t *testing.T) {
	res := ExtractEnvironment("Two figures exchange a glance.", "Olive Elmmist", "Tobias Dunsmir")
	assert.False(t, res.Matched)
	assert.Empty(t, res.Description)
}

func TestExtractEnvironmentKeywordOnly(t *testing.T) {
	res := ExtractEnvironment("Olive Elmmist walks through the ancient temple ruins.", "Olive Elmmist", "Tobias Dunsmir")
	assert.True(t, res.Matched)
	assert.Equal(t, "Olive Elmmist walks through the ancient temple ruins", res.Description)
}
