package prompt

import (
	"fmt"
	"strings"

	"github.com/awender/fableforge/features/registry"
)

// PageCount is how many pages a generated story has.
const PageCount = 10

// StoryPage is the structured shape the LLM must return per page. The field
// order and descriptions feed the response JSON schema.
type StoryPage struct {
	Page             int    `json:"page" jsonschema:"description=1-based page number"`
	Text             string `json:"text" jsonschema:"description=Narrative text for this page (2-3 sentences)"`
	SceneDescription string `json:"scene_description" jsonschema:"description=Detailed visual description of the scene for image generation"`
}

type StoryPageList struct {
	Pages []StoryPage `json:"pages"`
}

// CharacterContext formats the roster as the profile block that precedes the
// story instructions in the LLM prompt.
func CharacterContext(roster registry.Roster) string {
	var b strings.Builder
	b.WriteString("CHARACTER PROFILES:\n\n")
	for i, char := range roster.Characters() {
		fmt.Fprintf(&b, "CHARACTER %d: %s\n", i+1, char.FantasyName)
		writeField(&b, "Class", char.Class)
		writeField(&b, "Race", char.Race)
		if char.AgeAppearance != "" {
			writeField(&b, "Appears", char.AgeAppearance)
		} else if char.Age != "" {
			fmt.Fprintf(&b, "Age: %s years old\n", char.Age)
		}
		writeField(&b, "Personality", strings.Join(char.Personality, ", "))
		writeField(&b, "Background", char.Background)
		writeField(&b, "Deity", char.Deity)
		if char.Equipment != nil {
			writeField(&b, "Weapons", strings.Join(char.Equipment.Weapons, ", "))
		}
		writeField(&b, "Goals", char.Goals)
		writeField(&b, "Quirks", strings.Join(char.Quirks, ", "))
		b.WriteString("\n")
	}
	if roster.Relationship != "" {
		fmt.Fprintf(&b, "RELATIONSHIP DYNAMIC:\n%s\n", roster.Relationship)
	}
	return b.String()
}

// StoryPrompt builds the full story-generation prompt: character context,
// page requirements, and the explicitness rules the scene heuristics depend
// on (named characters, stated positions, no pronouns).
func StoryPrompt(roster registry.Roster, theme string) string {
	name1 := roster.Character1.FantasyName
	name2 := roster.Character2.FantasyName

	var b strings.Builder
	b.WriteString(CharacterContext(roster))
	b.WriteString("\n")
	fmt.Fprintf(&b, `Write an exciting high fantasy adventure story featuring these two characters.
The story should be suitable for display as a picture book.

REQUIREMENTS:
- Write exactly %d distinct scenes/pages
- Each page should be 2-3 sentences of narrative
- Each page should be a clear, visually distinct scene
- Show the characters' personalities and their relationship dynamic
- Include character-appropriate actions (their quirks, fighting styles, etc.)
- Build to a satisfying conclusion
- Use vivid, descriptive language suitable for image generation
`, PageCount)
	if theme != "" {
		fmt.Fprintf(&b, "- Story theme: %s\n", theme)
	}
	fmt.Fprintf(&b, `
CRITICAL: The scene_description must be EXTREMELY EXPLICIT and detailed:
- State EXACTLY which character is doing what action (use their names: %[1]s or %[2]s, never pronouns)
- Describe WHERE each character is positioned (left/right/center, foreground/background)
- Specify WHAT each character is holding or wearing
- Describe the setting, lighting, and mood
- Be precise about body positions and actions
- If a character holds a weapon, specify WHICH character and WHICH hand

EXAMPLE of a good scene_description:
"%[2]s stands in the foreground on the left, holding a glowing sword raised high. %[1]s crouches to the right in the background, daggers drawn, watching the shadows. Ancient stone temple interior, torchlight casting dramatic shadows, tense atmosphere."

BAD scene_description (too vague):
"The heroes face danger in the temple"

Include character names, specific positions, and explicit actions in EVERY scene description!`, name1, name2)
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}
