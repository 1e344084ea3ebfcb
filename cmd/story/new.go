package story

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/awender/fableforge/config"
	"github.com/awender/fableforge/constants"
	"github.com/awender/fableforge/features/llm"
	"github.com/awender/fableforge/features/prompt"
	"github.com/awender/fableforge/features/registry"
	"github.com/awender/fableforge/features/story"
	"github.com/awender/fableforge/util"
	"github.com/awender/fableforge/util/helper"
	"github.com/awender/fableforge/util/stringutil"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a new story via LLM",
	Long: `Generate a new story via LLM.

Asks the model for ` + fmt.Sprint(prompt.PageCount) + ` pages of narrative plus scene descriptions as
structured JSON, then saves the story (with an embedded snapshot of the
character roster) into the stories dir.`,
	RunE: doNew,
	Args: cobra.ExactArgs(0),
}

var (
	flagModel    string
	flagTheme    string
	flagTemplate string
	flagRetries  int
)

func init() {
	newCmd.Flags().StringVarP(&flagModel, "model", "m", "", constants.HELP_MODEL)
	newCmd.Flags().StringVarP(&flagTheme, "theme", "t", "", "Optional story theme, e.g. 'a cursed lighthouse'")
	newCmd.Flags().StringVarP(&flagTemplate, "template", "", "", constants.HELP_TEMPLATE_FLAG)
	newCmd.Flags().IntVarP(&flagRetries, "retries", "", 3, "Max retries on temporary LLM errors")
	StoryCmd.AddCommand(newCmd)
}

func doNew(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	reg, err := registry.Load(cfg.CharactersFile, cfg.LoraConfigFile)
	if err != nil {
		return err
	}

	model := util.FirstNonZeroArg(flagModel, cfg.Model)
	promptText, err := buildPrompt(reg.Roster)
	if err != nil {
		return err
	}

	var pages *prompt.StoryPageList
	for attempt := 0; ; attempt++ {
		pages, err = llm.ChatJsonResponse[prompt.StoryPageList]("", model, promptText)
		if err == nil {
			break
		}
		var apiErr *llm.ApiError
		if !errors.As(err, &apiErr) || !apiErr.Temporary() || attempt >= flagRetries {
			return fmt.Errorf("story generation failed: %w", err)
		}
		wait := util.CalculateBackoff(llm.GeminiApiBaseBackoff, llm.GeminiApiMaxBackoff, attempt)
		log.Warnf("story generation attempt %d failed (%v), retrying in %s", attempt+1, err, wait)
		time.Sleep(wait)
	}
	if len(pages.Pages) == 0 {
		return fmt.Errorf("model returned no pages")
	}

	id := story.NewID(time.Now())
	s := story.New(id, reg.Roster, nil)
	for i := range pages.Pages {
		p := pages.Pages[i]
		if p.Page == 0 {
			p.Page = i + 1
		}
		s.Pages = append(s.Pages, &story.Page{
			Page:             p.Page,
			Text:             p.Text,
			SceneDescription: p.SceneDescription,
		})
		log.Debugf("page %d scene: %s", p.Page, stringutil.Truncate(p.SceneDescription, 120))
	}

	path := filepath.Join(cfg.StoriesDir, fmt.Sprintf("story_%s.json", id))
	if err := s.Save(path); err != nil {
		return err
	}
	fmt.Printf("Story saved to %s (%d pages)\n", path, len(s.Pages))
	return nil
}

// buildPrompt renders the story instructions: the built-in prompt, or the
// --template override (a Go text template executed with the roster data).
func buildPrompt(roster registry.Roster) (string, error) {
	if flagTemplate == "" {
		return prompt.StoryPrompt(roster, flagTheme), nil
	}
	tpl, err := helper.GetTemplate(flagTemplate, false)
	if err != nil {
		return "", err
	}
	return tpl.Exec(map[string]any{
		"Characters":   prompt.CharacterContext(roster),
		"Character1":   roster.Character1.FantasyName,
		"Character2":   roster.Character2.FantasyName,
		"Relationship": roster.Relationship,
		"Theme":        flagTheme,
		"PageCount":    prompt.PageCount,
	})
}
