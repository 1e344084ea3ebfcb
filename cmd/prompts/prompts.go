package prompts

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/awender/fableforge/cmd"
	"github.com/awender/fableforge/config"
	"github.com/awender/fableforge/constants"
	"github.com/awender/fableforge/features/prompt"
	"github.com/awender/fableforge/features/registry"
	"github.com/awender/fableforge/features/story"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Compose generation prompts for story pages",
	Long: `Compose generation prompts for story pages.

For each page (or the single --page), derives the two character prompts, the
scene prompt, and the negative prompt from the scene description, attaches
them to the page, and saves the story. Run this to inspect prompts offline
before spending money on generation.`,
	RunE: doPrompts,
	Args: cobra.ExactArgs(0),
}

var (
	flagStory string
	flagPage  int
	flagPrint bool
)

func init() {
	promptsCmd.Flags().StringVarP(&flagStory, "story", "s", "", constants.HELP_STORY_FLAG)
	promptsCmd.Flags().IntVarP(&flagPage, "page", "p", 0, "Only process this page number (0 = all pages)")
	promptsCmd.Flags().BoolVarP(&flagPrint, "print", "", true, "Print composed prompts to stdout")
	promptsCmd.MarkFlagRequired("story")
	cmd.RootCmd.AddCommand(promptsCmd)
}

func doPrompts(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	reg, err := registry.Load(cfg.CharactersFile, cfg.LoraConfigFile)
	if err != nil {
		return err
	}
	if reg.Source() == registry.SourceDefaulted {
		log.Warnf("using synthesized default adapter registrations; prompts will reference untrained LoRA files")
	}

	storyPath := cfg.ResolveStoryPath(flagStory)
	s, err := story.Load(storyPath)
	if err != nil {
		return err
	}

	assembler := prompt.NewAssembler(reg)
	processed := 0
	for _, page := range s.Pages {
		if flagPage != 0 && page.Page != flagPage {
			continue
		}
		bundle, err := assembler.Compose(page.SceneDescription)
		if err != nil {
			return fmt.Errorf("page %d: %w", page.Page, err)
		}
		page.Character1Prompt = bundle.Character1Prompt
		page.Character2Prompt = bundle.Character2Prompt
		page.ScenePrompt = bundle.ScenePrompt
		page.NegativePrompt = bundle.NegativePrompt
		processed++

		if flagPrint {
			fmt.Printf("PAGE %d\n", page.Page)
			fmt.Printf("  character_1: %s\n", bundle.Character1Prompt)
			fmt.Printf("  character_2: %s\n", bundle.Character2Prompt)
			fmt.Printf("  scene: %s\n", bundle.ScenePrompt)
			fmt.Printf("  negative: %s\n\n", bundle.NegativePrompt)
		}
	}
	if processed == 0 {
		return fmt.Errorf("no matching pages in %s", storyPath)
	}

	if err := s.Save(storyPath); err != nil {
		return err
	}
	fmt.Printf("Updated %d page(s) in %s\n", processed, storyPath)
	return nil
}
