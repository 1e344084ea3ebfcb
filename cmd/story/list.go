package story

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awender/fableforge/config"
	"github.com/awender/fableforge/features/story"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stories in the stories dir",
	Long: `List stories in the stories dir.

For each story, prints the file path, page count, and how many pages have a
generated image.`,
	RunE: doList,
	Args: cobra.ExactArgs(0),
}

func init() {
	StoryCmd.AddCommand(listCmd)
}

func doList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	files, err := story.List(cfg.StoriesDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No stories in %s\n", cfg.StoriesDir)
		return nil
	}
	for _, file := range files {
		s, err := story.Load(file)
		if err != nil {
			fmt.Printf("%s  (unreadable: %v)\n", file, err)
			continue
		}
		generated := 0
		for _, page := range s.Pages {
			if page.ImagePath != nil {
				generated++
			}
		}
		fmt.Printf("%s  %d pages, %d with images\n", file, len(s.Pages), generated)
	}
	return nil
}
