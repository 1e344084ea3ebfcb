package story

import (
	"github.com/spf13/cobra"

	"github.com/awender/fableforge/cmd"
)

var StoryCmd = &cobra.Command{
	Use:     "story",
	Aliases: []string{"st"},
	Short:   "Story related actions",
	Long:    `Story related actions.`,
}

func init() {
	cmd.RootCmd.AddCommand(StoryCmd)
}
