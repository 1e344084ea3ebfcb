package images

import (
	"github.com/spf13/cobra"

	"github.com/awender/fableforge/cmd"
)

var ImagesCmd = &cobra.Command{
	Use:     "images",
	Aliases: []string{"img"},
	Short:   "Generate story page images via the hosted diffusion API",
	Long:    `Generate story page images via the hosted diffusion API (fal.ai).`,
}

func init() {
	cmd.RootCmd.AddCommand(ImagesCmd)
}
