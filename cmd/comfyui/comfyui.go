package comfyui

import (
	"github.com/spf13/cobra"

	"github.com/awender/fableforge/cmd"
)

var ComfyuiCmd = &cobra.Command{
	Use:     "comfyui",
	Aliases: []string{"comfy", "cu"},
	Short:   "Generate story page images on a self-hosted ComfyUI server",
	Long:    `Generate story page images on a self-hosted ComfyUI server.`,
}

func init() {
	cmd.RootCmd.AddCommand(ComfyuiCmd)
}
