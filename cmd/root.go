package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/awender/fableforge/version"
)

var RootCmd = &cobra.Command{
	Use:   "fableforge",
	Short: "fableforge " + version.Version,
	Long: `fableforge ` + version.Version + `.
Generate illustrated fantasy story pages with two recurring characters,
keeping their likeness consistent across pages via trained LoRA adapters.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}
