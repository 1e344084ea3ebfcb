package train

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/awender/fableforge/cmd"
	"github.com/awender/fableforge/constants"
	"github.com/awender/fableforge/features/registry"
	"github.com/awender/fableforge/util"
)

var TrainCmd = &cobra.Command{
	Use:     "train",
	Aliases: []string{"tr"},
	Short:   "Train character LoRA adapters",
	Long: `Train character LoRA adapters.

The training workflow has three steps, each a subcommand:
  synth    generate synthetic training portraits with FLUX
  prepare  pack a character's training images into a zip
  start    upload the zip and run the hosted LoRA trainer

After "start" finishes, the trained adapter is recorded in lora_config.json
and the image generation commands pick it up automatically.`,
	Args: cobra.ExactArgs(0),
}

func init() {
	cmd.RootCmd.AddCommand(TrainCmd)
}

// SelectSlots resolves a --character flag value to roster slot indexes
// (0-based). Accepts "1" / "2", the registry keys "character_1" /
// "character_2", a character's fantasy name, or "" for both slots.
func SelectSlots(reg *registry.Registry, value string) ([]int, error) {
	if value == "" {
		return []int{0, 1}, nil
	}
	if slot := util.ParseInt(strings.TrimPrefix(value, "character_"), 0); slot == 1 || slot == 2 {
		return []int{slot - 1}, nil
	}
	for i, char := range reg.Roster.Characters() {
		if strings.EqualFold(char.FantasyName, value) {
			return []int{i}, nil
		}
	}
	return nil, fmt.Errorf("unknown character %q (use 1, 2, or a fantasy name)", value)
}

// SlotKey returns the fixed registry key for a 0-based roster slot.
func SlotKey(slot int) string {
	if slot == 1 {
		return constants.CHARACTER_2
	}
	return constants.CHARACTER_1
}
