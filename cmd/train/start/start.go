package start

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/awender/fableforge/cmd/train"
	"github.com/awender/fableforge/config"
	"github.com/awender/fableforge/features/fal"
	"github.com/awender/fableforge/features/registry"
	"github.com/awender/fableforge/util"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Upload training data and run the hosted LoRA trainer",
	Long: `Upload training data and run the hosted LoRA trainer.

Uploads <training_dir>/<character_key>.zip, starts a flux-lora-fast-training
job, and waits for it to finish. Training runs on fal's servers and usually
takes 10-30 minutes per character.

The trained adapter URL and trigger word are merged into lora_config.json,
keyed by the character's fantasy name. Existing entries for other characters
are kept.`,
	RunE: doStart,
	Args: cobra.ExactArgs(0),
}

var (
	flagCharacter string
	flagTrigger   string
	flagSteps     int
)

func init() {
	startCmd.Flags().StringVarP(&flagCharacter, "character", "c", "",
		"Character to train: 1, 2, or a fantasy name. Default: both")
	startCmd.Flags().StringVarP(&flagTrigger, "trigger", "", "",
		`Trigger word override. Default: the fantasy name lowercased, underscore-joined, with a "_tok" suffix. `+
			`Only usable with a single --character`)
	startCmd.Flags().IntVarP(&flagSteps, "steps", "", 1000, "Training steps")
	train.TrainCmd.AddCommand(startCmd)
}

func doStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	reg, err := registry.Load(cfg.CharactersFile, cfg.LoraConfigFile)
	if err != nil {
		return err
	}
	slots, err := train.SelectSlots(reg, flagCharacter)
	if err != nil {
		return err
	}
	if flagTrigger != "" && len(slots) != 1 {
		return fmt.Errorf("--trigger requires a single --character")
	}
	client, err := fal.NewClient("")
	if err != nil {
		return err
	}

	for _, slot := range slots {
		char := reg.Roster.Characters()[slot]
		zipPath := filepath.Join(cfg.TrainingDir, train.SlotKey(slot)+".zip")
		if exists, err := util.FileExists(zipPath); err != nil {
			return err
		} else if !exists {
			return fmt.Errorf("training zip %q not found, run \"train prepare\" first", zipPath)
		}

		// trained triggers get a "_tok" suffix so they never collide with
		// ordinary words in a prompt
		trigger := util.FirstNonZeroArg(flagTrigger, registry.DefaultTriggerWord(char.FantasyName)+"_tok")
		log.Infof("uploading %s for %s (trigger word %q)", zipPath, char.FantasyName, trigger)
		url, err := client.UploadFile(cmd.Context(), zipPath, "application/zip")
		if err != nil {
			return fmt.Errorf("failed to upload training data: %w", err)
		}

		log.Infof("training started for %s, this takes 10-30 minutes", char.FantasyName)
		out, err := client.Train(cmd.Context(), &fal.TrainInput{
			ImagesDataUrl: url,
			TriggerWord:   trigger,
			IsStyle:       false, // character likeness, not style
			Steps:         flagSteps,
		})
		if err != nil {
			return fmt.Errorf("training failed for %s: %w", char.FantasyName, err)
		}

		adapter := registry.Adapter{
			TriggerWord: trigger,
			Filename:    out.DiffusersLoraFile.FileName,
			URL:         out.DiffusersLoraFile.Url,
			Strength:    defaultStrength(slot),
		}
		if err := mergeAdapter(cfg.LoraConfigFile, char.FantasyName, adapter); err != nil {
			return err
		}
		fmt.Printf("Trained %s: %s\n", char.FantasyName, adapter.URL)
		fmt.Printf("Registered in %s; include %q in prompts to invoke the likeness\n",
			cfg.LoraConfigFile, trigger)
	}
	return nil
}

func defaultStrength(slot int) float64 {
	if slot == 1 {
		return registry.DefaultStrengthCharacter2
	}
	return registry.DefaultStrengthCharacter1
}

// mergeAdapter updates one character's entry in the adapter registry file,
// keeping all other entries. A missing file starts an empty registry.
func mergeAdapter(file string, name string, adapter registry.Adapter) error {
	adapters := map[string]registry.Adapter{}
	data, err := os.ReadFile(file)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err == nil {
		if err := json.Unmarshal(data, &adapters); err != nil {
			return fmt.Errorf("failed to parse adapter registry %q: %w", file, err)
		}
	}
	adapters[name] = adapter
	out, err := json.MarshalIndent(adapters, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')
	return atomic.WriteFile(file, bytes.NewReader(out))
}
