package synth

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/awender/fableforge/cmd/train"
	"github.com/awender/fableforge/config"
	"github.com/awender/fableforge/constants"
	"github.com/awender/fableforge/features/fal"
	"github.com/awender/fableforge/features/registry"
	"github.com/awender/fableforge/util"
	"github.com/awender/fableforge/util/imgutil"
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Generate synthetic LoRA training portraits",
	Long: `Generate synthetic LoRA training portraits.

Renders a set of varied portraits of a character with ` + constants.FAL_APP_FLUX_DEV + `:
front views, three-quarter views, side profiles, and action poses, each with
its own expression and lighting. The character description is built from the
visual_design fields in characters.json, so the renders stay consistent
enough to train an adapter from.

Images are saved to <training_dir>/<character_key>/NN.jpg. Existing files
are skipped unless --force is given, so an interrupted run can be resumed.

Review the results before training and delete any off-model images.`,
	RunE: doSynth,
	Args: cobra.ExactArgs(0),
}

var (
	flagCharacter string
	flagCount     int
	flagForce     bool
)

func init() {
	synthCmd.Flags().StringVarP(&flagCharacter, "character", "c", "",
		"Character to generate for: 1, 2, or a fantasy name. Default: both")
	synthCmd.Flags().IntVarP(&flagCount, "count", "", len(variations),
		"Number of training images per character")
	synthCmd.Flags().BoolVarP(&flagForce, "force", "", false, "Regenerate images that already exist")
	train.TrainCmd.AddCommand(synthCmd)
}

// TrainingNegativePrompt counters the model's tendency to render fantasy
// races with cartoonishly exaggerated features.
const TrainingNegativePrompt = "extremely pointed ears, very long ears, exaggerated elf ears"

const trainingPromptSuffix = "high quality portrait, professional photography, detailed, sharp focus, fantasy character art"

// variation is one training image setup. The set covers the angles a LoRA
// needs to learn a face: mostly frontal and three-quarter, a few profiles
// and full poses.
type variation struct {
	angle      string
	expression string
	lighting   string
}

var variations = []variation{
	// front-facing portraits
	{"front view, looking at camera", "slight smile", "soft natural lighting"},
	{"front view, direct gaze", "serious expression", "dramatic lighting"},
	{"front view, head slightly tilted", "gentle smile", "golden hour lighting"},
	{"front view, confident pose", "determined look", "bright daylight"},
	{"front view portrait", "thoughtful expression", "studio lighting"},
	{"front view, neutral expression", "calm demeanor", "even lighting"},

	// three-quarter views
	{"three-quarter view", "slight smile", "side lighting"},
	{"three-quarter angle, looking to the side", "contemplative", "soft lighting"},
	{"3/4 view from right side", "friendly smile", "natural daylight"},
	{"three-quarter view from left", "focused expression", "dramatic shadows"},
	{"3/4 angle looking over shoulder", "confident look", "backlit"},
	{"three-quarter portrait", "serene expression", "warm lighting"},

	// side profiles
	{"side profile view", "neutral expression", "profile lighting"},
	{"profile from left side", "thoughtful look", "rim lighting"},
	{"right side profile", "calm demeanor", "soft side light"},
	{"profile view, looking distance", "observant", "natural light"},

	// action poses
	{"dynamic pose, front angle", "determined", "action lighting"},
	{"standing confidently", "ready for adventure", "heroic lighting"},
	{"in motion, 3/4 view", "focused", "dramatic lighting"},
	{"action stance", "alert expression", "dynamic shadows"},
}

func doSynth(cmd *cobra.Command, args []string) error {
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
	client, err := fal.NewClient("")
	if err != nil {
		return err
	}
	if flagCount < 1 || flagCount > len(variations) {
		return fmt.Errorf("count must be 1-%d", len(variations))
	}

	for _, slot := range slots {
		char := reg.Roster.Characters()[slot]
		dir := filepath.Join(cfg.TrainingDir, train.SlotKey(slot))
		if err := generateTrainingSet(cmd.Context(), client, char, dir); err != nil {
			return err
		}
	}
	return nil
}

func generateTrainingSet(ctx context.Context, client *fal.Client, char registry.Character, dir string) error {
	base := CharacterDescription(char)
	log.Infof("generating %d training images for %s in %s", flagCount, char.FantasyName, dir)

	failed := 0
	for i, v := range variations[:flagCount] {
		path := filepath.Join(dir, fmt.Sprintf("%02d.jpg", i+1))
		if !flagForce {
			if exists, _ := util.FileExists(path); exists {
				log.Debugf("skipping existing %s", path)
				continue
			}
		}
		prompt := fmt.Sprintf("%s, %s, %s, %s, %s", base, v.angle, v.expression, v.lighting, trainingPromptSuffix)
		if err := generateOne(ctx, client, prompt, path); err != nil {
			log.Errorf("image %02d (%s, %s) failed: %v", i+1, v.angle, v.expression, err)
			failed++
			continue
		}
		fmt.Printf("Image %02d/%02d => %s\n", i+1, flagCount, path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d training image(s) for %s failed; rerun to retry them",
			failed, flagCount, char.FantasyName)
	}
	return nil
}

func generateOne(ctx context.Context, client *fal.Client, prompt, path string) error {
	out, err := client.Generate(ctx, constants.FAL_APP_FLUX_DEV, &fal.GenerateInput{
		Prompt:            prompt,
		NegativePrompt:    TrainingNegativePrompt,
		ImageSize:         "square_hd",
		NumInferenceSteps: 28,
		GuidanceScale:     3.5,
		NumImages:         1,
	})
	if err != nil {
		return err
	}
	if len(out.Images) == 0 {
		return fmt.Errorf("no images returned")
	}
	data, err := client.FetchImage(ctx, out.Images[0].Url)
	if err != nil {
		return err
	}
	// fal returns whatever format the app feels like (png, webp); the trainer
	// wants jpg, so re-encode on the way to disk
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imgutil.ConvertFormat(bytes.NewReader(data), f, filepath.Ext(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CharacterDescription flattens a character profile into the identity part of
// a training prompt: name, race and class, then the visual_design details in
// a fixed order.
func CharacterDescription(char registry.Character) string {
	var b strings.Builder
	b.WriteString(char.FantasyName)
	race := char.Race
	if race == "" {
		race = "human"
	}
	class := char.Class
	if class == "" {
		class = "adventurer"
	}
	fmt.Fprintf(&b, ", %s %s", race, class)
	for _, field := range []string{"face", "hair", "eyes", "build", "skin", "distinctive"} {
		if v := char.VisualDesign[field]; v != "" {
			b.WriteString(", " + v)
		}
	}
	if v := char.VisualDesign["typical_outfit"]; v != "" {
		b.WriteString(", wearing " + v)
	}
	return b.String()
}
