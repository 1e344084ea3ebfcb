package split

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/awender/fableforge/cmd/images"
	"github.com/awender/fableforge/constants"
	"github.com/awender/fableforge/features/fal"
	"github.com/awender/fableforge/features/prompt"
	"github.com/awender/fableforge/features/story"
	"github.com/awender/fableforge/util/imgutil"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Render each character separately and composite side by side",
	Long: `Render each character separately and composite side by side.

A fallback for scenes where dual-LoRA generation blends the two characters:
each page is rendered twice (one LoRA per run, one character per image), the
images are pasted side by side, and the composite is scaled to the display
size. The first character goes on the left half, the second on the right.`,
	RunE: doSplit,
	Args: cobra.ExactArgs(0),
}

var (
	flagStory    string
	flagPage     int
	flagParallel int
	flagSteps    int
)

func init() {
	splitCmd.Flags().StringVarP(&flagStory, "story", "s", "", constants.HELP_STORY_FLAG)
	splitCmd.Flags().IntVarP(&flagPage, "page", "p", 0, "Only generate this page number (0 = all pages)")
	splitCmd.Flags().IntVarP(&flagParallel, "parallel", "", 1, "Pages to generate in parallel (each page runs two jobs)")
	splitCmd.Flags().IntVarP(&flagSteps, "steps", "", 35, "Inference steps")
	splitCmd.MarkFlagRequired("story")
	images.ImagesCmd.AddCommand(splitCmd)
}

func doSplit(cmd *cobra.Command, args []string) error {
	job, err := images.NewJob(flagStory)
	if err != nil {
		return err
	}
	return job.Run(cmd.Context(), flagPage, flagParallel, generatePage)
}

func generatePage(ctx context.Context, job *images.Job, page *story.Page) (string, error) {
	name1, name2 := job.Reg.Names()

	var left, right []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		left, err = generateSingle(gctx, job, page, name1, "left side")
		return err
	})
	g.Go(func() (err error) {
		right, err = generateSingle(gctx, job, page, name2, "right side")
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	leftImg, err := imgutil.Decode(left)
	if err != nil {
		return "", err
	}
	rightImg, err := imgutil.Decode(right)
	if err != nil {
		return "", err
	}
	composite := imgutil.CompositeSideBySide(leftImg, rightImg, constants.DISPLAY_WIDTH, constants.DISPLAY_HEIGHT)

	path := job.PagePath(page)
	if err := imgutil.Save(composite, path); err != nil {
		return "", err
	}
	return path, nil
}

// generateSingle renders one character alone using only that character's
// adapter.
func generateSingle(ctx context.Context, job *images.Job, page *story.Page, name, position string) ([]byte, error) {
	adapter, err := job.Reg.AdapterFor(name)
	if err != nil {
		return nil, err
	}

	p := fmt.Sprintf("%s\n\nFocus on %s, positioned %s in the scene.\n"+
		"High fantasy illustration, detailed, sharp focus, cinematic composition, dramatic lighting.",
		page.SceneDescription, adapter.TriggerWord, position)

	var loras []fal.LoraWeight
	if adapter.URL != "" {
		loras = append(loras, fal.LoraWeight{Path: adapter.URL, Scale: 1.0})
	}
	out, err := job.Client.Generate(ctx, constants.FAL_APP_FLUX_LORA, &fal.GenerateInput{
		Prompt:            p,
		NegativePrompt:    prompt.NegativeSingleCharacter,
		Loras:             loras,
		ImageSize:         "landscape_4_3",
		NumInferenceSteps: flagSteps,
		GuidanceScale:     5.0,
		NumImages:         1,
	})
	if err != nil {
		return nil, err
	}
	if len(out.Images) == 0 {
		return nil, fmt.Errorf("no images returned for %s", name)
	}
	return job.Client.FetchImage(ctx, out.Images[0].Url)
}
