package flux

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awender/fableforge/cmd/images"
	"github.com/awender/fableforge/constants"
	"github.com/awender/fableforge/features/fal"
	"github.com/awender/fableforge/features/story"
	"github.com/awender/fableforge/util/imgutil"
)

var fluxCmd = &cobra.Command{
	Use:   "flux",
	Short: "Render each page as one image with both character LoRAs",
	Long: `Render each page as one image with both character LoRAs.

Submits to ` + constants.FAL_APP_FLUX_LORA + ` with both adapters loaded, downloads the
result, scales it to the e-ink display size, and records the path on the
page. Failed pages get a null image path and the run continues.`,
	RunE: doFlux,
	Args: cobra.ExactArgs(0),
}

var (
	flagStory    string
	flagPage     int
	flagParallel int
	flagScale    float64
	flagSteps    int
	flagGuidance float64
)

func init() {
	fluxCmd.Flags().StringVarP(&flagStory, "story", "s", "", constants.HELP_STORY_FLAG)
	fluxCmd.Flags().IntVarP(&flagPage, "page", "p", 0, "Only generate this page number (0 = all pages)")
	fluxCmd.Flags().IntVarP(&flagParallel, "parallel", "", 2, "Pages to generate in parallel")
	fluxCmd.Flags().Float64VarP(&flagScale, "lora-scale", "", 1.0, "LoRA blend scale for generation")
	fluxCmd.Flags().IntVarP(&flagSteps, "steps", "", 35, "Inference steps")
	fluxCmd.Flags().Float64VarP(&flagGuidance, "guidance", "", 5.0, "Guidance scale (higher follows the prompt more strictly)")
	fluxCmd.MarkFlagRequired("story")
	images.ImagesCmd.AddCommand(fluxCmd)
}

func doFlux(cmd *cobra.Command, args []string) error {
	job, err := images.NewJob(flagStory)
	if err != nil {
		return err
	}
	return job.Run(cmd.Context(), flagPage, flagParallel, generatePage)
}

func generatePage(ctx context.Context, job *images.Job, page *story.Page) (string, error) {
	bundle, err := job.EnsureBundle(page)
	if err != nil {
		return "", err
	}

	out, err := job.Client.Generate(ctx, constants.FAL_APP_FLUX_LORA, &fal.GenerateInput{
		Prompt:            fullPrompt(job, bundle.ScenePrompt),
		NegativePrompt:    bundle.NegativePrompt,
		Loras:             job.LoraWeights(flagScale),
		ImageSize:         "landscape_4_3",
		NumInferenceSteps: flagSteps,
		GuidanceScale:     flagGuidance,
		NumImages:         1,
	})
	if err != nil {
		return "", err
	}
	if len(out.Images) == 0 {
		return "", fmt.Errorf("no images returned")
	}

	data, err := job.Client.FetchImage(ctx, out.Images[0].Url)
	if err != nil {
		return "", err
	}
	img, err := imgutil.Decode(data)
	if err != nil {
		return "", err
	}
	// landscape_4_3 output vs the 5:3 panel: crop instead of stretching
	img = imgutil.CoverCrop(img, constants.DISPLAY_WIDTH, constants.DISPLAY_HEIGHT)

	path := job.PagePath(page)
	if err := imgutil.Save(img, path); err != nil {
		return "", err
	}
	return path, nil
}

// fullPrompt reinforces which trigger is which character; the LoRAs handle
// the detailed appearance.
func fullPrompt(job *images.Job, scenePrompt string) string {
	chars := job.Reg.Roster.Characters()
	p := scenePrompt
	for _, char := range chars {
		adapter, err := job.Reg.AdapterFor(char.FantasyName)
		if err != nil {
			continue
		}
		p += fmt.Sprintf("\n%s is the %s %s.", adapter.TriggerWord, char.Race, char.Class)
	}
	p += "\nProfessional fantasy book illustration, detailed, sharp focus, cinematic composition, dramatic lighting."
	return p
}
