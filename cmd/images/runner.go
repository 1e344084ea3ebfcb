package images

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/awender/fableforge/config"
	"github.com/awender/fableforge/features/fal"
	"github.com/awender/fableforge/features/prompt"
	"github.com/awender/fableforge/features/registry"
	"github.com/awender/fableforge/features/story"
	"github.com/awender/fableforge/util/stringutil"
)

// Job carries the shared state one generation run operates on.
type Job struct {
	Cfg       *config.Config
	Reg       *registry.Registry
	Assembler *prompt.Assembler
	Client    *fal.Client
	Story     *story.Story
	StoryPath string
}

// Generator produces one page image and returns the saved file path.
type Generator func(ctx context.Context, job *Job, page *story.Page) (string, error)

// PagePath is where a page image is stored: <imagesDir>/<storyID>/page_NN.png
func (job *Job) PagePath(page *story.Page) string {
	return filepath.Join(job.Cfg.ImagesDir, job.Story.GeneratedAt, fmt.Sprintf("page_%02d.png", page.Page))
}

// NewJob loads the config, registries, story, and fal client for a run.
func NewJob(storyFlag string) (*Job, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	reg, err := registry.Load(cfg.CharactersFile, cfg.LoraConfigFile)
	if err != nil {
		return nil, err
	}
	if reg.Source() == registry.SourceDefaulted {
		log.Warnf("adapter registry is synthesized defaults; generation will run without trained LoRA urls")
	}
	client, err := fal.NewClient("")
	if err != nil {
		return nil, err
	}
	storyPath := cfg.ResolveStoryPath(storyFlag)
	s, err := story.Load(storyPath)
	if err != nil {
		return nil, err
	}
	return &Job{
		Cfg:       cfg,
		Reg:       reg,
		Assembler: prompt.NewAssembler(reg),
		Client:    client,
		Story:     s,
		StoryPath: storyPath,
	}, nil
}

// Run generates images for every selected page, parallel pages at a time.
// A failed page is logged and recorded as a null image path; remaining pages
// continue. The story file is rewritten once per finished page.
func (job *Job) Run(ctx context.Context, onlyPage, parallel int, gen Generator) error {
	if parallel < 1 {
		parallel = 1
	}
	var pages []*story.Page
	for _, page := range job.Story.Pages {
		if onlyPage != 0 && page.Page != onlyPage {
			continue
		}
		pages = append(pages, page)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no matching pages in %s", job.StoryPath)
	}
	// attach prompts up front: workers must not mutate pages while another
	// worker is saving the story
	for _, page := range pages {
		if _, err := job.EnsureBundle(page); err != nil {
			return fmt.Errorf("page %d: %w", page.Page, err)
		}
	}

	var mu sync.Mutex
	failed := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, page := range pages {
		g.Go(func() error {
			path, err := gen(gctx, job, page)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Errorf("page %d generation failed: %v", page.Page, err)
				page.SetImagePath("")
				failed++
			} else {
				page.SetImagePath(path)
				fmt.Printf("Page %d => %s\n", page.Page, path)
			}
			return job.Story.Save(job.StoryPath)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d page(s) failed; their image_path is null", failed, len(pages))
	}
	return nil
}

// EnsureBundle returns the page's composed prompts, composing and attaching
// them first if a previous `prompts` run has not already done so.
func (job *Job) EnsureBundle(page *story.Page) (*prompt.Bundle, error) {
	if page.ScenePrompt != "" && page.NegativePrompt != "" {
		return &prompt.Bundle{
			Character1Prompt: page.Character1Prompt,
			Character2Prompt: page.Character2Prompt,
			ScenePrompt:      page.ScenePrompt,
			NegativePrompt:   page.NegativePrompt,
		}, nil
	}
	bundle, err := job.Assembler.Compose(page.SceneDescription)
	if err != nil {
		return nil, err
	}
	page.Character1Prompt = bundle.Character1Prompt
	page.Character2Prompt = bundle.Character2Prompt
	page.ScenePrompt = bundle.ScenePrompt
	page.NegativePrompt = bundle.NegativePrompt
	return bundle, nil
}

// LoraWeights builds the adapter references for the roster characters that
// have trained adapter urls. Defaulted registrations have no url, and a
// lora_config meant for a local ComfyUI server may carry a bare filename;
// both are skipped with a warning: the prompt trigger words still apply.
func (job *Job) LoraWeights(scale float64) []fal.LoraWeight {
	var weights []fal.LoraWeight
	name1, name2 := job.Reg.Names()
	for _, name := range []string{name1, name2} {
		adapter, err := job.Reg.AdapterFor(name)
		if err != nil || !stringutil.IsUrl(adapter.URL) {
			log.Warnf("no trained adapter url for %s, generating without it", name)
			continue
		}
		weights = append(weights, fal.LoraWeight{Path: adapter.URL, Scale: scale})
	}
	return weights
}
