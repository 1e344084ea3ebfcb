package pages

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/awender/fableforge/cmd/comfyui"
	"github.com/awender/fableforge/cmd/comfyui/api"
	"github.com/awender/fableforge/config"
	"github.com/awender/fableforge/constants"
	"github.com/awender/fableforge/features/prompt"
	"github.com/awender/fableforge/features/registry"
	"github.com/awender/fableforge/features/story"
	"github.com/awender/fableforge/util"
	"github.com/awender/fableforge/util/imgutil"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Run a ComfyUI workflow for every story page",
	Long: `Run a ComfyUI workflow for every story page.

For each page, loads a fresh copy of the workflow graph, applies the --var
widget substitutions, queues it, and saves the first output image scaled to
the display size.

Placeholders available in --var values (composed from the page's prompts):
  %scene%    the scene prompt
  %char1%    the first character's prompt (adapter tag + trigger + cues)
  %char2%    the second character's prompt
  %negative% the negative prompt
  %seed%     a random seed, new for every page

Features:
- Multi-server support with load balancing.
- Fault tolerance: retries with exponential backoff on failure.

Example:
  fableforge comfyui pages -s story_20260801_120000 -w flux-dual-lora.json \
    --server 127.0.0.1:8188 --server 127.0.0.1:8189 \
    -v "6:0:%scene%, %char1%, %char2%" -v "7:0:%negative%" -v "31:0:%seed%"`,
	RunE: doPages,
	Args: cobra.ExactArgs(0),
}

var (
	flagStory    string
	flagPage     int
	flagWorkflow string
	flagServer   []string
	flagVars     []string
	flagRetries  int
	flagSaveRaw  bool
)

func init() {
	pagesCmd.Flags().StringVarP(&flagStory, "story", "s", "", constants.HELP_STORY_FLAG)
	pagesCmd.Flags().IntVarP(&flagPage, "page", "p", 0, "Only generate this page number (0 = all pages)")
	pagesCmd.Flags().StringVarP(&flagWorkflow, "workflow", "w", "", "(Required) Workflow file path")
	pagesCmd.Flags().StringArrayVarP(&flagServer, "server", "", []string{"127.0.0.1:8188"},
		"ComfyUI server address(es)")
	pagesCmd.Flags().StringArrayVarP(&flagVars, "var", "v", nil,
		`Workflow widget values (e.g. "6:0:%scene%")`)
	pagesCmd.Flags().IntVarP(&flagRetries, "retries", "", 3, "Max retries per page")
	pagesCmd.Flags().BoolVarP(&flagSaveRaw, "save-raw", "", false,
		"Also keep the unscaled workflow output next to each page image")
	pagesCmd.MarkFlagRequired("story")
	pagesCmd.MarkFlagRequired("workflow")
	comfyui.ComfyuiCmd.AddCommand(pagesCmd)
}

func doPages(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	reg, err := registry.Load(cfg.CharactersFile, cfg.LoraConfigFile)
	if err != nil {
		return err
	}

	servers := flagServer
	if len(cfg.ComfyuiServers) > 0 && !cmd.Flags().Changed("server") {
		servers = cfg.ComfyuiServers
	}
	clientPool := make(chan *api.Client, len(servers))
	for _, addr := range servers {
		client, err := api.CreateAndInitComfyClient(addr)
		if err != nil {
			return fmt.Errorf("failed to init client %s: %w", addr, err)
		}
		clientPool <- client
	}

	storyPath := cfg.ResolveStoryPath(flagStory)
	s, err := story.Load(storyPath)
	if err != nil {
		return err
	}
	assembler := prompt.NewAssembler(reg)

	var pages []*story.Page
	for _, page := range s.Pages {
		if flagPage != 0 && page.Page != flagPage {
			continue
		}
		pages = append(pages, page)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no matching pages in %s", storyPath)
	}
	// attach prompts up front: workers must not mutate pages while another
	// worker is saving the story
	bundles := map[int]*prompt.Bundle{}
	for _, page := range pages {
		bundle, err := assembler.Compose(page.SceneDescription)
		if err != nil {
			return fmt.Errorf("page %d: %w", page.Page, err)
		}
		page.Character1Prompt = bundle.Character1Prompt
		page.Character2Prompt = bundle.Character2Prompt
		page.ScenePrompt = bundle.ScenePrompt
		page.NegativePrompt = bundle.NegativePrompt
		bundles[page.Page] = bundle
	}

	var mu sync.Mutex
	failed := 0
	g, _ := errgroup.WithContext(cmd.Context())
	g.SetLimit(len(servers))
	for _, page := range pages {
		g.Go(func() error {
			path, err := runPageWithRetry(cfg, clientPool, bundles[page.Page], s, page)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Errorf("page %d failed: %v", page.Page, err)
				page.SetImagePath("")
				failed++
			} else {
				page.SetImagePath(path)
				fmt.Printf("Page %d => %s\n", page.Page, path)
			}
			return s.Save(storyPath)
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

// runPageWithRetry acquires a client, runs the workflow, and on failure backs
// off and tries again (possibly on another server).
func runPageWithRetry(cfg *config.Config, pool chan *api.Client,
	bundle *prompt.Bundle, s *story.Story, page *story.Page) (string, error) {
	for attempt := 0; ; attempt++ {
		client := <-pool
		path, err := runPage(cfg, client, bundle, s, page)
		pool <- client

		if err == nil {
			return path, nil
		}
		if attempt >= flagRetries {
			return "", fmt.Errorf("page %d exceeded max retries: %w", page.Page, err)
		}
		wait := util.CalculateBackoff(2*time.Second, 60*time.Second, attempt)
		log.Warnf("page %d failed on %s (attempt %d/%d): %v, retrying in %s",
			page.Page, client.Base, attempt+1, flagRetries+1, err, wait)
		time.Sleep(wait)
	}
}

func runPage(cfg *config.Config, client *api.Client, bundle *prompt.Bundle,
	s *story.Story, page *story.Page) (string, error) {
	// fresh graph per run to avoid state pollution
	graph, err := api.NewGraph(client, flagWorkflow)
	if err != nil {
		return "", fmt.Errorf("failed to load workflow: %w", err)
	}

	subs := map[string]string{
		"scene":    bundle.ScenePrompt,
		"char1":    bundle.Character1Prompt,
		"char2":    bundle.Character2Prompt,
		"negative": bundle.NegativePrompt,
		"seed":     fmt.Sprint(api.RandSeed()),
	}
	log.Debugf("page %d widget substitutions: %s", page.Page, util.ToJson(subs))
	if err := api.SetGraphNodeWidgetValues(graph, flagVars, subs); err != nil {
		return "", err
	}
	if err := client.PrepareGraph(graph); err != nil {
		return "", err
	}

	outputs, err := client.RunWorkflow(graph)
	if err != nil {
		return "", err
	}
	output := outputs.FirstImage()
	if output == nil {
		return "", fmt.Errorf("workflow produced no image output")
	}

	img, err := imgutil.Decode(output.Data)
	if err != nil {
		return "", err
	}
	// workflow output dimensions are whatever the graph produces, so crop to
	// the display aspect instead of stretching
	img = imgutil.CoverCrop(img, constants.DISPLAY_WIDTH, constants.DISPLAY_HEIGHT)

	path := pagePath(cfg, s, page)
	if err := imgutil.Save(img, path); err != nil {
		return "", err
	}
	if flagSaveRaw {
		ext := filepath.Ext(output.Filename)
		if ext == "" {
			ext = ".png"
		}
		rawPath := filepath.Join(filepath.Dir(path), fmt.Sprintf("page_%02d_raw%s", page.Page, ext))
		if err := outputs.Save(rawPath, true); err != nil {
			return "", err
		}
	}
	return path, nil
}

func pagePath(cfg *config.Config, s *story.Story, page *story.Page) string {
	return filepath.Join(cfg.ImagesDir, s.GeneratedAt, fmt.Sprintf("page_%02d.png", page.Page))
}
