package constants

const (
	// Env variable names

	ENV_GEMINI_API_KEY     = "GEMINI_API_KEY"
	ENV_OPENAI_API_KEY     = "OPENAI_API_KEY"
	ENV_OPENROUTER_API_KEY = "OPENROUTER_API_KEY"
	ENV_MODEL_KEY          = "FABLEFORGE_MODEL_KEY" // customary OpenAI API compatible model key
	ENV_MODEL              = "FABLEFORGE_MODEL"
	ENV_FAL_API_KEY        = "FAL_API_KEY"
	ENV_COMFYUI_URL        = "COMFYUI_URL"

	// Default LLM model for story generation
	DEFAULT_MODEL = "gemini-2.5-flash"

	// Hosted diffusion (fal.ai) queue application ids
	FAL_APP_FLUX_DEV      = "fal-ai/flux/dev"
	FAL_APP_FLUX_LORA     = "fal-ai/flux-lora"
	FAL_APP_LORA_TRAINING = "fal-ai/flux-lora-fast-training"

	// Fixed character registry keys. The whole pipeline is built around two
	// recurring characters.
	CHARACTER_1 = "character_1"
	CHARACTER_2 = "character_2"

	// Default file / dir layout, relative to the working dir
	DEFAULT_CHARACTERS_FILE  = "characters.json"
	DEFAULT_LORA_CONFIG_FILE = "lora_config.json"
	DEFAULT_STORIES_DIR      = "stories"
	DEFAULT_IMAGES_DIR       = "images"
	DEFAULT_TRAINING_DIR     = "lora_training"
	DEFAULT_CONFIG_FILE      = "fableforge.toml"

	// Target display: Inky Impression e-ink panel
	DISPLAY_WIDTH  = 800
	DISPLAY_HEIGHT = 480

	// Story file timestamp, e.g. story_20251019_184004.json
	STORY_TIME_FORMAT = "20060102_150405"
)

const HELP_MODEL = `LLM model. It supports Gemini, OpenAI, OpenRouter, or any OpenAI API compatible model. ` +
	`Gemini model: "gemini-2.0-flash", "gemini-2.5-flash", "gemini-2.5-pro". ` +
	`OpenAI model: "gpt-5-mini", "gpt-5.1". ` +
	`OpenRouter model: "openrouter/<model-id>"; e.g. "openrouter/auto". ` +
	`Any OpenAI API compatible model: "openai/<model-name>/<api-url>". ` +
	`If not set, it uses ` + ENV_MODEL + ` env, then fallbacks to "` + DEFAULT_MODEL + `" by default`

const HELP_STORY_FLAG = `The story JSON file. If the value is a bare name (no path separator), ` +
	`it is resolved inside the stories dir`

const HELP_TEMPLATE_FLAG = `The Go text template string for the story instructions. ` +
	`If the value starts with "@", it (the rest part after @) is treated as a filename, ` +
	`which contents will be used as template. ` +
	`All sprout functions are supported, see https://github.com/go-sprout/sprout`
