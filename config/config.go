package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/awender/fableforge/constants"
)

// Config holds the file layout and service settings shared by all commands.
// Values come from fableforge.toml in the working dir (if present), with
// zero fields filled from defaults. Env variables (API keys, model) are read
// separately where needed.
type Config struct {
	CharactersFile string   `toml:"characters"`
	LoraConfigFile string   `toml:"lora_config"`
	StoriesDir     string   `toml:"stories_dir"`
	ImagesDir      string   `toml:"images_dir"`
	TrainingDir    string   `toml:"training_dir"`
	Model          string   `toml:"model"`
	ComfyuiServers []string `toml:"comfyui_servers"`
}

// Load reads fableforge.toml from the working dir. A missing file is not an
// error; a malformed one is.
func Load() (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(constants.DEFAULT_CONFIG_FILE)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CharactersFile == "" {
		c.CharactersFile = constants.DEFAULT_CHARACTERS_FILE
	}
	if c.LoraConfigFile == "" {
		c.LoraConfigFile = constants.DEFAULT_LORA_CONFIG_FILE
	}
	if c.StoriesDir == "" {
		c.StoriesDir = constants.DEFAULT_STORIES_DIR
	}
	if c.ImagesDir == "" {
		c.ImagesDir = constants.DEFAULT_IMAGES_DIR
	}
	if c.TrainingDir == "" {
		c.TrainingDir = constants.DEFAULT_TRAINING_DIR
	}
	if c.Model == "" {
		c.Model = GetDefaultModel()
	}
	if len(c.ComfyuiServers) == 0 {
		if url := os.Getenv(constants.ENV_COMFYUI_URL); url != "" {
			c.ComfyuiServers = []string{url}
		}
	}
}

// ResolveStoryPath resolves a --story flag value: bare names (no path
// separator) are looked up inside the stories dir, and the .json extension
// may be omitted.
func (c *Config) ResolveStoryPath(name string) string {
	if name == "" {
		return name
	}
	if !strings.ContainsAny(name, `/\`) {
		if !strings.HasSuffix(name, ".json") {
			name += ".json"
		}
		return filepath.Join(c.StoriesDir, name)
	}
	return name
}

// GetDefaultModel returns the default LLM model to use for story generation.
// It checks the FABLEFORGE_MODEL environment variable first, then falls back
// to constants.DEFAULT_MODEL.
func GetDefaultModel() string {
	model := os.Getenv(constants.ENV_MODEL)
	if model == "" {
		model = constants.DEFAULT_MODEL
	}
	return model
}
