// Package all registers every subcommand. Import it for side effects.
package all

import (
	_ "github.com/awender/fableforge/cmd/comfyui"
	_ "github.com/awender/fableforge/cmd/comfyui/pages"
	_ "github.com/awender/fableforge/cmd/images"
	_ "github.com/awender/fableforge/cmd/images/flux"
	_ "github.com/awender/fableforge/cmd/images/split"
	_ "github.com/awender/fableforge/cmd/prompts"
	_ "github.com/awender/fableforge/cmd/story"
	_ "github.com/awender/fableforge/cmd/train"
	_ "github.com/awender/fableforge/cmd/train/prepare"
	_ "github.com/awender/fableforge/cmd/train/start"
	_ "github.com/awender/fableforge/cmd/train/synth"
)
