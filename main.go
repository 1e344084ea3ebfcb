package main

import (
	"github.com/awender/fableforge/cmd"
	_ "github.com/awender/fableforge/cmd/all"
)

func main() {
	cmd.Execute()
}
