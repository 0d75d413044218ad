package main

import (
	"github.com/signduel/cli/cmd"
	"github.com/signduel/cli/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
