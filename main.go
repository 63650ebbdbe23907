package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/flowmux/ingestcore/cmd"
	"github.com/flowmux/ingestcore/utils"
)

func main() {
	defer func() {
		if r, stack := utils.PanicRecoverWithInfo(); r != nil {
			log.Error().Str("stack", stack).Any("error", r).Msg("panic recover")
		}
	}()
	exitCode := cmd.Execute()
	os.Exit(exitCode)
}
