// azruntime - how long have your Azure VMs been running?
// Inventory. Rank. Print.
package main

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	Execute()
}

// setupLogging points the global logger at w (stderr in practice; stdout
// carries the report).
func setupLogging(w io.Writer, level string, debug bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	if debug {
		lvl = zerolog.DebugLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
	return nil
}
