// PicoCast - Multi-voice metrics podcast generator
// License: MIT
//
// Copyright (c) 2026 PicoCast contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/picocast/cmd/picocast/internal"
	"github.com/sipeed/picocast/cmd/picocast/internal/generate"
	"github.com/sipeed/picocast/cmd/picocast/internal/history"
	"github.com/sipeed/picocast/cmd/picocast/internal/serve"
	"github.com/sipeed/picocast/cmd/picocast/internal/version"
)

func NewPicocastCommand() *cobra.Command {
	short := fmt.Sprintf("%s picocast - Multi-voice metrics podcast generator v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:           "picocast",
		Short:         short,
		Example:       "picocast generate -f metrics.json --turns 6 --minutes 3",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		generate.NewGenerateCommand(),
		serve.NewServeCommand(),
		history.NewHistoryCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewPicocastCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
