package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/matchrelay/server/internal/app"
	"github.com/matchrelay/server/internal/config"
)

func main() {
	log.SetFlags(0)

	cfg := &config.Config{}
	run := func(cmd *cobra.Command, args []string) error {
		return app.Run(cmd.Context(), cfg)
	}

	cobra.CheckErr(config.NewCommand(cfg, run).Execute())
}
