package main

import (
	"fmt"
	"os"

	"github.com/Stellouuuuu/mojaloop-pension/internal/config"
	"github.com/Stellouuuuu/mojaloop-pension/internal/log"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(dialQueue)
}

func buildRootCmd(dial dialer) *cobra.Command {
	var envFiles []string

	rootCmd := &cobra.Command{
		Use:           "pensionctl",
		Short:         "Operate the pension batch store and ingestion ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before the environment")

	load := func() (*config.Config, error) {
		cfg := config.Load(envFiles...)
		log.Setup(cfg.LogLevel)

		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	rootCmd.AddCommand(ingestCmd(load, dial))
	rootCmd.AddCommand(ledgerCmd(load))
	rootCmd.AddCommand(migrateCmd(load))

	return rootCmd
}
