package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/yaoapp/signals/config"
)

var envFile string
var logCloser io.Closer

var rootCmd = &cobra.Command{
	Use:           "sigbench",
	Short:         "Signal dispatch load generator",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			c, err := config.Load(envFile)
			if err != nil {
				return err
			}
			config.Conf = c
		}
		closer, err := config.Setup(config.Conf)
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFile, "env", "e", "", "Load configuration from this .env file")
	rootCmd.AddCommand(runCmd)
}
