package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rahul/stepwright/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stepwright",
	Short: "Turn unreliable model output into checked, executable tool plans",
	Long: `stepwright asks a language model which tools a request needs, repairs and
corrects whatever the model answers against the tool schema, and runs the
resulting plan step by step.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to the JSON config file")
	rootCmd.AddCommand(planCmd, runCmd, serveCmd, schemaCmd, historyCmd)
}

func commandConfig(cmd *cobra.Command) (*config.Config, error) {
	return loadConfig(configPath, cmd.Flags().Changed("config"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
