package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/dig"

	"github.com/mikey/mail-threat-classifier/internal/di"
)

var flags = di.CLIFlags{Output: os.Stdout}

var rootCmd = &cobra.Command{
	Use:   "threat-scan",
	Short: "Classify email as phishing, spam, suspicious or legitimate",
	Long: `threat-scan runs the threat classifier from the command line.

Messages are scored by the local rule engine and, when a provider is
configured, by a remote language model with local fallback.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.ConfigFile, "config", "c", "", "Path to config file")
	pf.StringVar(&flags.Provider, "provider", "", "Remote classifier (none, bedrock, gemini, openai)")
	pf.StringVar(&flags.APIKey, "api-key", "", "API key for gemini or openai")
	pf.StringVar(&flags.Model, "model", "", "Model name or Bedrock model ID")
	pf.StringVar(&flags.BaseURL, "base-url", "", "Base URL of an OpenAI compatible endpoint")
	pf.StringSliceVar(&flags.Whitelist, "whitelist", nil, "Additional trusted sender domains")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// withContainer builds the CLI container and invokes fn with it
func withContainer(fn any) error {
	container, err := di.BuildCLIContainer(&flags)
	if err != nil {
		return err
	}
	return dig.RootCause(container.Invoke(fn))
}
