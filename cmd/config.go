package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Never print credentials.
		redacted := *cfg
		if redacted.Anthropic.Key != "" {
			redacted.Anthropic.Key = "[redacted]"
		}

		out, err := yaml.Marshal(redacted)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
