package main

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "datasen",
		Short:         "DataSen: ask questions about your CSV/JSON data",
		Long:          "datasen loads a tabular dataset, summarizes its structure, and answers questions about it through a language-model backend while keeping a bounded conversation memory.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newChatCmd(),
		newSummarizeCmd(),
	)

	return rootCmd
}
