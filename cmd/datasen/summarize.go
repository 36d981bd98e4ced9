package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datasen-project/datasen/internal/config"
	"github.com/datasen-project/datasen/internal/dataset"
	"github.com/datasen-project/datasen/internal/prompt"
)

func newSummarizeCmd() *cobra.Command {
	var dataPath string

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Print the structural summary of a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			sum, err := dataset.Summarize(dataPath, dataset.Options{SampleSize: cfg.Dataset.SampleSize})
			if err != nil {
				return err
			}

			fmt.Println(prompt.RenderSummary(sum))
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "path to the CSV or JSON dataset (required)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}
