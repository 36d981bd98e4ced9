package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datasen-project/datasen/internal/backend"
	"github.com/datasen-project/datasen/internal/config"
	"github.com/datasen-project/datasen/internal/dataset"
	"github.com/datasen-project/datasen/internal/prompt"
	"github.com/datasen-project/datasen/internal/session"
)

func newChatCmd() *cobra.Command {
	var dataPath string
	var mock bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive question/answer loop over a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if mock {
				cfg.Model.Provider = "mock"
			}

			sum, err := dataset.Summarize(dataPath, dataset.Options{SampleSize: cfg.Dataset.SampleSize})
			if err != nil {
				return err
			}

			manager := session.NewManager(session.ManagerOptions{
				Assembler: prompt.NewAssembler(cfg.Context.MaxSize),
				Invoker:   newInvoker(cfg.Model),
				MaxTurns:  cfg.Memory.MaxTurns,
			})
			s := manager.Create(sum)

			fmt.Printf("Loaded %s: %d rows, %d columns.\n", sum.Source, sum.RowCount, len(sum.Columns))
			fmt.Println("Ask a question, or type 'help' or 'exit'.")

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("\n> ")
				if !scanner.Scan() {
					fmt.Println()
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch strings.ToLower(line) {
				case "":
					continue
				case "exit", "quit":
					return nil
				case "help":
					printChatHelp()
					continue
				}

				answer, err := s.Ask(cmd.Context(), line)
				if err != nil {
					var sessErr *session.SessionError
					if errors.As(err, &sessErr) {
						fmt.Fprintf(os.Stderr, "error: %v\n", sessErr.Err)
						continue
					}
					return err
				}
				fmt.Printf("\n%s\n", answer)
			}
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "path to the CSV or JSON dataset (required)")
	cmd.Flags().BoolVar(&mock, "mock", false, "use the mock model backend")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newInvoker(cfg config.ModelConfig) backend.Invoker {
	if cfg.Provider == "mock" {
		return backend.NewMock()
	}
	return backend.NewOpenAI(backend.OpenAIOptions{
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Model:    cfg.Name,
		Timeout:  cfg.Timeout,
	})
}

func printChatHelp() {
	fmt.Println("Commands:")
	fmt.Println("  exit  quit the chat")
	fmt.Println("  help  show this message")
	fmt.Println("Example questions:")
	fmt.Println("  What are the main trends in this dataset?")
	fmt.Println("  Show me a summary of the numerical columns")
	fmt.Println("  Which columns have missing values?")
}
