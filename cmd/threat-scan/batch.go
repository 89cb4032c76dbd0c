package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/adapters/filter"
	"github.com/mikey/mail-threat-classifier/internal/batch"
	"github.com/mikey/mail-threat-classifier/internal/core"
)

var batchOutput string

var batchCmd = &cobra.Command{
	Use:   "batch file.json",
	Short: "Classify a batch of messages",
	Long: `Classify the messages in a JSON file, either an array of requests or an
object with an "items" array. Use - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		items, err := decodeBatch(data)
		if err != nil {
			return err
		}

		return withContainer(func(coord *batch.Coordinator, logger *zap.Logger) error {
			defer logger.Sync()
			res := coord.Process(cmd.Context(), items)
			if batchOutput == filter.FormatYAML {
				return filter.WriteYAML(flags.Output, res)
			}
			return filter.WriteJSON(flags.Output, res)
		})
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", filter.FormatJSON, "Output format (json, yaml)")
}

func decodeBatch(data []byte) ([]core.ClassificationRequest, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []core.ClassificationRequest
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to decode batch: %w", err)
		}
		return items, nil
	}

	var body struct {
		Items []core.ClassificationRequest `json:"items"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	if body.Items == nil {
		return nil, fmt.Errorf("batch has no items array")
	}
	return body.Items, nil
}
