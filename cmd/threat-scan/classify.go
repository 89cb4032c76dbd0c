package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/adapters/filter"
	"github.com/mikey/mail-threat-classifier/internal/core"
)

var (
	subject     string
	sender      string
	content     string
	useExternal bool
	output      string
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file.eml]",
	Short: "Classify a single message",
	Long: `Classify a message read from an RFC 5322 file, from stdin, or from the
--subject, --sender and --content flags.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := readRequest(cmd, args)
		if err != nil {
			return err
		}
		return withContainer(func(cli *filter.CliFilter, logger *zap.Logger) error {
			defer logger.Sync()
			_, err := cli.ProcessEmail(cmd.Context(), req, useExternal, output)
			return err
		})
	},
}

func init() {
	classifyCmd.Flags().StringVar(&subject, "subject", "", "Message subject")
	classifyCmd.Flags().StringVar(&sender, "sender", "", "Sender address")
	classifyCmd.Flags().StringVar(&content, "content", "", "Message body")
	classifyCmd.Flags().BoolVar(&useExternal, "external", true, "Consult the remote classifier when configured")
	classifyCmd.Flags().StringVarP(&output, "output", "o", filter.FormatText, "Output format (text, json, yaml)")
}

func readRequest(cmd *cobra.Command, args []string) (*core.ClassificationRequest, error) {
	if len(args) == 0 && (cmd.Flags().Changed("subject") || cmd.Flags().Changed("sender") || cmd.Flags().Changed("content")) {
		return &core.ClassificationRequest{Subject: subject, Sender: sender, Content: content}, nil
	}

	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	parsed, err := filter.ParseMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email: %w", err)
	}
	req := parsed.Request(sender)
	if subject != "" {
		req.Subject = subject
	}
	return req, nil
}
