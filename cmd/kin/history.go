package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/kin-core/internal/application/handlers"
)

func newHistoryCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show the audit trail of a person or relationship",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(format) {
				return fmt.Errorf("invalid format: %s (valid: %s)", format, strings.Join(validFormats, ", "))
			}

			ctx := cmd.Context()
			return withPersonHandler(func(handler *handlers.PersonHandler) error {
				entries, err := handler.HandleHistory(ctx, args[0])
				if err != nil {
					return fmt.Errorf("loading history: %w", err)
				}

				if format == formatJSON {
					return printJSON(entries)
				}

				if len(entries) == 0 {
					fmt.Printf("No history for %s\n", args[0])
					return nil
				}

				for _, e := range entries {
					details := ""
					if len(e.Details) > 0 {
						data, err := json.Marshal(e.Details)
						if err != nil {
							return fmt.Errorf("marshaling details: %w", err)
						}
						details = string(data)
					}
					fmt.Printf("%s  %-22s %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, details)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table, json")

	return cmd
}
