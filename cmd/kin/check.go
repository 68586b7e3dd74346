package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/kin-core/internal/application/handlers"
	"github.com/ersonp/kin-core/internal/domain/services"
)

func newCheckCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report inconsistencies between people and relationships",
		Long: `Scans the register for drift between the spouse and parent fields of each
person and the relationship edges. Exits non-zero when violations are found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(format) {
				return fmt.Errorf("invalid format: %s (valid: %s)", format, strings.Join(validFormats, ", "))
			}

			ctx := cmd.Context()
			return withCheckHandler(func(handler *handlers.CheckHandler) error {
				report, err := handler.Handle(ctx)
				if err != nil {
					return fmt.Errorf("checking register: %w", err)
				}

				if format == formatJSON {
					if err := printJSON(report); err != nil {
						return err
					}
				} else {
					printCheckReport(report)
				}

				if !report.OK() {
					return fmt.Errorf("%d violations found", len(report.Violations))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table, json")

	return cmd
}

func printCheckReport(report *services.CheckReport) {
	fmt.Printf("Checked %d people and %d relationships.\n", report.Persons, report.Relationships)
	if report.OK() {
		fmt.Println("No violations found.")
		return
	}

	fmt.Printf("\nViolations (%d):\n", len(report.Violations))
	for _, v := range report.Violations {
		subject := v.PersonID
		if v.RelationshipID != "" {
			subject = v.RelationshipID
		}
		fmt.Printf("  %-20s %s  %s\n", v.Kind, subject, v.Message)
	}
}
