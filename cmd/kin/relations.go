package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/kin-core/internal/application/handlers"
	"github.com/ersonp/kin-core/internal/domain/entities"
)

type relationsFlags struct {
	relType string
	format  string
}

func newRelationsCmd() *cobra.Command {
	var flags relationsFlags

	cmd := &cobra.Command{
		Use:   "relations <person-id>",
		Short: "List relationships for a person",
		Long: `Shows all relationships where the person is either endpoint.

Examples:
  kin relations <alice-id>
  kin relations <alice-id> --type spouse
  kin relations <alice-id> --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelations(cmd, args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.relType, "type", "", "Filter by relationship type")
	cmd.Flags().StringVar(&flags.format, "format", formatTable, "Output format: table, json")

	return cmd
}

func runRelations(cmd *cobra.Command, args []string, flags relationsFlags) error {
	ctx := cmd.Context()
	personID := args[0]

	if !isValidFormat(flags.format) {
		return fmt.Errorf("invalid format: %s (valid: %s)", flags.format, strings.Join(validFormats, ", "))
	}

	return withRelationshipHandler(func(handler *handlers.RelationshipHandler) error {
		result, err := handler.HandleList(ctx, personID, handlers.ListOptions{Type: flags.relType})
		if err != nil {
			return fmt.Errorf("listing relationships: %w", err)
		}

		if flags.format == formatJSON {
			return printJSON(result)
		}

		if len(result.Relationships) == 0 {
			fmt.Printf("No relationships found for person: %s\n", personID)
			return nil
		}

		printRelationsTable(personID, result.Relationships)
		return nil
	})
}

// printRelationsTable prints one line per edge, marking whether the edge
// leaves or enters personID.
func printRelationsTable(personID string, rels []entities.Relationship) {
	fmt.Printf("Relationships for %s:\n", personID)
	fmt.Println(strings.Repeat("-", 60))

	for _, rel := range rels {
		direction, other := "->", rel.ToID
		if rel.ToID == personID && rel.FromID != personID {
			direction, other = "<-", rel.FromID
		}

		line := fmt.Sprintf("%s [%s] %s  (%s)", direction, rel.Type, other, rel.ID)
		if rel.ReciprocalSuppressed {
			line += " no-reciprocal"
		}
		fmt.Println(line)
	}
}
