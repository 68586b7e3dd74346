package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/kin-core/internal/application/handlers"
)

func newRelateCmd() *cobra.Command {
	var opts handlers.CreateOptions

	cmd := &cobra.Command{
		Use:   "relate <from-id> <type> <to-id>",
		Short: "Create a relationship between two people",
		Long: `Creates a relationship from one person to another and keeps the graph
consistent: the reciprocal edge is added and spouse or parent fields are
updated in the same transaction.

Known relationship types (any other type is stored as given):
  ` + strings.Join(handlers.KnownRelationTypes, ", ") + `

Examples:
  kin relate <alice-id> wife <bob-id>
  kin relate <bob-id> father <carol-id> --since 1990-04-01
  kin relate <alice-id> mentor <dave-id> --strength 0.8 --no-reciprocal`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelate(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoReciprocal, "no-reciprocal", false, "Do not create the reciprocal relationship")
	cmd.Flags().Float64Var(&opts.Strength, "strength", 0, "Relationship strength (0-1)")
	cmd.Flags().StringVar(&opts.Since, "since", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "Free-form description")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "Free-form notes")

	cmd.AddCommand(newRelateDeleteCmd())

	return cmd
}

func runRelate(cmd *cobra.Command, args []string, opts handlers.CreateOptions) error {
	ctx := cmd.Context()
	fromID := args[0]
	relType := args[1]
	toID := args[2]

	return withRelationshipHandler(func(handler *handlers.RelationshipHandler) error {
		rel, err := handler.HandleCreate(ctx, fromID, relType, toID, opts)
		if err != nil {
			return fmt.Errorf("creating relationship: %w", err)
		}

		fmt.Printf("Created relationship: %s\n", rel.ID)
		fmt.Printf("  %s -[%s]-> %s\n", rel.FromID, rel.Type, rel.ToID)
		if opts.NoReciprocal {
			fmt.Println("  (no reciprocal)")
		}

		return nil
	})
}

func newRelateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <relationship-id>",
		Short: "Delete a relationship",
		Long: `Deletes an existing relationship by its ID.
The reciprocal is removed too when graph.cascade_reciprocal_delete is enabled.`,
		Args: cobra.ExactArgs(1),
		RunE: runRelateDelete,
	}
}

func runRelateDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	relID := args[0]

	return withRelationshipHandler(func(handler *handlers.RelationshipHandler) error {
		if err := handler.HandleDelete(ctx, relID); err != nil {
			return fmt.Errorf("deleting relationship: %w", err)
		}

		fmt.Printf("Deleted relationship: %s\n", relID)
		return nil
	})
}
