package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/kin-core/internal/application/handlers"
	"github.com/ersonp/kin-core/internal/domain/entities"
)

func newPeopleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "people",
		Aliases: []string{"person"},
		Short:   "Manage people in the register",
	}

	cmd.AddCommand(
		newPeopleAddCmd(),
		newPeopleListCmd(),
		newPeopleShowCmd(),
		newPeopleUpdateCmd(),
		newPeopleDeleteCmd(),
	)

	return cmd
}

func newPeopleAddCmd() *cobra.Command {
	var gender string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a person",
		Long: `Adds a person to the register and prints its id.

Examples:
  kin people add "Ada Lovelace" --gender female
  kin people add Charles -g male`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withPersonHandler(func(handler *handlers.PersonHandler) error {
				person, err := handler.HandleAdd(ctx, args[0], gender)
				if err != nil {
					return fmt.Errorf("adding person: %w", err)
				}
				fmt.Printf("Added %s (%s)\n", person.Name, person.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&gender, "gender", "g", "", "Gender: male, female, unspecified")

	return cmd
}

func newPeopleListCmd() *cobra.Command {
	var (
		limit  int
		offset int
		format string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List people",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(format) {
				return fmt.Errorf("invalid format: %s (valid: %s)", format, strings.Join(validFormats, ", "))
			}

			ctx := cmd.Context()
			return withPersonHandler(func(handler *handlers.PersonHandler) error {
				result, err := handler.HandleList(ctx, limit, offset)
				if err != nil {
					return fmt.Errorf("listing people: %w", err)
				}

				if format == formatJSON {
					return printJSON(result)
				}

				if len(result.Persons) == 0 {
					fmt.Println("No people found.")
					return nil
				}

				fmt.Printf("Showing %d of %d people:\n\n", len(result.Persons), result.Total)
				printPersonTable(result.Persons)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultListLimit, "Maximum number of people to display")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of people to skip")
	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table, json")

	return cmd
}

func newPeopleShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <person-id>",
		Short: "Show a person and their relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(format) {
				return fmt.Errorf("invalid format: %s (valid: %s)", format, strings.Join(validFormats, ", "))
			}

			ctx := cmd.Context()
			return withPersonHandler(func(handler *handlers.PersonHandler) error {
				detail, err := handler.HandleShow(ctx, args[0])
				if err != nil {
					return fmt.Errorf("showing person: %w", err)
				}

				if format == formatJSON {
					return printJSON(detail)
				}

				printPerson(detail.Person)
				if len(detail.Relationships) > 0 {
					fmt.Println()
					printRelationsTable(detail.Person.ID, detail.Relationships)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table, json")

	return cmd
}

type updateFlags struct {
	name   string
	gender string
	spouse string
	father string
	mother string
}

func newPeopleUpdateCmd() *cobra.Command {
	var flags updateFlags

	cmd := &cobra.Command{
		Use:   "update <person-id>",
		Short: "Update a person's fields",
		Long: `Updates the given fields and leaves the rest alone.
Passing an empty value to --spouse, --father or --mother clears it.
Changing --spouse also updates the old and new partners.

Examples:
  kin people update 3f2a... --name "Ada King"
  kin people update 3f2a... --spouse 9b1c...
  kin people update 3f2a... --father ""`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := handlers.UpdateOptions{
				Name:   changed(cmd, "name", flags.name),
				Gender: changed(cmd, "gender", flags.gender),
				Spouse: changed(cmd, "spouse", flags.spouse),
				Father: changed(cmd, "father", flags.father),
				Mother: changed(cmd, "mother", flags.mother),
			}

			ctx := cmd.Context()
			return withPersonHandler(func(handler *handlers.PersonHandler) error {
				person, err := handler.HandleUpdate(ctx, args[0], opts)
				if err != nil {
					return fmt.Errorf("updating person: %w", err)
				}
				fmt.Printf("Updated %s (%s)\n", person.Name, person.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.name, "name", "", "New name")
	cmd.Flags().StringVarP(&flags.gender, "gender", "g", "", "New gender: male, female, unspecified")
	cmd.Flags().StringVar(&flags.spouse, "spouse", "", "Spouse person id (empty to clear)")
	cmd.Flags().StringVar(&flags.father, "father", "", "Father person id (empty to clear)")
	cmd.Flags().StringVar(&flags.mother, "mother", "", "Mother person id (empty to clear)")

	return cmd
}

func newPeopleDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <person-id>",
		Short: "Delete a person and every relationship touching them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withPersonHandler(func(handler *handlers.PersonHandler) error {
				if err := handler.HandleDelete(ctx, args[0]); err != nil {
					return fmt.Errorf("deleting person: %w", err)
				}
				fmt.Printf("Deleted person: %s\n", args[0])
				return nil
			})
		},
	}
}

// changed returns a pointer to value if the flag was set on the command line.
func changed(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}

func printPersonTable(persons []*entities.Person) {
	fmt.Printf("%-36s  %-24s  %-11s  %s\n", "ID", "NAME", "GENDER", "SPOUSE")
	for _, p := range persons {
		fmt.Printf("%-36s  %-24s  %-11s  %s\n", p.ID, truncate(p.Name, 24), p.Gender, orDash(p.SpouseID))
	}
}

func printPerson(p *entities.Person) {
	fmt.Printf("ID:      %s\n", p.ID)
	fmt.Printf("Name:    %s\n", p.Name)
	fmt.Printf("Gender:  %s\n", p.Gender)
	fmt.Printf("Spouse:  %s\n", orDash(p.SpouseID))
	fmt.Printf("Father:  %s\n", orDash(p.FatherID))
	fmt.Printf("Mother:  %s\n", orDash(p.MotherID))
	fmt.Printf("Created: %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated: %s\n", p.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
