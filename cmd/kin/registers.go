package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/kin-core/internal/domain/services"
	"github.com/ersonp/kin-core/internal/infrastructure/config"
)

func newRegistersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registers",
		Short: "Manage registers",
		Long:  "A register is an independent family graph with its own database.",
		RunE:  runRegistersList,
	}

	cmd.AddCommand(
		newRegistersListCmd(),
		newRegistersCreateCmd(),
		newRegistersDeleteCmd(),
	)

	return cmd
}

func newRegistersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all registers",
		RunE:  runRegistersList,
	}
}

func runRegistersList(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if !config.Exists(cwd) {
		return fmt.Errorf("kin not initialized in %s (run 'kin init')", cwd)
	}

	regs, err := config.LoadRegisters(cwd)
	if err != nil {
		return fmt.Errorf("loading registers: %w", err)
	}

	names := regs.Names()
	if len(names) == 0 {
		fmt.Println("No registers configured.")
		fmt.Println("Use 'kin registers create NAME' to create a register.")
		return nil
	}

	fmt.Printf("%-20s %s\n", "NAME", "DESCRIPTION")
	fmt.Printf("%-20s %s\n", "----", "-----------")

	for _, name := range names {
		fmt.Printf("%-20s %s\n", name, regs.Registers[name].Description)
	}

	return nil
}

func newRegistersCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new register",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			if err := createRegister(cmd.Context(), cwd, args[0], description); err != nil {
				return err
			}

			fmt.Printf("Created register %q at %s\n", args[0], config.SQLitePathForRegister(cwd, args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Register description")

	return cmd
}

func newRegistersDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a register and its database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			if err := deleteRegister(cmd.Context(), cwd, args[0], force); err != nil {
				return err
			}

			fmt.Printf("Deleted register %q\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete even if the register contains people")

	return cmd
}

// createRegister records a new register and creates its database.
func createRegister(ctx context.Context, basePath, name, description string) error {
	cfg, err := config.Load(basePath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	regs, err := config.LoadRegisters(basePath)
	if err != nil {
		return fmt.Errorf("loading registers: %w", err)
	}

	if regs.Exists(name) {
		return fmt.Errorf("register %q already exists", name)
	}

	dir := config.SanitizeRegisterName(name)
	for _, existing := range regs.Names() {
		if config.SanitizeRegisterName(existing) == dir {
			return fmt.Errorf("register %q would share a directory with %q", name, existing)
		}
	}

	store, err := openRegisterStore(ctx, basePath, name, cfg)
	if err != nil {
		return err
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("closing register database: %w", err)
	}

	regs.Add(name, config.RegisterEntry{Description: description})
	if err := regs.Save(basePath); err != nil {
		return fmt.Errorf("saving registers: %w", err)
	}

	return nil
}

// deleteRegister removes a register and its database directory. Without
// force it refuses to drop a register that still holds people.
func deleteRegister(ctx context.Context, basePath, name string, force bool) error {
	cfg, err := config.Load(basePath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	regs, err := config.LoadRegisters(basePath)
	if err != nil {
		return fmt.Errorf("loading registers: %w", err)
	}

	if _, err := regs.Get(name); err != nil {
		return err
	}

	if !force {
		count, err := countPersons(ctx, basePath, name, cfg)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("register %q contains %d people, use --force to delete", name, count)
		}
	}

	if err := os.RemoveAll(config.RegisterDir(basePath, name)); err != nil {
		return fmt.Errorf("removing register directory: %w", err)
	}

	regs.Remove(name)
	if err := regs.Save(basePath); err != nil {
		return fmt.Errorf("saving registers: %w", err)
	}

	return nil
}

func countPersons(ctx context.Context, basePath, name string, cfg *config.Config) (int, error) {
	store, err := openRegisterStore(ctx, basePath, name, cfg)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	return services.NewPersonService(store).Count(ctx)
}
