package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/kin-core/internal/application/handlers"
	"github.com/ersonp/kin-core/internal/infrastructure/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new kin workspace",
		Long: `Creates a .kin directory with default configuration and a first register.
The register is named "default" unless --register is given.`,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if config.Exists(cwd) {
		return fmt.Errorf("kin already initialized in %s", cwd)
	}

	register := resolveRegister()
	store, err := openRegisterStore(ctx, cwd, register, config.Default())
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := handlers.NewInitHandler(store).Handle(ctx, cwd, register)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", result.ConfigPath)
	fmt.Printf("Created register %q at %s\n", result.RegisterName, result.DatabasePath)
	fmt.Println("Kin initialized successfully!")

	return nil
}
