// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/kin-core/internal/domain/ports"
	"github.com/ersonp/kin-core/internal/infrastructure/config"
)

// DefaultRegister is the register created by init.
const DefaultRegister = "default"

// InitHandler handles workspace initialization.
type InitHandler struct {
	store ports.GraphStore
}

// NewInitHandler creates a new init handler. store is the graph store of the
// register being created.
func NewInitHandler(store ports.GraphStore) *InitHandler {
	return &InitHandler{
		store: store,
	}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath   string
	RegisterName string
	DatabasePath string
}

// Handle writes the default config, records the register and creates its schema.
func (h *InitHandler) Handle(ctx context.Context, basePath, registerName string) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("kin already initialized in %s", basePath)
	}

	if err := config.WriteDefault(basePath); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	if err := h.store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	regs, err := config.LoadRegisters(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading registers: %w", err)
	}
	regs.Add(registerName, config.RegisterEntry{Description: "Created by kin init"})
	if err := regs.Save(basePath); err != nil {
		return nil, fmt.Errorf("saving registers: %w", err)
	}

	return &InitResult{
		ConfigPath:   config.ConfigFilePath(basePath),
		RegisterName: registerName,
		DatabasePath: config.SQLitePathForRegister(basePath, registerName),
	}, nil
}
