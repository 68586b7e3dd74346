package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RegistersConfig holds the named family registers (read/write).
type RegistersConfig struct {
	Registers map[string]RegisterEntry `yaml:"registers,omitempty"`
}

// RegisterEntry holds configuration for a specific register.
type RegisterEntry struct {
	Description string `yaml:"description,omitempty"`
}

// LoadRegisters loads register configuration from the .kin directory.
func LoadRegisters(basePath string) (*RegistersConfig, error) {
	data, err := os.ReadFile(RegistersFilePath(basePath))
	if os.IsNotExist(err) {
		// Return empty config if file doesn't exist
		return &RegistersConfig{
			Registers: make(map[string]RegisterEntry),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registers file: %w", err)
	}

	var cfg RegistersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing registers file: %w", err)
	}

	if cfg.Registers == nil {
		cfg.Registers = make(map[string]RegisterEntry)
	}

	return &cfg, nil
}

// Save writes the register configuration to the registers file.
func (r *RegistersConfig) Save(basePath string) error {
	configDir := ConfigDir(basePath)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling registers config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, DefaultRegistersFile), data, 0600); err != nil {
		return fmt.Errorf("writing registers file: %w", err)
	}

	return nil
}

// Add adds a register to the configuration.
func (r *RegistersConfig) Add(name string, entry RegisterEntry) {
	if r.Registers == nil {
		r.Registers = make(map[string]RegisterEntry)
	}
	r.Registers[name] = entry
}

// Remove removes a register from the configuration.
func (r *RegistersConfig) Remove(name string) {
	if r.Registers != nil {
		delete(r.Registers, name)
	}
}

// Names returns the register names in sorted order.
func (r *RegistersConfig) Names() []string {
	names := make([]string, 0, len(r.Registers))
	for name := range r.Registers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the configuration for a specific register.
func (r *RegistersConfig) Get(name string) (*RegisterEntry, error) {
	if len(r.Registers) == 0 {
		return nil, errors.New("no registers configured")
	}

	entry, ok := r.Registers[name]
	if !ok {
		names := r.Names()
		if len(names) > 5 {
			names = append(names[:5], "...")
		}
		return nil, fmt.Errorf("register %q not found (available: %s)", name, strings.Join(names, ", "))
	}

	return &entry, nil
}

// Exists checks if a register exists in the configuration.
func (r *RegistersConfig) Exists(name string) bool {
	if r.Registers == nil {
		return false
	}
	_, ok := r.Registers[name]
	return ok
}
