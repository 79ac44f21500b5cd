// Package config loads the tunable limits and REPL presentation options that
// the rest of the Vela toolchain reads at startup.
//
// A Config is built from documented defaults, optionally overlaid with a
// vela.yaml file (via gopkg.in/yaml.v3), and is expected to be overlaid again
// by CLI flags afterward — this package only knows how to produce the base
// values, not how to merge in flags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VM holds the virtual machine's tunable capacities.
type VM struct {
	StackSize   int `yaml:"stack_size"`
	GlobalsSize int `yaml:"globals_size"`
	FrameSize   int `yaml:"frame_size"`
}

// REPL holds the interactive REPL's presentation options.
type REPL struct {
	NoColor bool `yaml:"no_color"`
	Debug   bool `yaml:"debug"`
}

// Config is the root configuration document.
type Config struct {
	VM   VM   `yaml:"vm"`
	REPL REPL `yaml:"repl"`
}

// Default returns the documented out-of-the-box configuration.
func Default() Config {
	return Config{
		VM: VM{
			StackSize:   2048,
			GlobalsSize: 65536,
			FrameSize:   1024,
		},
	}
}

// Load reads path and overlays its contents onto the documented defaults.
// A missing path is not an error: Load silently returns the defaults, since a
// vela.yaml in the working directory is optional.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied, not user input from a script
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
