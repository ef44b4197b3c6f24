// Package config loads project settings from fen.toml.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/fenlang/fen/internal/db"
)

// Config is the fen.toml schema. Zero values fall back to defaults, so an
// absent file and an empty file behave identically.
type Config struct {
	// OutputDir receives generated sources, one per input file per target.
	OutputDir string `toml:"output_dir"`

	// Targets lists the default targets when the CLI names none.
	Targets []string `toml:"targets"`

	// CachePath, when set, enables the persistent artifact cache.
	CachePath string `toml:"cache_path"`

	// Parallel enables the generation worker pool.
	Parallel bool `toml:"parallel"`

	// CHeaders switches the C target to split header/source output
	// (lib.h + lib.c) instead of a single self-contained .c file.
	CHeaders bool `toml:"c_headers"`
}

// Default returns the configuration used when no fen.toml exists.
func Default() *Config {
	return &Config{
		OutputDir: "out",
		Targets:   []string{string(db.TargetC)},
	}
}

// Load reads fen.toml from path. A missing file is not an error; defaults
// apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("load %s: unknown key %q", path, undec[0].String())
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "out"
	}
	if len(cfg.Targets) == 0 {
		cfg.Targets = []string{string(db.TargetC)}
	}
	return cfg, nil
}

// ParseTarget validates a target name.
func ParseTarget(name string) (db.Target, error) {
	switch db.Target(name) {
	case db.TargetC, db.TargetRust, db.TargetPython:
		return db.Target(name), nil
	}
	return "", fmt.Errorf("unknown target %q (want c, rust, or python)", name)
}

// ResolveTargets validates every configured or requested target name.
func ResolveTargets(names []string) ([]db.Target, error) {
	out := make([]db.Target, 0, len(names))
	for _, n := range names {
		t, err := ParseTarget(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
