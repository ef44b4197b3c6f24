package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/fenlang/fen"
	"github.com/fenlang/fen/internal/config"
	"github.com/fenlang/fen/internal/trans"
)

var (
	flagTargets  []string
	flagOutDir   string
	flagCache    string
	flagParallel bool
	flagWatch    bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <file>...",
	Short: "Compile Fen sources incrementally",
	Long:  "Indexes the given .fen files and writes generated sources to the output directory. With --watch, recompiles on every save.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().StringSliceVarP(&flagTargets, "target", "t", nil, "target language: c, rust, python (repeatable; default from fen.toml)")
	compileCmd.Flags().StringVarP(&flagOutDir, "out", "o", "", "output directory (default from fen.toml)")
	compileCmd.Flags().StringVar(&flagCache, "cache", "", "persistent artifact cache path (default from fen.toml)")
	compileCmd.Flags().BoolVar(&flagParallel, "parallel", false, "generate fragments on a worker pool")
	compileCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "watch sources and recompile on change")
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagOutDir != "" {
		cfg.OutputDir = flagOutDir
	}
	if flagCache != "" {
		cfg.CachePath = flagCache
	}
	if flagParallel {
		cfg.Parallel = true
	}
	names := cfg.Targets
	if len(flagTargets) > 0 {
		names = flagTargets
	}
	targets, err := config.ResolveTargets(names)
	if err != nil {
		return err
	}

	opts := []fen.Option{fen.WithParallel(cfg.Parallel)}
	if cfg.CachePath != "" {
		opts = append(opts, fen.WithArtifactCache(cfg.CachePath))
	}
	s, err := fen.NewSession(opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", cfg.OutputDir, err)
	}

	compileAll := func() error {
		start := time.Now()
		for _, path := range args {
			for _, target := range targets {
				if err := compileOne(cmd.Context(), s, path, target, cfg); err != nil {
					return err
				}
			}
		}
		st := s.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "compiled %d file(s) in %s (generated %d, cache hits %d, warm hits %d)\n",
			len(args), time.Since(start).Round(time.Millisecond), st.Generated, st.CacheHits, st.WarmHits)
		return nil
	}

	if err := compileAll(); err != nil && !flagWatch {
		return err
	} else if err != nil {
		// In watch mode a broken file is a state to recover from, not a
		// reason to exit.
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}

	if !flagWatch {
		return nil
	}
	return watch(cmd.Context(), args, func() {
		if err := compileAll(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
	})
}

func compileOne(ctx context.Context, s *fen.Session, path string, target fen.Target, cfg *config.Config) error {
	res, err := s.Compile(ctx, path, target)
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if target == fen.TargetC && cfg.CHeaders {
		fileID, ok := s.DB().FileByPath(path)
		if !ok {
			return fmt.Errorf("unknown file %s", path)
		}
		code, header := trans.AssembleSplit(s.DB(), fileID, res, base+".h")
		if err := os.WriteFile(filepath.Join(cfg.OutputDir, base+".h"), []byte(header), 0o644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(cfg.OutputDir, base+".c"), []byte(code), 0o644)
	}

	code, err := s.Assemble(path, target, res)
	if err != nil {
		return err
	}
	outPath := filepath.Join(cfg.OutputDir, base+trans.Ext(target))
	return os.WriteFile(outPath, []byte(code), 0o644)
}

// watch recompiles on every write to the given files until ctx is done.
func watch(ctx context.Context, paths []string, recompile func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	// Watch directories, not files: editors that rename-on-save would
	// otherwise drop the watch after the first write.
	dirs := make(map[string]bool)
	watched := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	// Debounce: editors fire several events per save.
	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(ev.Name)
			if !watched[abs] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			recompile()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %s\n", err)
		}
	}
}
