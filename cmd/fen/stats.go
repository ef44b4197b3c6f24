package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fenlang/fen"
)

var statsCmd = &cobra.Command{
	Use:   "stats <file>...",
	Short: "Index sources and print database statistics",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := fen.NewSession()
	if err != nil {
		return err
	}
	defer s.Close()

	for _, path := range args {
		if _, err := s.Reindex(path); err != nil {
			return err
		}
	}

	snap := s.Snapshot()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session:   %s\n", s.ID())
	fmt.Fprintf(out, "files:     %d\n", snap.Files)
	fmt.Fprintf(out, "fragments: %d\n", snap.FragmentsTotal)
	fmt.Fprintf(out, "edges:     %d\n", snap.Edges)
	fmt.Fprintf(out, "dirty:     %d\n", snap.DirtyCount)

	for _, id := range s.DB().DirtyFragments() {
		fmt.Fprintf(out, "  %s %s (%s)\n", id.Kind, id.Name, s.DB().FilePath(id.File))
	}
	return nil
}
