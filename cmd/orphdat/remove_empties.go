package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whatsoevan/orphdat/internal/walker"
)

// newRemoveEmptiesCmd builds remove-empties: a post-order walk that
// rmdirs directories left empty after trashing. A directory counts as
// empty once its own catalog file, if present, has already been removed
// along with its last record (internal/store never writes an empty
// catalog, so an empty ReadDir is sufficient).
func newRemoveEmptiesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-empties [paths...]",
		Short: "Remove directories left empty after trashing",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := resolvePaths(args)
			rc, err := newRunContext(flags, paths)
			if err != nil {
				return err
			}
			defer rc.close()

			removed := 0
			err = walker.WalkPatterns(paths, walker.Visitor{
				OnDir: func(full, root string) {
					if full == root {
						return
					}
					entries, err := os.ReadDir(full)
					if err != nil || len(entries) > 0 {
						return
					}
					if err := os.Remove(full); err == nil {
						removed++
						rc.logger.Verbose("removed empty directory %s", full)
					}
				},
			})
			if err != nil {
				return fmt.Errorf("remove-empties: %w", err)
			}

			rc.logger.Success("removed %d empty directories", removed)
			return nil
		},
	}
}
