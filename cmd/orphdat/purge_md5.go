package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whatsoevan/orphdat/internal/store"
	"github.com/whatsoevan/orphdat/internal/walker"
)

// newPurgeMD5Cmd builds purge-md5: walk every catalog under paths and
// drop records whose file no longer stats on disk.
func newPurgeMD5Cmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-md5 [paths...]",
		Short: "Drop catalog records for files that no longer exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := resolvePaths(args)
			rc, err := newRunContext(flags, paths)
			if err != nil {
				return err
			}
			defer rc.close()

			s := store.New(rc.oc)
			total := 0
			err = walker.WalkPatterns(paths, walker.Visitor{
				OnDir: func(full, root string) {
					removed, err := s.PurgeMissing(full)
					if err != nil {
						rc.logger.Error("%s: %v", full, err)
						return
					}
					for _, name := range removed {
						rc.logger.Verbose("purged %s/%s", full, name)
					}
					total += len(removed)
				},
			})
			if err != nil {
				return fmt.Errorf("purge-md5: %w", err)
			}

			rc.logger.Success("purged %d stale records", total)
			return nil
		},
	}
}
