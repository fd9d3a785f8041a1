package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whatsoevan/orphdat/internal/diskspace"
	"github.com/whatsoevan/orphdat/internal/store"
	"github.com/whatsoevan/orphdat/internal/trash"
	"github.com/whatsoevan/orphdat/internal/view"
)

// lowSpaceThreshold warns an operator before collect-trash relocates a
// potentially large number of files onto a destination that's nearly full.
const lowSpaceThreshold = 100 * 1024 * 1024

// newCollectTrashCmd builds collect-trash: hoist every scattered
// `.orphtrash` directory under root into one top-level trash.
func newCollectTrashCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "collect-trash [root]",
		Short: "Hoist scattered .orphtrash directories into one top-level trash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			rc, err := newRunContext(flags, []string{root})
			if err != nil {
				return err
			}
			defer rc.close()

			if free, err := diskspace.Available(root); err == nil && free < lowSpaceThreshold {
				rc.logger.Warn("only %s free at %s; collect-trash moves files within the same filesystem but still needs headroom for directory metadata", view.HumanSize(int64(free)), root)
			}

			s := store.New(rc.oc)
			mgr := trash.New(s, rc.oc.Config.TrashName)
			if err := trash.CollectTrash(mgr, root); err != nil {
				return fmt.Errorf("collect-trash: %w", err)
			}
			rc.logger.Success("collected scattered trash under %s", root)
			return nil
		},
	}
}
