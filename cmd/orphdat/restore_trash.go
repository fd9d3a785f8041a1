package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/whatsoevan/orphdat/internal/store"
	"github.com/whatsoevan/orphdat/internal/trash"
)

// newRestoreTrashCmd builds restore-trash: move a path (or every file
// under a directory) that lives inside a `.orphtrash` directory back up
// one level, to where it sat before being trashed.
func newRestoreTrashCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore-trash <paths...>",
		Short: "Restore files out of .orphtrash back to their original location",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := newRunContext(flags, args)
			if err != nil {
				return err
			}
			defer rc.close()

			s := store.New(rc.oc)
			mgr := trash.New(s, rc.oc.Config.TrashName)

			for _, arg := range args {
				if err := restoreRecursive(mgr, arg); err != nil {
					return fmt.Errorf("restore-trash: %w", err)
				}
				rc.logger.Success("restored %s", arg)
			}
			return nil
		},
	}
	return cmd
}

// restoreRecursive restores path if it's a file, or every file directly
// under path (and its subdirectories) if path is itself a trash
// directory the operator named wholesale.
func restoreRecursive(mgr *trash.Manager, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return mgr.Restore(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		child := filepath.Join(path, e.Name())
		if e.IsDir() {
			if err := restoreRecursive(mgr, child); err != nil {
				return err
			}
			continue
		}
		if err := mgr.Restore(child); err != nil {
			return err
		}
	}
	return nil
}
