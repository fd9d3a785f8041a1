package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/whatsoevan/orphdat/internal/dupe"
	"github.com/whatsoevan/orphdat/internal/metadata"
	"github.com/whatsoevan/orphdat/internal/report"
	"github.com/whatsoevan/orphdat/internal/resumelog"
	"github.com/whatsoevan/orphdat/internal/store"
	"github.com/whatsoevan/orphdat/internal/trash"
)

// newFindDupeFilesCmd builds find-dupe-files: group candidate
// duplicates (by content hash, or by name+date with --by-name) and walk
// the operator through resolving each group interactively.
func newFindDupeFilesCmd(flags *globalFlags) *cobra.Command {
	var byName bool
	var reportPath string
	var autoOnly bool

	cmd := &cobra.Command{
		Use:   "find-dupe-files [paths...]",
		Short: "Find and interactively resolve duplicate files",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := resolvePaths(args)
			rc, err := newRunContext(flags, paths)
			if err != nil {
				return err
			}
			defer rc.close()

			s := store.New(rc.oc)
			mgr := trash.New(s, rc.oc.Config.TrashName)
			extractor := metadata.New(rc.oc.Config.ExifToolPath)
			populator := dupe.Populator{Store: s, Metadata: extractor}

			rc.logger.Info("scanning for duplicates...")

			var groups []*dupe.Group
			if byName {
				groups, err = dupe.GroupByName(paths, populator)
			} else {
				groups, err = dupe.GroupByHash(paths, populator)
			}
			if err != nil {
				return fmt.Errorf("find-dupe-files: %w", err)
			}

			rc.logger.Info("found %d group(s) of likely duplicates", len(groups))

			summary := report.Summary{Verb: "find-dupe-files"}
			if len(paths) > 0 {
				summary.Root = paths[0]
			}

			bar := progressbar.NewOptions(len(groups),
				progressbar.OptionSetDescription("Resolving"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			session := &dupe.Session{Trash: mgr, Store: s, Metadata: extractor, Logger: rc.logger}
			reader := bufio.NewReader(os.Stdin)
			readLine := func(prompt string) string {
				fmt.Print(prompt)
				line, _ := reader.ReadString('\n')
				return line
			}

			skipped := 0
			for _, g := range groups {
				if groupAlreadyDone(rc, g) {
					skipped++
					bar.Add(1)
					continue
				}

				if autoOnly {
					applyAutoOnly(mgr, rc, g, &summary)
					bar.Add(1)
					continue
				}

				outcome := session.Run(g, readLine)
				for _, p := range outcome.Trashed {
					summary.Actions = append(summary.Actions, report.Action{Path: p, Kind: report.ActionTrashed, Detail: "duplicate"})
					rc.recordDone(summary.Root, "find-dupe-files", p, resumelog.OutcomeDone)
				}
				for _, p := range outcome.Kept {
					summary.Actions = append(summary.Actions, report.Action{Path: p, Kind: report.ActionDuplicate, Detail: "kept"})
					rc.recordDone(summary.Root, "find-dupe-files", p, resumelog.OutcomeDone)
				}
				bar.Add(1)
				if outcome.Quit {
					break
				}
			}
			if skipped > 0 {
				rc.logger.Info("resume: skipping %d group(s) already resolved", skipped)
			}

			if reportPath != "" {
				if err := report.Write(reportPath, summary); err != nil {
					return fmt.Errorf("find-dupe-files: write report: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&byName, "by-name", false, "group by filename+capture-date heuristic instead of content hash")
	cmd.Flags().StringVar(&reportPath, "report", "", "write an HTML session report to this path")
	cmd.Flags().BoolVar(&autoOnly, "auto", false, "apply the auto-action plan without an interactive prompt per group")

	return cmd
}

// groupAlreadyDone reports whether every entry in g was already recorded
// done in a resumed run, so a resumed find-dupe-files session doesn't
// walk the operator back through groups it already resolved.
func groupAlreadyDone(rc *runContext, g *dupe.Group) bool {
	for _, e := range g.Entries {
		if !rc.alreadyDone(e.Path) {
			return false
		}
	}
	return true
}

// applyAutoOnly trashes exactly what dupe.AutoPlan recommends for g,
// without any operator interaction, for --auto batch runs.
func applyAutoOnly(mgr *trash.Manager, rc *runContext, g *dupe.Group, summary *report.Summary) {
	plan := dupe.AutoPlan(g)
	for i, entry := range g.Entries {
		switch plan.Actions[i] {
		case dupe.ActionTrash:
			if err := mgr.Trash(entry.Path); err != nil {
				rc.logger.Error("trash %s: %v", entry.Path, err)
				summary.Actions = append(summary.Actions, report.Action{Path: entry.Path, Kind: report.ActionError, Detail: err.Error()})
				rc.recordDone(summary.Root, "find-dupe-files", entry.Path, resumelog.OutcomeFailed)
				continue
			}
			summary.Actions = append(summary.Actions, report.Action{Path: entry.Path, Kind: report.ActionTrashed, Detail: plan.Reason[i]})
			rc.recordDone(summary.Root, "find-dupe-files", entry.Path, resumelog.OutcomeDone)
		case dupe.ActionKeep:
			summary.Actions = append(summary.Actions, report.Action{Path: entry.Path, Kind: report.ActionDuplicate, Detail: plan.Reason[i]})
			rc.recordDone(summary.Root, "find-dupe-files", entry.Path, resumelog.OutcomeDone)
		}
	}
}
