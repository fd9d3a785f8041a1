package main

import (
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/whatsoevan/orphdat/internal/report"
	"github.com/whatsoevan/orphdat/internal/resumelog"
	"github.com/whatsoevan/orphdat/internal/store"
	"github.com/whatsoevan/orphdat/internal/view"
	"github.com/whatsoevan/orphdat/internal/walker"
)

// newCheckHashCmd builds the check-hash verb: walk every path, resolving
// (computing and caching) a hash record for each file. Mirrors the
// teacher's two-phase backup() shape: a cheap planning walk that
// collects candidate files, followed by the hashing pass itself.
func newCheckHashCmd(flags *globalFlags) *cobra.Command {
	var reportPath string

	cmd := &cobra.Command{
		Use:   "check-hash [paths...]",
		Short: "Compute and cache a content hash for every file under paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := resolvePaths(args)
			rc, err := newRunContext(flags, paths)
			if err != nil {
				return err
			}
			defer rc.close()

			rc.logger.Banner()

			var allFiles []string
			if err := walker.WalkPatterns(paths, walker.Visitor{
				OnFile: func(full, root string) {
					allFiles = append(allFiles, full)
				},
			}); err != nil {
				return fmt.Errorf("check-hash: walk: %w", err)
			}

			files := allFiles[:0:0]
			skipped := 0
			for _, f := range allFiles {
				if rc.alreadyDone(f) {
					skipped++
					continue
				}
				files = append(files, f)
			}
			if skipped > 0 {
				rc.logger.Info("resume: skipping %d file(s) already recorded done", skipped)
			}

			s := store.New(rc.oc)
			summary := report.Summary{Verb: "check-hash"}
			if len(paths) > 0 {
				summary.Root = paths[0]
			}

			bar := progressbar.NewOptions(len(files),
				progressbar.OptionSetDescription("Hashing"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetWidth(20),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionSetElapsedTime(true),
				progressbar.OptionClearOnFinish(),
			)

			results := walker.HashAll(rc.ctx, s, files, rc.oc.Config.Workers, func() { bar.Add(1) })
			for _, res := range results {
				if res.Err != nil {
					var inv *store.InvariantViolation
					if errors.As(res.Err, &inv) {
						rc.logger.Error("invariant violation for %s: stored md5=%s (v%d) vs computed md5=%s (v%d), full_md5 matches but content hash differs",
							inv.Path, inv.OnDisk.MD5, inv.OnDisk.Version, inv.Computed.MD5, inv.Computed.Version)
						return fmt.Errorf("check-hash: aborting: %w", inv)
					}

					var conflict *store.Conflict
					if errors.As(res.Err, &conflict) {
						rc.logger.Warn(conflict.Error())
						switch resolveHashConflict(conflict) {
						case "overwrite":
							if err := s.Write(conflict.Path, &conflict.Computed); err != nil {
								rc.logger.Error("overwrite %s: %v", conflict.Path, err)
								summary.Actions = append(summary.Actions, report.Action{Path: res.Path, Kind: report.ActionError, Detail: err.Error()})
								rc.recordDone(summary.Root, "check-hash", res.Path, resumelog.OutcomeFailed)
								continue
							}
							summary.Actions = append(summary.Actions, report.Action{Path: res.Path, Kind: report.ActionHashed, Size: conflict.Computed.Size})
							rc.recordDone(summary.Root, "check-hash", res.Path, resumelog.OutcomeDone)
						case "ignore":
							summary.Actions = append(summary.Actions, report.Action{Path: res.Path, Kind: report.ActionHashed, Size: conflict.Computed.Size, Detail: "conflict ignored, catalog left untouched"})
							rc.recordDone(summary.Root, "check-hash", res.Path, resumelog.OutcomeDone)
						case "quit":
							return fmt.Errorf("check-hash: stopped at operator's request at %s", conflict.Path)
						default: // "skip"
							summary.Actions = append(summary.Actions, report.Action{Path: res.Path, Kind: report.ActionError, Detail: "skipped: " + conflict.Error()})
							rc.recordDone(summary.Root, "check-hash", res.Path, resumelog.OutcomeFailed)
						}
						continue
					}

					rc.logger.Error("%s: %v", res.Path, res.Err)
					summary.Actions = append(summary.Actions, report.Action{Path: res.Path, Kind: report.ActionError, Detail: res.Err.Error()})
					rc.recordDone(summary.Root, "check-hash", res.Path, resumelog.OutcomeFailed)
					continue
				}
				summary.Actions = append(summary.Actions, report.Action{Path: res.Path, Kind: report.ActionHashed, Size: res.Record.Size})
				rc.recordDone(summary.Root, "check-hash", res.Path, resumelog.OutcomeDone)
			}

			rc.logger.Success("hashed %d files", len(files))

			if reportPath != "" {
				if err := report.Write(reportPath, summary); err != nil {
					return fmt.Errorf("check-hash: write report: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "write an HTML session report to this path")
	return cmd
}

// resolveHashConflict prompts the operator to decide what to do about a
// stored-vs-computed md5 mismatch, returning one of
// "ignore"/"overwrite"/"skip"/"quit".
func resolveHashConflict(conflict *store.Conflict) string {
	_, choice := view.Select(fmt.Sprintf("resolve hash conflict for %s", conflict.Path),
		[]string{"ignore", "overwrite", "skip", "quit"})
	return choice
}
