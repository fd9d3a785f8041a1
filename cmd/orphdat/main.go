// Command orphdat maintains the long-term integrity of a personal
// photo/video archive: content-addressed hashing, a per-directory
// sidecar catalog, duplicate resolution, and a hidden trash area.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/whatsoevan/orphdat/internal/orphctx"
	"github.com/whatsoevan/orphdat/internal/resumelog"
	"github.com/whatsoevan/orphdat/internal/view"
)

// globalFlags backs the root command's persistent flags; every verb
// reads from this struct rather than pulling values back out of cobra.
type globalFlags struct {
	verbose     bool
	quiet       bool
	dryRun      bool
	orphdatName string
	trashName   string
	workers     int
	exiftool    string
	resumeDB    string
	resumeRun   string
}

func (g *globalFlags) config() orphctx.Config {
	cfg := orphctx.DefaultConfig()
	cfg.DryRun = g.dryRun
	if g.orphdatName != "" {
		cfg.OrphdatName = g.orphdatName
	}
	if g.trashName != "" {
		cfg.TrashName = g.trashName
	}
	if g.workers > 0 {
		cfg.Workers = g.workers
	}
	if g.exiftool != "" {
		cfg.ExifToolPath = g.exiftool
	}
	switch {
	case g.quiet:
		cfg.Verbosity = orphctx.Quiet
	case g.verbose:
		cfg.Verbosity = orphctx.Verbose
	default:
		cfg.Verbosity = orphctx.Normal
	}
	return cfg
}

func main() {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "orphdat",
		Short: "Integrity, deduplication, and trash management for a photo/video archive",
		Long: `orphdat keeps a personal photo/video archive honest over time:

- check-hash computes and caches a content hash per file in a hidden
  per-directory catalog
- verify-hash re-derives hashes and reports mismatches without writing
- find-dupe-files groups likely duplicates and walks an operator through
  resolving each group
- collect-trash/restore-trash/remove-empties manage a hidden trash area
- purge-md5 drops catalog entries for files that no longer exist
- append-metadata writes keyword/rating tags via exiftool`,
	}

	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress non-error output")
	root.PersistentFlags().BoolVar(&flags.dryRun, "dry-run", false, "report intended actions without changing anything")
	root.PersistentFlags().StringVar(&flags.orphdatName, "orphdat-name", "", "catalog filename (default .orphdat)")
	root.PersistentFlags().StringVar(&flags.trashName, "trash-name", "", "trash directory name (default .orphtrash)")
	root.PersistentFlags().IntVar(&flags.workers, "workers", 0, "hashing worker count (default: number of CPUs)")
	root.PersistentFlags().StringVar(&flags.exiftool, "exiftool", "", "path to the exiftool binary")
	root.PersistentFlags().StringVar(&flags.resumeDB, "resume-db", "", "session ledger path (default <first path>/.orphdat-resume.sqlite)")
	root.PersistentFlags().StringVar(&flags.resumeRun, "resume", "", "resume a previous run by its ID instead of starting fresh")

	root.AddCommand(
		newCheckHashCmd(flags),
		newVerifyHashCmd(flags),
		newFindDupeFilesCmd(flags),
		newCollectTrashCmd(flags),
		newRestoreTrashCmd(flags),
		newRemoveEmptiesCmd(flags),
		newPurgeMD5Cmd(flags),
		newAppendMetadataCmd(flags),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runContext bundles the pieces every verb needs: cancellation wired to
// SIGINT/SIGTERM, the shared orphctx.Context, a logger, and an optional
// session ledger for --resume.
type runContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	oc     *orphctx.Context
	logger *view.Logger
	ledger *resumelog.Log
	runID  string
}

// newRunContext wires up a verb's shared state: build a cancelable
// context tied to interrupt signals, then hand it down into the
// long-running routine.
func newRunContext(flags *globalFlags, paths []string) (*runContext, error) {
	ctx, cancel := context.WithCancel(context.Background())
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		color.New(color.FgRed, color.Bold).Println("\nInterrupted. Exiting cleanly.")
		cancel()
	}()

	cfg := flags.config()
	oc := orphctx.New(cfg)
	logger := view.NewLogger(cfg)

	rc := &runContext{ctx: ctx, cancel: cancel, oc: oc, logger: logger}

	dbPath := flags.resumeDB
	if dbPath == "" && len(paths) > 0 {
		dbPath = filepath.Join(paths[0], ".orphdat-resume.sqlite")
	}
	if dbPath != "" {
		ledger, err := resumelog.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open session ledger: %w", err)
		}
		rc.ledger = ledger
		if flags.resumeRun != "" {
			rc.runID = flags.resumeRun
		} else {
			rc.runID = resumelog.NewRunID()
		}
	}

	return rc, nil
}

func (rc *runContext) close() {
	if rc.ledger != nil {
		rc.ledger.Flush(rc.ctx)
		rc.ledger.Close()
	}
	rc.cancel()
}

// alreadyDone reports whether path was recorded done in a resumed run.
func (rc *runContext) alreadyDone(path string) bool {
	if rc.ledger == nil || rc.runID == "" {
		return false
	}
	return rc.ledger.Done(rc.runID, path)
}

func (rc *runContext) recordDone(rootPath, verb, path string, outcome resumelog.Outcome) {
	if rc.ledger == nil {
		return
	}
	rc.ledger.Record(resumelog.Entry{
		RunID: rc.runID, RootPath: rootPath, Verb: verb, Path: path,
		Outcome: outcome, Timestamp: time.Now(),
	})
}

func resolvePaths(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}
