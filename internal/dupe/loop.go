package dupe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/whatsoevan/orphdat/internal/metadata"
	"github.com/whatsoevan/orphdat/internal/store"
	"github.com/whatsoevan/orphdat/internal/trash"
	"github.com/whatsoevan/orphdat/internal/view"
)

// Session drives the interactive per-group triage loop: list candidates
// and their auto-action suggestion, accept
// single-letter commands to trash/show/reveal/merge-metadata entries, and
// fall through on an empty line by replaying the previous command.
type Session struct {
	Trash    *trash.Manager
	Store    *store.Store
	Metadata metadata.Extractor
	Logger   *view.Logger

	lastCommand string
}

// Outcome summarizes what happened to a group after Run returns.
type Outcome struct {
	Trashed []string
	Kept    []string
	Quit    bool
}

// Run drives g's loop to completion (or until the operator quits),
// returning which paths were trashed/kept. readLine is injected so tests
// can script a sequence of commands instead of reading a real terminal.
func (s *Session) Run(g *Group, readLine func(prompt string) string) Outcome {
	plan := AutoPlan(g)
	var out Outcome

	for {
		live := liveIndices(g)
		if len(live) < 2 {
			for _, i := range live {
				out.Kept = append(out.Kept, g.Entries[i].Path)
			}
			return out
		}

		if quit := s.resolveConflicts(g, live); quit {
			out.Quit = true
			return out
		}

		s.printGroup(g, plan, live)
		line := strings.TrimSpace(readLine("dupe> "))
		if line == "" {
			line = s.lastCommand
		} else {
			s.lastCommand = line
		}

		switch {
		case line == "":
			// Nothing to replay yet; re-show the prompt.
			continue
		case line == "?":
			s.printHelp()
		case line == "q":
			out.Quit = true
			return out
		case line == "c":
			for _, i := range live {
				if plan.Actions[i] == ActionTrash {
					if err := s.trashEntry(g.Entries[i].Path); err != nil {
						s.Logger.Error("trash %s: %v", g.Entries[i].Path, err)
						plan.Actions[i] = ActionNone
						continue
					}
					out.Trashed = append(out.Trashed, g.Entries[i].Path)
				}
			}
			for _, i := range live {
				if plan.Actions[i] != ActionTrash {
					out.Kept = append(out.Kept, g.Entries[i].Path)
				}
			}
			return out
		case line == "d":
			s.printDiff(g, live)
		case strings.HasPrefix(line, "t"):
			idx, err := parseEntryIndex(line[1:])
			if err != nil || !indexLive(live, idx) {
				s.Logger.Warn("invalid index %q", line)
				continue
			}
			if err := s.trashEntry(g.Entries[idx].Path); err != nil {
				s.Logger.Error("trash %s: %v", g.Entries[idx].Path, err)
				continue
			}
			out.Trashed = append(out.Trashed, g.Entries[idx].Path)
			plan.Actions[idx] = ActionNone
			g.Entries[idx].Exists = false
		case strings.HasPrefix(line, "o"):
			idx, err := parseEntryIndex(line[1:])
			if err != nil || !indexLive(live, idx) {
				s.Logger.Warn("invalid index %q", line)
				continue
			}
			s.Logger.Info("open %s (not wired to an OS file-open call in this environment)", g.Entries[idx].Path)
		case strings.HasPrefix(line, "f"):
			idx, err := parseEntryIndex(line[1:])
			if err != nil || !indexLive(live, idx) {
				s.Logger.Warn("invalid index %q", line)
				continue
			}
			if !view.RevealInFolder(g.Entries[idx].Path) {
				s.Logger.Info("%s", g.Entries[idx].Path)
			}
		case strings.HasPrefix(line, "m"):
			indices, err := parseIndexList(line[1:])
			if err != nil || len(indices) < 2 {
				s.Logger.Warn("m needs two or more comma-separated indices")
				continue
			}
			valid := true
			for _, idx := range indices {
				if !indexLive(live, idx) {
					s.Logger.Warn("invalid index in merge list: %d", idx+1)
					valid = false
				}
			}
			if !valid {
				continue
			}
			if err := s.mergeMetadata(g, indices); err != nil {
				s.Logger.Error("merge metadata: %v", err)
				continue
			}
			s.Logger.Info("merged metadata into %s", g.Entries[indices[0]].Path)
		default:
			s.Logger.Warn("unrecognized command %q, try '?'", line)
		}
	}
}

func liveIndices(g *Group) []int {
	var live []int
	for i, e := range g.Entries {
		if e.Exists {
			live = append(live, i)
		}
	}
	return live
}

func indexLive(live []int, idx int) bool {
	for _, i := range live {
		if i == idx {
			return true
		}
	}
	return false
}

func (s *Session) trashEntry(path string) error {
	return s.Trash.Trash(path)
}

// mergeMetadata reads tags from every listed entry and writes their union
// into the first one, later entries winning a key collision.
func (s *Session) mergeMetadata(g *Group, indices []int) error {
	if s.Metadata == nil {
		return fmt.Errorf("dupe: no metadata extractor configured for this session")
	}

	merged := metadata.Tags{}
	for _, idx := range indices {
		tags, err := s.Metadata.ReadTags(g.Entries[idx].Path)
		if err != nil {
			s.Logger.Warn("read tags from %s: %v", g.Entries[idx].Path, err)
			continue
		}
		for k, v := range tags {
			if v == "" {
				continue
			}
			merged[k] = v
		}
	}

	target := g.Entries[indices[0]].Path
	return s.Metadata.WriteTags(target, merged)
}

// resolveConflicts scans live for an entry whose populator Resolve call
// surfaced a *store.Conflict or *store.InvariantViolation. An invariant
// violation aborts the whole session with a diagnostic; a conflict is
// handed to the operator as an ignore/overwrite/skip/quit decision.
// Reports true if the operator (or the violation) ends the session.
func (s *Session) resolveConflicts(g *Group, live []int) bool {
	for _, i := range live {
		e := &g.Entries[i]
		if e.Err == nil {
			continue
		}

		var inv *store.InvariantViolation
		if errors.As(e.Err, &inv) {
			s.Logger.Error("invariant violation for %s: stored md5=%s (v%d) vs computed md5=%s (v%d), full_md5 matches but content hash differs",
				e.Path, inv.OnDisk.MD5, inv.OnDisk.Version, inv.Computed.MD5, inv.Computed.Version)
			return true
		}

		var conflict *store.Conflict
		if errors.As(e.Err, &conflict) {
			switch s.promptConflict(conflict) {
			case "overwrite":
				if s.Store == nil {
					s.Logger.Error("cannot overwrite %s: no store configured for this session", e.Path)
					continue
				}
				if err := s.Store.Write(e.Path, &conflict.Computed); err != nil {
					s.Logger.Error("overwrite %s: %v", e.Path, err)
					continue
				}
				e.Record, e.HasRecord, e.Err = conflict.Computed, true, nil
			case "ignore":
				e.Record, e.HasRecord, e.Err = conflict.Computed, true, nil
			case "skip":
				e.Exists = false
			case "quit":
				return true
			}
			continue
		}

		s.Logger.Warn("%s: %v", e.Path, e.Err)
	}
	return false
}

// promptConflict asks the operator how to resolve a stored-vs-computed
// hash mismatch for conflict.Path.
func (s *Session) promptConflict(conflict *store.Conflict) string {
	s.Logger.Warn(conflict.Error())
	_, choice := view.Select(fmt.Sprintf("resolve hash conflict for %s", conflict.Path),
		[]string{"ignore", "overwrite", "skip", "quit"})
	return choice
}

func (s *Session) printGroup(g *Group, plan Plan, live []int) {
	s.Logger.Info("group of %d:", len(live))
	for _, i := range live {
		e := g.Entries[i]
		verb := "?"
		switch plan.Actions[i] {
		case ActionKeep:
			verb = "keep"
		case ActionTrash:
			verb = "trash"
		}
		s.Logger.Info("  [%d] %s (%s) -> %s: %s", i+1, e.Path, view.HumanSize(e.Record.Size), verb, plan.Reason[i])
	}
}

func (s *Session) printHelp() {
	s.Logger.Info("commands: c=continue (apply suggestion), d=diff metadata, q=quit, " +
		"t#=trash entry #, o#=print entry #'s path (no file viewer is launched), f#=reveal entry # in folder, " +
		"m#,#,...=merge metadata into the first listed entry, blank=repeat last command")
}

func (s *Session) printDiff(g *Group, live []int) {
	for _, i := range live {
		e := g.Entries[i]
		date := "unknown"
		if e.HasDate {
			date = e.DateTaken.Format("2006-01-02 15:04:05")
		}
		s.Logger.Info("  [%d] %s date=%s md5=%s full_md5=%s", i+1, e.Path, date, e.Record.MD5, e.Record.FullMD5)
	}
}

func parseEntryIndex(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("dupe: invalid index %q", raw)
	}
	return n - 1, nil
}

func parseIndexList(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	indices := make([]int, 0, len(parts))
	for _, p := range parts {
		idx, err := parseEntryIndex(p)
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return indices, nil
}
