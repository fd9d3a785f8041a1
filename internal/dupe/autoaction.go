package dupe

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Action is the engine's recommendation for one entry in a group.
type Action int

const (
	ActionNone Action = iota
	ActionKeep
	ActionTrash
)

// Plan is the auto-action recommendation for a whole group: one Action
// per entry, aligned by index with Group.Entries.
type Plan struct {
	Actions []Action
	// Reason explains entries[i]'s action, for the `?`/listing display.
	Reason []string
}

// duplicateSuffixRe matches the common "this is obviously a second copy"
// filename decorations: "-2", "_2", " (2)", "copy", "copy 2". The
// separator before the digits is mandatory so a camera-style stem ending
// in bare digits (IMG1234) never matches.
var duplicateSuffixRe = regexp.MustCompile(`(?i)(-\d+|_\d+|\s\(\d+\)|\scopy\s*\d*)$`)

// AutoPlan computes the auto-action heuristic chain for g:
//
//  1. Any entry carrying sidecars is excluded from auto-resolution
//     (always ActionNone): sidecars might encode edits not reflected in
//     the hash, so only a human decides.
//  2. Among the remaining candidates, if more than one is pairwise Full
//     (whole-file-identical), narrow the discard set by (a) a capture
//     date that disagrees with its containing date directory, then (b) a
//     filename carrying a duplicate-style suffix.
//  3. Every narrowed-out candidate is recommended for trashing; the one
//     survivor (or the set, if narrowing found nothing to discard) is
//     recommended for keeping.
//  4. iPhone live-photo exception: if every surviving candidate is a
//     .mov and a sibling .heic/.jpg with the same stem and at least half
//     its size exists alongside it, treat the group as intentional and
//     recommend keeping everything (no trash).
func AutoPlan(g *Group) Plan {
	n := len(g.Entries)
	plan := Plan{Actions: make([]Action, n), Reason: make([]string, n)}

	var candidates []int
	for i, e := range g.Entries {
		if len(e.Sidecars) > 0 {
			plan.Actions[i] = ActionNone
			plan.Reason[i] = "has sidecar files, needs manual review"
			continue
		}
		candidates = append(candidates, i)
	}

	if len(candidates) < 2 {
		for _, i := range candidates {
			plan.Actions[i] = ActionKeep
			plan.Reason[i] = "sole remaining candidate"
		}
		return plan
	}

	if !allPairwiseFull(g, candidates) {
		for _, i := range candidates {
			plan.Actions[i] = ActionNone
			plan.Reason[i] = "ambiguous match, needs manual review"
		}
		return plan
	}

	if isLivePhotoException(g, candidates) {
		for _, i := range candidates {
			plan.Actions[i] = ActionKeep
			plan.Reason[i] = "iPhone live-photo pair, keeping both"
		}
		return plan
	}

	discard := map[int]bool{}
	for _, i := range candidates {
		if dateMismatch(g.Entries[i]) {
			discard[i] = true
		}
	}
	if len(discard) == 0 || len(discard) == len(candidates) {
		discard = map[int]bool{}
		for _, i := range candidates {
			if hasDuplicateSuffix(g.Entries[i].Path) {
				discard[i] = true
			}
		}
	}
	if len(discard) == len(candidates) {
		discard = map[int]bool{}
	}

	for _, i := range candidates {
		if discard[i] {
			plan.Actions[i] = ActionTrash
			plan.Reason[i] = "identical to a kept copy"
		} else {
			plan.Actions[i] = ActionKeep
			plan.Reason[i] = "kept over its duplicate(s)"
		}
	}
	return plan
}

func allPairwiseFull(g *Group, candidates []int) bool {
	for _, i := range candidates {
		for _, j := range candidates {
			if i == j {
				continue
			}
			if g.Matches[i][j] != MatchFull {
				return false
			}
		}
	}
	return true
}

// dateMismatch reports whether entry's capture date disagrees with a
// YYYY-MM-DD token in its containing directory name.
func dateMismatch(e Entry) bool {
	if !e.HasDate {
		return false
	}
	key := dateDirKey(e.Path)
	if key == "" {
		return false
	}
	got := e.DateTaken.Format("20060102")
	return got != key
}

func hasDuplicateSuffix(path string) bool {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return duplicateSuffixRe.MatchString(stem)
}

// isLivePhotoException implements the Apple live-photo carve-out: a
// group of otherwise-identical .mov duplicates is kept in full when at
// least one copy sits next to a same-stem .heic/.jpg sibling of
// comparable size. Only one copy needs its still alongside it; the
// other is simply a duplicate of that same video.
func isLivePhotoException(g *Group, candidates []int) bool {
	foundStill := false
	for _, i := range candidates {
		e := g.Entries[i]
		if !strings.EqualFold(filepath.Ext(e.Path), ".mov") {
			return false
		}
		if hasLivePhotoStill(e) {
			foundStill = true
		}
	}
	return foundStill
}

func hasLivePhotoStill(e Entry) bool {
	base := filepath.Base(e.Path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(e.Path)
	for _, ext := range []string{".heic", ".HEIC", ".jpg", ".JPG", ".jpeg", ".JPEG"} {
		candidate := filepath.Join(dir, stem+ext)
		if st, err := statSize(candidate); err == nil {
			if e.Record.Size == 0 || st >= e.Record.Size/2 {
				return true
			}
		}
	}
	return false
}

// statSize is a small seam so tests can stub out the live-photo sibling
// check without touching the real filesystem.
var statSize = func(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
