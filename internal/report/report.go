// Package report renders a session's outcome (a check-hash sweep, a
// collect-trash run, a duplicate-resolution pass) as a self-contained
// HTML file with embedded CSS, a table filterable by a search box (not
// sortable), and summary badges, plus a parallel JSON export for scripting.
package report

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/whatsoevan/orphdat/internal/view"
)

// ActionKind is what happened to one archive path during the session.
type ActionKind string

const (
	ActionTrashed   ActionKind = "trashed"
	ActionRestored  ActionKind = "restored"
	ActionHashed    ActionKind = "hashed"
	ActionSkipped   ActionKind = "skipped"
	ActionError     ActionKind = "error"
	ActionDuplicate ActionKind = "duplicate"
)

// Action is one row of the session table.
type Action struct {
	Path   string
	Kind   ActionKind
	Detail string
	Size   int64
}

// Summary aggregates a session's actions into per-outcome counts plus
// totals.
type Summary struct {
	Verb      string
	Root      string
	StartedAt time.Time
	Duration  time.Duration
	Actions   []Action
}

func (s Summary) countOf(kind ActionKind) int {
	n := 0
	for _, a := range s.Actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

const reportCSS = `
  :root {
    --bg: #fafafa; --fg: #1a1a1a; --muted: #6b7280; --border: #e5e7eb;
    --accent: #2563eb; --ok: #16a34a; --warn: #d97706; --err: #dc2626;
  }
  body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; background: var(--bg); color: var(--fg); margin: 2rem; }
  h1 { font-size: 1.4rem; }
  .badges { display: flex; gap: 0.75rem; margin: 1rem 0; flex-wrap: wrap; }
  .badge { border: 1px solid var(--border); border-radius: 6px; padding: 0.4rem 0.8rem; font-size: 0.85rem; }
  .badge.ok { border-color: var(--ok); color: var(--ok); }
  .badge.warn { border-color: var(--warn); color: var(--warn); }
  .badge.err { border-color: var(--err); color: var(--err); }
  table { width: 100%; border-collapse: collapse; margin-top: 1rem; }
  th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid var(--border); font-size: 0.85rem; }
  th { cursor: pointer; color: var(--muted); }
  tr.error td { color: var(--err); }
  tr.trashed td { color: var(--warn); }
  input#search { padding: 0.4rem; width: 100%; max-width: 24rem; margin-bottom: 0.75rem; }
`

// Write renders summary as a self-contained HTML file at path, in the
// teacher's embedded-style-and-script single-file report idiom.
func Write(path string, s Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"UTF-8\">\n")
	fmt.Fprintf(f, "<title>orphdat %s report</title><style>%s</style></head><body>\n", html.EscapeString(s.Verb), reportCSS)
	fmt.Fprintf(f, "<h1>%s &mdash; %s</h1>\n", html.EscapeString(s.Verb), html.EscapeString(s.Root))
	fmt.Fprintf(f, "<p>Started %s, took %s.</p>\n", s.StartedAt.Format(time.RFC3339), s.Duration.Round(time.Millisecond))

	writeBadges(f, s)

	fmt.Fprintf(f, "<input id=\"search\" placeholder=\"Filter by path...\">\n<table id=\"t\"><thead><tr>")
	for _, col := range []string{"Path", "Action", "Size", "Detail"} {
		fmt.Fprintf(f, "<th>%s</th>", col)
	}
	fmt.Fprintf(f, "</tr></thead><tbody>\n")
	for _, a := range s.Actions {
		fmt.Fprintf(f, "<tr class=\"%s\"><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(string(a.Kind)), html.EscapeString(a.Path), html.EscapeString(string(a.Kind)),
			view.HumanSize(a.Size), html.EscapeString(a.Detail))
	}
	fmt.Fprintf(f, "</tbody></table>\n")
	fmt.Fprintf(f, "<script>\ndocument.getElementById('search').addEventListener('input', function(e){\n"+
		"  var q = e.target.value.toLowerCase();\n"+
		"  document.querySelectorAll('#t tbody tr').forEach(function(row){\n"+
		"    row.style.display = row.textContent.toLowerCase().includes(q) ? '' : 'none';\n"+
		"  });\n});\n</script>\n")
	fmt.Fprintf(f, "</body></html>")
	return nil
}

func writeBadges(f *os.File, s Summary) {
	fmt.Fprintf(f, "<div class=\"badges\">\n")
	fmt.Fprintf(f, "<span class=\"badge ok\">%d hashed</span>\n", s.countOf(ActionHashed))
	fmt.Fprintf(f, "<span class=\"badge warn\">%d trashed</span>\n", s.countOf(ActionTrashed))
	fmt.Fprintf(f, "<span class=\"badge\">%d restored</span>\n", s.countOf(ActionRestored))
	fmt.Fprintf(f, "<span class=\"badge\">%d duplicates</span>\n", s.countOf(ActionDuplicate))
	fmt.Fprintf(f, "<span class=\"badge\">%d skipped</span>\n", s.countOf(ActionSkipped))
	if n := s.countOf(ActionError); n > 0 {
		fmt.Fprintf(f, "<span class=\"badge err\">%d errors</span>\n", n)
	}
	fmt.Fprintf(f, "</div>\n")
}

// jsonAction is Action's wire shape for WriteJSON; Action itself stays
// free of struct tags since it's also used as an in-memory accumulator.
type jsonAction struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
	Size   int64  `json:"size"`
}

type jsonSummary struct {
	Verb      string       `json:"verb"`
	Root      string       `json:"root"`
	StartedAt time.Time    `json:"started_at"`
	Duration  string       `json:"duration"`
	Actions   []jsonAction `json:"actions"`
}

// WriteJSON renders summary as machine-readable JSON, for scripting
// around orphdat in a pipeline rather than reading the HTML report.
func WriteJSON(path string, s Summary) error {
	out := jsonSummary{
		Verb:      s.Verb,
		Root:      s.Root,
		StartedAt: s.StartedAt,
		Duration:  s.Duration.String(),
	}
	for _, a := range s.Actions {
		out.Actions = append(out.Actions, jsonAction{Path: a.Path, Kind: string(a.Kind), Detail: a.Detail, Size: a.Size})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// RelativePath renders fullPath relative to root, with root itself and
// the following separator stripped, for a friendlier table than absolute
// paths everywhere.
func RelativePath(fullPath, root string) string {
	if fullPath == "" || root == "" {
		return fullPath
	}
	rel := strings.TrimPrefix(fullPath, root)
	return strings.TrimPrefix(rel, string(os.PathSeparator))
}
