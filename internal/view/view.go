// Package view is the terminal collaborator: colored status output,
// human-readable sizes, and the interactive prompts the duplicate engine
// drives, all gathered behind Logger and the Select/Prompt helpers so the
// other internal packages never import fatih/color or promptui directly.
package view

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/sqweek/dialog"

	"github.com/whatsoevan/orphdat/internal/orphctx"
)

// Logger prints status lines gated by a configured verbosity, in the
// teacher's direct color.New(...).Println style rather than through a
// structured logging library.
type Logger struct {
	verbosity orphctx.Verbosity
}

// NewLogger builds a Logger from a run Config.
func NewLogger(cfg orphctx.Config) *Logger {
	return &Logger{verbosity: cfg.Verbosity}
}

// Info prints at Normal verbosity and above.
func (l *Logger) Info(format string, args ...any) {
	if l.verbosity < orphctx.Normal {
		return
	}
	fmt.Println(fmt.Sprintf(format, args...))
}

// Verbose prints only when Verbose is configured.
func (l *Logger) Verbose(format string, args ...any) {
	if l.verbosity < orphctx.Verbose {
		return
	}
	color.New(color.FgBlue).Println(fmt.Sprintf(format, args...))
}

// Success prints a green confirmation line.
func (l *Logger) Success(format string, args ...any) {
	if l.verbosity < orphctx.Normal {
		return
	}
	color.New(color.FgGreen).Println(fmt.Sprintf(format, args...))
}

// Warn prints a yellow warning line regardless of verbosity; quiet mode
// still surfaces warnings.
func (l *Logger) Warn(format string, args ...any) {
	color.New(color.FgYellow).Println(fmt.Sprintf(format, args...))
}

// Error prints a red error line, always.
func (l *Logger) Error(format string, args ...any) {
	color.New(color.FgRed, color.Bold).Println(fmt.Sprintf(format, args...))
}

// Banner prints the archive tool's startup banner in bold ASCII art.
func (l *Logger) Banner() {
	if l.verbosity < orphctx.Normal {
		return
	}
	banner := `
  ___  ____  ____  _   _ ____    _  _____
 / _ \|  _ \|  _ \| | | |  _ \  / \|_   _|
| | | | |_) | |_) | |_| | | | |/ _ \ | |
| |_| |  _ <|  __/|  _  | |_| / ___ \| |
 \___/|_| \_\_|   |_| |_|____/_/   \_\_|
`
	color.New(color.FgBlack, color.Bold).Println(banner)
}

// HumanSize renders a byte count the way dupe tables and reports show
// file sizes to a human, e.g. "4.2 MB".
func HumanSize(bytes int64) string {
	return humanize.Bytes(uint64(bytes))
}

// HumanTime renders a past instant the way a completed verb reports how
// long ago a session ran, e.g. "3 minutes ago".
func HumanTime(when time.Time) string {
	return humanize.Time(when)
}

// isGUIAvailable checks DISPLAY/WAYLAND_DISPLAY to decide whether
// sqweek/dialog's native picker can work at all before attempting it
// (it panics ungracefully on a headless box).
func isGUIAvailable() bool {
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}

// RevealInFolder shows sqweek/dialog's native directory picker titled with
// path, used by the dupe engine's `f#` command; the picker is not opened
// at path's folder and no file manager is launched.
// Returns false if no GUI is available or the picker failed, in which
// case callers should fall back to printing the path.
func RevealInFolder(path string) bool {
	if !isGUIAvailable() {
		return false
	}
	defer func() { recover() }()
	_, err := dialog.Directory().Title("Reveal: " + path).Browse()
	return err == nil
}

// Select runs a promptui.Select with the given label and items, treating
// Ctrl-C as a clean exit(130).
func Select(label string, items []string) (int, string) {
	p := promptui.Select{Label: label, Items: items}
	idx, result, err := p.Run()
	if err == promptui.ErrInterrupt {
		color.New(color.FgRed, color.Bold).Println("\nInterrupted. Exiting cleanly.")
		os.Exit(130)
	}
	return idx, result
}

// Prompt runs a promptui.Prompt for free-text input, with the same
// Ctrl-C handling as Select.
func Prompt(label string, validate func(string) error) string {
	p := promptui.Prompt{Label: label, Validate: validate}
	result, err := p.Run()
	if err == promptui.ErrInterrupt {
		color.New(color.FgRed, color.Bold).Println("\nInterrupted. Exiting cleanly.")
		os.Exit(130)
	}
	return result
}
