package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/jestify/pkg/fixture"
	"github.com/Sumatoshi-tech/jestify/pkg/rewrite"
	"github.com/Sumatoshi-tech/jestify/pkg/runner"
)

// Printer writes human-oriented output.
type Printer struct {
	w       io.Writer
	added   *color.Color
	removed *color.Color
	header  *color.Color
	hunk    *color.Color
	warn    *color.Color
	ok      *color.Color
	// Context is the number of unchanged lines shown around changes.
	Context int
}

// NewPrinter returns a Printer writing to w; colored enables ANSI colors
// regardless of whether w is a terminal.
func NewPrinter(w io.Writer, colored bool) *Printer {
	p := &Printer{
		w:       w,
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
		header:  color.New(color.Bold),
		hunk:    color.New(color.FgCyan),
		warn:    color.New(color.FgYellow),
		ok:      color.New(color.FgGreen, color.Bold),
		Context: DefaultContext,
	}

	for _, c := range []*color.Color{p.added, p.removed, p.header, p.hunk, p.warn, p.ok} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return p
}

// Diff writes the unified diff of one file. Nothing is written when the
// contents are equal.
func (p *Printer) Diff(name string, before, after []byte) error {
	diff := Unified(name, before, after, p.Context)
	if diff == "" {
		return nil
	}

	for line := range strings.SplitAfterSeq(diff, "\n") {
		if line == "" {
			continue
		}

		var err error

		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			_, err = p.header.Fprint(p.w, line)
		case strings.HasPrefix(line, "@@"):
			_, err = p.hunk.Fprint(p.w, line)
		case strings.HasPrefix(line, "+"):
			_, err = p.added.Fprint(p.w, line)
		case strings.HasPrefix(line, "-"):
			_, err = p.removed.Fprint(p.w, line)
		default:
			_, err = io.WriteString(p.w, line)
		}

		if err != nil {
			return fmt.Errorf("write diff: %w", err)
		}
	}

	return nil
}

// Diagnostics writes one "path:line:col: kind: message" line per diagnostic.
func (p *Printer) Diagnostics(path string, diags []rewrite.Diagnostic) error {
	for _, d := range diags {
		if _, err := p.warn.Fprintf(p.w, "%s:%s\n", path, d.String()); err != nil {
			return fmt.Errorf("write diagnostics: %w", err)
		}
	}

	return nil
}

// Files writes the diff and diagnostics of every file, skipping those
// with nothing to show.
func (p *Printer) Files(files []runner.File, diagnostics bool) error {
	for _, f := range files {
		if f.Err != nil {
			if _, err := p.removed.Fprintf(p.w, "%s: %s\n", f.Path, f.Error); err != nil {
				return fmt.Errorf("write error: %w", err)
			}

			continue
		}

		if f.Result == nil {
			continue
		}

		if f.Result.Changed {
			if err := p.Diff(f.Path, f.Original, f.Result.Output); err != nil {
				return err
			}
		}

		if diagnostics {
			if err := p.Diagnostics(f.Path, f.Result.Diagnostics); err != nil {
				return err
			}
		}
	}

	return nil
}

// Summary renders run totals and per-matcher counts as tables.
func (p *Printer) Summary(s runner.Summary) error {
	totals := table.NewWriter()
	totals.SetStyle(table.StyleLight)
	totals.AppendHeader(table.Row{"Files", "Changed", "Unchanged", "Skipped", "Failed", "Written", "Rewrites", "Scanned"})
	totals.AppendRow(table.Row{
		s.Files, s.Changed, s.Unchanged, s.Skipped, s.Failed, s.Written, s.Rewrites, humanize.Bytes(s.Bytes),
	})

	if _, err := fmt.Fprintln(p.w, totals.Render()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if len(s.Matchers) > 0 {
		if _, err := fmt.Fprintln(p.w, countTable("Matcher", s.Matchers).Render()); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if len(s.Diagnostics) > 0 {
		byKind := make(map[string]int, len(s.Diagnostics))
		for k, n := range s.Diagnostics {
			byKind[string(k)] = n
		}

		if _, err := fmt.Fprintln(p.w, countTable("Diagnostic", byKind).Render()); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	return nil
}

// countTable renders counts sorted by descending count, then name.
func countTable(label string, counts map[string]int) table.Writer {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}

		return names[i] < names[j]
	})

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.AppendHeader(table.Row{label, "Count"})

	total := 0

	for _, name := range names {
		tbl.AppendRow(table.Row{name, counts[name]})
		total += counts[name]
	}

	tbl.AppendFooter(table.Row{"Total", total})

	return tbl
}

// Fixtures writes one status line per case and a diff for each mismatch.
// It returns the number of failed cases.
func (p *Printer) Fixtures(outcomes []fixture.Outcome) (int, error) {
	for _, o := range outcomes {
		var err error

		switch {
		case o.Skipped != "":
			_, err = p.warn.Fprintf(p.w, "SKIP %s: %s\n", o.Case.Name, o.Skipped)
		case o.Err != nil:
			_, err = p.removed.Fprintf(p.w, "FAIL %s: %v\n", o.Case.Name, o.Err)
		case o.Passed:
			_, err = p.ok.Fprintf(p.w, "PASS %s\n", o.Case.Name)
		default:
			if _, err = p.removed.Fprintf(p.w, "FAIL %s\n", o.Case.Name); err == nil {
				err = p.Diff(o.Case.Name, o.Want, o.Got)
			}
		}

		if err != nil {
			return 0, fmt.Errorf("write fixtures: %w", err)
		}
	}

	failed := fixture.Failed(outcomes)

	summary := fmt.Sprintf("%d cases, %d failed\n", len(outcomes), failed)

	c := p.ok
	if failed > 0 {
		c = p.removed
	}

	if _, err := c.Fprint(p.w, summary); err != nil {
		return failed, fmt.Errorf("write fixtures: %w", err)
	}

	return failed, nil
}
