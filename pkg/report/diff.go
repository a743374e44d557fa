// Package report renders rewrite results for people and machines:
// unified diffs, diagnostics, summary and rule tables, JSON and YAML.
package report

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines around each hunk.
const DefaultContext = 3

const noNewline = "\\ No newline at end of file\n"

type diffLine struct {
	text string
	op   diffmatchpatch.Operation
}

type hunk struct {
	start, end int
}

// lineDiff returns before/after as a sequence of whole-line operations.
func lineDiff(before, after string) []diffLine {
	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lines)

	var out []diffLine

	for _, d := range diffs {
		for _, text := range strings.SplitAfter(d.Text, "\n") {
			if text != "" {
				out = append(out, diffLine{op: d.Type, text: text})
			}
		}
	}

	return out
}

func hunks(lines []diffLine, context int) []hunk {
	var out []hunk

	for i := 0; i < len(lines); {
		if lines[i].op == diffmatchpatch.DiffEqual {
			i++

			continue
		}

		h := hunk{start: max(0, i-context), end: i}

		for h.end < len(lines) {
			if lines[h.end].op != diffmatchpatch.DiffEqual {
				h.end++

				continue
			}

			run := h.end
			for run < len(lines) && lines[run].op == diffmatchpatch.DiffEqual {
				run++
			}

			if run == len(lines) || run-h.end > 2*context {
				h.end = min(h.end+context, run)

				break
			}

			h.end = run
		}

		out = append(out, h)
		i = h.end
	}

	return out
}

// Unified renders a unified diff of before and after under name. It
// returns "" when the inputs are equal.
func Unified(name string, before, after []byte, context int) string {
	if context < 0 {
		context = DefaultContext
	}

	lines := lineDiff(string(before), string(after))

	hs := hunks(lines, context)
	if len(hs) == 0 {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", name, name)

	oldLine, newLine, pos := 0, 0, 0

	for _, h := range hs {
		for ; pos < h.start; pos++ {
			oldLine, newLine = advance(lines[pos].op, oldLine, newLine)
		}

		oldCount, newCount := 0, 0
		for _, l := range lines[h.start:h.end] {
			if l.op != diffmatchpatch.DiffInsert {
				oldCount++
			}

			if l.op != diffmatchpatch.DiffDelete {
				newCount++
			}
		}

		fmt.Fprintf(&b, "@@ -%s +%s @@\n", hunkRange(oldLine, oldCount), hunkRange(newLine, newCount))

		for ; pos < h.end; pos++ {
			l := lines[pos]
			oldLine, newLine = advance(l.op, oldLine, newLine)

			b.WriteString(prefix(l.op))
			b.WriteString(l.text)

			if !strings.HasSuffix(l.text, "\n") {
				b.WriteString("\n" + noNewline)
			}
		}
	}

	return b.String()
}

func advance(op diffmatchpatch.Operation, oldLine, newLine int) (int, int) {
	switch op {
	case diffmatchpatch.DiffDelete:
		return oldLine + 1, newLine
	case diffmatchpatch.DiffInsert:
		return oldLine, newLine + 1
	default:
		return oldLine + 1, newLine + 1
	}
}

// hunkRange formats "start,count" where before is the number of lines
// preceding the hunk.
func hunkRange(before, count int) string {
	switch count {
	case 0:
		return fmt.Sprintf("%d,0", before)
	case 1:
		return fmt.Sprintf("%d", before+1)
	default:
		return fmt.Sprintf("%d,%d", before+1, count)
	}
}

func prefix(op diffmatchpatch.Operation) string {
	switch op {
	case diffmatchpatch.DiffDelete:
		return "-"
	case diffmatchpatch.DiffInsert:
		return "+"
	default:
		return " "
	}
}
