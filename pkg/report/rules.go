package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/jestify/pkg/rewrite"
	"github.com/Sumatoshi-tech/jestify/pkg/rules"
	"github.com/Sumatoshi-tech/jestify/pkg/runner"
)

// RuleRow is the serializable view of one rule.
type RuleRow struct {
	Verb        string   `json:"verb" yaml:"verb"`
	Aliases     []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Requires    []string `json:"requires,omitempty" yaml:"requires,omitempty"`
	Matcher     string   `json:"matcher,omitempty" yaml:"matcher,omitempty"`
	Example     string   `json:"example,omitempty" yaml:"example,omitempty"`
	Unsupported bool     `json:"unsupported,omitempty" yaml:"unsupported,omitempty"`
}

// RuleRows lists the table in declaration order.
func RuleRows(t *rules.Table) []RuleRow {
	all := t.Rules()
	rows := make([]RuleRow, 0, len(all))

	for _, r := range all {
		rows = append(rows, RuleRow{
			Verb:        r.Verb,
			Aliases:     r.Aliases,
			Requires:    r.Requires,
			Matcher:     r.Matcher,
			Example:     r.Example,
			Unsupported: r.Unsupported,
		})
	}

	return rows
}

// Rules renders the rule table.
func (p *Printer) Rules(t *rules.Table) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Verb", "Modifiers", "Aliases", "Matcher", "Example"})

	rows := RuleRows(t)
	for _, r := range rows {
		matcher := r.Matcher
		if r.Unsupported {
			matcher = p.warn.Sprint("unsupported")
		}

		tbl.AppendRow(table.Row{
			r.Verb,
			strings.Join(r.Requires, "."),
			strings.Join(r.Aliases, ", "),
			matcher,
			r.Example,
		})
	}

	tbl.AppendFooter(table.Row{"Rules", len(rows)})

	if _, err := fmt.Fprintln(p.w, tbl.Render()); err != nil {
		return fmt.Errorf("write rules: %w", err)
	}

	return nil
}

// WriteRulesYAML writes the rule table as a YAML list.
func WriteRulesYAML(w io.Writer, t *rules.Table) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(RuleRows(t)); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	return nil
}

// RunReport is the JSON document of a rewrite run.
type RunReport struct {
	Files   []FileReport   `json:"files"`
	Summary runner.Summary `json:"summary"`
}

// FileReport is the JSON view of one file.
type FileReport struct {
	Path        string               `json:"path"`
	Outcome     string               `json:"outcome"`
	Language    string               `json:"language,omitempty"`
	Skipped     string               `json:"skipped,omitempty"`
	Error       string               `json:"error,omitempty"`
	Diff        string               `json:"diff,omitempty"`
	Rewrites    []rewrite.Rewrite    `json:"rewrites,omitempty"`
	Diagnostics []rewrite.Diagnostic `json:"diagnostics,omitempty"`
	Written     bool                 `json:"written"`
}

// NewRunReport builds the JSON document for files.
func NewRunReport(files []runner.File) RunReport {
	out := RunReport{Files: make([]FileReport, 0, len(files)), Summary: runner.Summarize(files)}

	for _, f := range files {
		fr := FileReport{
			Path:     f.Path,
			Outcome:  f.Outcome(),
			Language: f.Language,
			Skipped:  f.Skipped,
			Error:    f.Error,
			Written:  f.Written,
		}

		if f.Result != nil {
			fr.Rewrites = f.Result.Rewrites
			fr.Diagnostics = f.Result.Diagnostics

			if f.Result.Changed {
				fr.Diff = Unified(f.Path, f.Original, f.Result.Output, DefaultContext)
			}
		}

		out.Files = append(out.Files, fr)
	}

	return out
}

// WriteJSON writes the run report as indented JSON.
func WriteJSON(w io.Writer, files []runner.File) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(NewRunReport(files)); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return nil
}
