// Package fixture loads paired input/output source files and checks the
// rewriter against them. A case named foo consists of foo.input.<ext>, an
// optional foo.output.<ext> (absent means "must stay unchanged") and an
// optional foo.options.yaml.
package fixture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/jestify/pkg/dialect"
	"github.com/Sumatoshi-tech/jestify/pkg/rewrite"
)

const (
	inputMarker  = ".input"
	outputMarker = ".output"
	optionsFile  = ".options.yaml"
)

// ErrNoCases is returned when a directory holds no fixture inputs.
var ErrNoCases = errors.New("fixture: no cases found")

// Options tune the engine for one case.
type Options struct {
	Dialects       []string `yaml:"dialects"`
	Namespace      string   `yaml:"namespace"`
	RequireBinding bool     `yaml:"require_binding"`
	Skip           string   `yaml:"skip"`
}

// Case is one fixture pair.
type Case struct {
	Name       string
	InputPath  string
	OutputPath string
	Options    Options
}

// Outcome is the result of running one case.
type Outcome struct {
	Err    error
	Result *rewrite.Result
	Case   Case
	Got    []byte
	Want   []byte
	Passed bool
	// Skipped holds the skip reason, if any.
	Skipped string
}

// Load finds every case under dir, sorted by name.
func Load(dir string) ([]Case, error) {
	var cases []Case

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.IsDir() {
			return nil
		}

		base := filepath.Base(path)
		ext := filepath.Ext(base)

		name, ok := strings.CutSuffix(strings.TrimSuffix(base, ext), inputMarker)
		if !ok {
			return nil
		}

		prefix := filepath.Join(filepath.Dir(path), name)

		rel, err := filepath.Rel(dir, prefix)
		if err != nil {
			return err
		}

		c := Case{Name: filepath.ToSlash(rel), InputPath: path}

		if out := prefix + outputMarker + ext; fileExists(out) {
			c.OutputPath = out
		}

		opts, err := loadOptions(prefix + optionsFile)
		if err != nil {
			return err
		}

		c.Options = opts
		cases = append(cases, c)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fixture: load %s: %w", dir, err)
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCases, dir)
	}

	slices.SortFunc(cases, func(a, b Case) int { return strings.Compare(a.Name, b.Name) })

	return cases, nil
}

func loadOptions(path string) (Options, error) {
	var opts Options

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return opts, nil
	}

	if err != nil {
		return opts, err
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse %s: %w", path, err)
	}

	return opts, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}

// Engine builds the engine a case runs with.
func (c Case) Engine() (*rewrite.Engine, error) {
	names := c.Options.Dialects
	if len(names) == 0 {
		names = dialect.Names()
	}

	overrides := make(map[string]dialect.Dialect, len(names))

	for _, name := range names {
		overrides[name] = dialect.Dialect{Namespace: c.Options.Namespace, RequireBinding: c.Options.RequireBinding}
	}

	dialects, err := dialect.Resolve(names, overrides)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", c.Name, err)
	}

	return rewrite.New(rewrite.Options{Dialects: dialects})
}

// Run executes one case.
func (c Case) Run(ctx context.Context) Outcome {
	out := Outcome{Case: c, Skipped: c.Options.Skip}
	if out.Skipped != "" {
		out.Passed = true

		return out
	}

	engine, err := c.Engine()
	if err != nil {
		out.Err = err

		return out
	}

	input, err := os.ReadFile(c.InputPath)
	if err != nil {
		out.Err = err

		return out
	}

	out.Want = input

	if c.OutputPath != "" {
		if out.Want, err = os.ReadFile(c.OutputPath); err != nil {
			out.Err = err

			return out
		}
	}

	res, err := engine.Rewrite(ctx, c.InputPath, input)
	if err != nil {
		out.Err = err

		return out
	}

	out.Result = res
	out.Got = res.Output
	out.Passed = bytes.Equal(out.Got, out.Want) && (c.OutputPath != "" || !res.Changed)

	return out
}

// RunDir loads and runs every case under dir.
func RunDir(ctx context.Context, dir string) ([]Outcome, error) {
	cases, err := Load(dir)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(cases))

	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcomes = append(outcomes, c.Run(ctx))
	}

	return outcomes, nil
}

// Failed counts failed outcomes.
func Failed(outcomes []Outcome) int {
	n := 0

	for _, o := range outcomes {
		if !o.Passed || o.Err != nil {
			n++
		}
	}

	return n
}
