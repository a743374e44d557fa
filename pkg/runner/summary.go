package runner

import (
	"github.com/Sumatoshi-tech/jestify/pkg/rewrite"
	"github.com/Sumatoshi-tech/jestify/pkg/safeconv"
)

// Summary aggregates a run.
type Summary struct {
	Diagnostics map[rewrite.Kind]int `json:"diagnostics"`
	Matchers    map[string]int       `json:"matchers"`
	Files       int                  `json:"files"`
	Changed     int                  `json:"changed"`
	Unchanged   int                  `json:"unchanged"`
	Skipped     int                  `json:"skipped"`
	Failed      int                  `json:"failed"`
	Written     int                  `json:"written"`
	Rewrites    int                  `json:"rewrites"`
	Bytes       uint64               `json:"bytes"`
}

// Summarize folds per-file outcomes into totals.
func Summarize(files []File) Summary {
	s := Summary{
		Diagnostics: make(map[rewrite.Kind]int),
		Matchers:    make(map[string]int),
		Files:       len(files),
	}

	for _, f := range files {
		s.Bytes += safeconv.Uint64(f.Size)

		if f.Written {
			s.Written++
		}

		switch {
		case f.Err != nil:
			s.Failed++
		case f.Skipped != "":
			s.Skipped++
		case f.Changed():
			s.Changed++
		default:
			s.Unchanged++
		}

		if f.Result == nil {
			continue
		}

		s.Rewrites += len(f.Result.Rewrites)

		for _, rw := range f.Result.Rewrites {
			for _, m := range rw.Matchers {
				s.Matchers[m]++
			}
		}

		for _, d := range f.Result.Diagnostics {
			s.Diagnostics[d.Kind]++
		}
	}

	return s
}
