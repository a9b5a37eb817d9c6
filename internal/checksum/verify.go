package checksum

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NREL/COMPASS/internal/model"
)

// Status classifies one verification finding.
type Status string

const (
	StatusConfirmed  Status = "confirmed"  // digest matches the manifest
	StatusMismatched Status = "mismatched" // filename known, digest differs
	StatusUnknown    Status = "unknown"    // file on disk, not in the manifest
	StatusMissing    Status = "missing"    // manifest entry with no file on disk
)

// Finding is the verification outcome for one filename.
type Finding struct {
	Filename string `json:"filename" yaml:"filename"`
	Status   Status `json:"status" yaml:"status"`
	Declared string `json:"declared,omitempty" yaml:"declared,omitempty"`
	Computed string `json:"computed,omitempty" yaml:"computed,omitempty"`
}

// Report groups verification findings by outcome. Findings within each group
// are sorted by filename.
type Report struct {
	Confirmed  []Finding `json:"confirmed,omitempty" yaml:"confirmed,omitempty"`
	Mismatched []Finding `json:"mismatched,omitempty" yaml:"mismatched,omitempty"`
	Unknown    []Finding `json:"unknown,omitempty" yaml:"unknown,omitempty"`
	Missing    []Finding `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Clean reports whether verification found nothing to flag: no mismatched,
// unknown, or missing files.
func (r *Report) Clean() bool {
	return len(r.Mismatched) == 0 && len(r.Unknown) == 0 && len(r.Missing) == 0
}

// Total returns the number of findings across all outcomes.
func (r *Report) Total() int {
	return len(r.Confirmed) + len(r.Mismatched) + len(r.Unknown) + len(r.Missing)
}

// Verify hashes every regular file in sourceDir on a bounded worker pool and
// classifies each against the (filename, checksum) pairs declared by the
// manifest's document lists. It never mutates storage and never fails the
// run on a finding; only I/O errors are returned.
func Verify(ctx context.Context, jurisdictions []model.Jurisdiction, sourceDir string, workers int) (*Report, error) {
	log := zap.L().With(zap.String("component", "checksum"))

	declared := make(map[string]string)
	for _, j := range jurisdictions {
		for _, d := range j.Documents {
			if prev, ok := declared[d.Filename]; ok && prev != d.Checksum {
				log.Warn("manifest declares conflicting checksums for file, keeping first",
					zap.String("filename", d.Filename))
				continue
			}
			declared[d.Filename] = d.Checksum
		}
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, eris.Wrapf(err, "checksum: read source directory %s", sourceDir)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			log.Debug("ignoring unexpected directory in source files",
				zap.String("name", entry.Name()))
			continue
		}
		files = append(files, entry.Name())
	}

	if workers <= 0 {
		workers = 4
	}

	computed := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, err := File(filepath.Join(sourceDir, name))
			if err != nil {
				return err
			}
			computed[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}
	seen := make(map[string]bool, len(files))
	for i, name := range files {
		seen[name] = true
		want, known := declared[name]
		switch {
		case !known:
			report.Unknown = append(report.Unknown, Finding{
				Filename: name, Status: StatusUnknown, Computed: computed[i],
			})
		case want == computed[i]:
			report.Confirmed = append(report.Confirmed, Finding{
				Filename: name, Status: StatusConfirmed, Declared: want, Computed: computed[i],
			})
		default:
			report.Mismatched = append(report.Mismatched, Finding{
				Filename: name, Status: StatusMismatched, Declared: want, Computed: computed[i],
			})
		}
	}
	for name, want := range declared {
		if !seen[name] {
			report.Missing = append(report.Missing, Finding{
				Filename: name, Status: StatusMissing, Declared: want,
			})
		}
	}

	for _, group := range [][]Finding{report.Confirmed, report.Mismatched, report.Unknown, report.Missing} {
		sort.Slice(group, func(a, b int) bool { return group[a].Filename < group[b].Filename })
	}

	log.Info("source file verification complete",
		zap.Int("confirmed", len(report.Confirmed)),
		zap.Int("mismatched", len(report.Mismatched)),
		zap.Int("unknown", len(report.Unknown)),
		zap.Int("missing", len(report.Missing)))

	return report, nil
}
