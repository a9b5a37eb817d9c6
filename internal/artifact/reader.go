// Package artifact opens a scraper-run directory and decodes its known
// artifacts into an immutable in-memory set, enforcing presence, size, and
// shape constraints before any database contact.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NREL/COMPASS/internal/checksum"
	"github.com/NREL/COMPASS/internal/model"
	"github.com/NREL/COMPASS/internal/runlog"
)

// DefaultMaxJSONSize bounds each JSON artifact. The scraper's JSON outputs
// are tiny; anything bigger almost certainly means a mistake.
const DefaultMaxJSONSize = 5 * 1024 * 1024

const (
	metaFile       = "meta.json"
	legacyMetaFile = "config.json"
	usageFile      = "usage.json"
	manifestFile   = "jurisdictions.json"
	logFile        = "logs/all.log"
	sourceFilesDir = "ordinance_files"
)

// Options tunes artifact reading. Zero values select the defaults.
type Options struct {
	MaxJSONSize int64 // size bound per JSON artifact, default DefaultMaxJSONSize
}

// OrdinanceFile holds the decoded rows of one ordinance CSV along with the
// number of rows that failed to parse and were skipped.
type OrdinanceFile struct {
	Name        string
	Records     []model.OrdinanceRecord
	SkippedRows int
}

// Set is the fully decoded content of one run directory. It is immutable
// once Open returns.
type Set struct {
	Root          string
	MetadataFile  string // meta.json, or config.json for older runs
	Metadata      *model.RunMetadata
	Usage         *model.Usage
	Jurisdictions []model.Jurisdiction
	Ordinances    []OrdinanceFile
	RuntimeLog    *runlog.RuntimeLog
	SourceDir     string // directory holding the archived source documents

	digests []artifactDigest
}

// artifactDigest records the raw-content digest of one artifact, in the
// fixed order used to derive the run hash.
type artifactDigest struct {
	name string
	sum  string
}

// SkippedRows returns the total count of ordinance CSV rows skipped across
// all files.
func (s *Set) SkippedRows() int {
	var n int
	for _, f := range s.Ordinances {
		n += f.SkippedRows
	}
	return n
}

// OrdinanceRecords returns all decoded ordinance rows in file order.
func (s *Set) OrdinanceRecords() []model.OrdinanceRecord {
	var out []model.OrdinanceRecord
	for _, f := range s.Ordinances {
		out = append(out, f.Records...)
	}
	return out
}

// RunHash chains the raw-content digests of every artifact, in fixed order,
// into a single "sha256:<hex>" content hash identifying the run's input.
func (s *Set) RunHash() string {
	h := sha256.New()
	for _, d := range s.digests {
		fmt.Fprintf(h, "%s=%s\n", d.name, d.sum)
	}
	return checksum.Prefix + hex.EncodeToString(h.Sum(nil))
}

// Open validates and decodes every known artifact under root. Artifact
// families are decoded concurrently; the first failure wins. No database
// contact happens here.
func Open(ctx context.Context, root string, opts Options) (*Set, error) {
	log := zap.L().With(zap.String("component", "artifact"), zap.String("root", root))

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, &MissingArtifactError{Artifact: "run directory", Path: root}
	}

	maxJSON := opts.MaxJSONSize
	if maxJSON <= 0 {
		maxJSON = DefaultMaxJSONSize
	}

	set := &Set{Root: root, SourceDir: filepath.Join(root, sourceFilesDir)}

	if fi, err := os.Stat(set.SourceDir); err != nil || !fi.IsDir() {
		return nil, &MissingArtifactError{Artifact: sourceFilesDir, Path: set.SourceDir}
	}

	csvNames, err := discoverOrdinanceFiles(root)
	if err != nil {
		return nil, err
	}

	var (
		metaDigest, usageDigest, manifestDigest, logDigest string

		ordFiles   = make([]OrdinanceFile, len(csvNames))
		ordDigests = make([]string, len(csvNames))
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		name, data, err := readMetadataFile(root, maxJSON)
		if err != nil {
			return err
		}
		md, err := decodeMetadata(name, data)
		if err != nil {
			return err
		}
		set.MetadataFile, set.Metadata, metaDigest = name, md, checksum.Bytes(data)
		return nil
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		data, err := readBounded(root, usageFile, maxJSON)
		if err != nil {
			return err
		}
		u, err := decodeUsage(usageFile, data)
		if err != nil {
			return err
		}
		set.Usage, usageDigest = u, checksum.Bytes(data)
		return nil
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		data, err := readBounded(root, manifestFile, maxJSON)
		if err != nil {
			return err
		}
		js, err := decodeJurisdictions(manifestFile, data)
		if err != nil {
			return err
		}
		set.Jurisdictions, manifestDigest = js, checksum.Bytes(data)
		return nil
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(root, filepath.FromSlash(logFile))
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return &MissingArtifactError{Artifact: logFile, Path: path}
			}
			return eris.Wrapf(err, "artifact: read %s", logFile)
		}
		set.RuntimeLog, logDigest = runlog.Parse(string(data)), checksum.Bytes(data)
		return nil
	})

	for i, name := range csvNames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file, sum, err := readOrdinanceFile(root, name)
			if err != nil {
				return err
			}
			ordFiles[i], ordDigests[i] = *file, sum
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	set.Ordinances = ordFiles

	set.digests = append(set.digests,
		artifactDigest{set.MetadataFile, metaDigest},
		artifactDigest{usageFile, usageDigest},
		artifactDigest{manifestFile, manifestDigest},
	)
	for i, name := range csvNames {
		set.digests = append(set.digests, artifactDigest{name, ordDigests[i]})
	}
	set.digests = append(set.digests, artifactDigest{logFile, logDigest})

	log.Info("run artifacts decoded",
		zap.String("metadata_file", set.MetadataFile),
		zap.Int("jurisdictions", len(set.Jurisdictions)),
		zap.Int("ordinance_files", len(set.Ordinances)),
		zap.Int("ordinance_rows", len(set.OrdinanceRecords())),
		zap.Int("skipped_rows", set.SkippedRows()),
		zap.Int("log_records", len(set.RuntimeLog.Records)))

	return set, nil
}

// ReadManifest reads and decodes only the jurisdiction manifest of a run
// directory, for standalone verification without a full artifact read. It
// returns the manifest entries and the source files directory.
func ReadManifest(root string, maxSize int64) ([]model.Jurisdiction, string, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxJSONSize
	}

	sourceDir := filepath.Join(root, sourceFilesDir)
	if fi, err := os.Stat(sourceDir); err != nil || !fi.IsDir() {
		return nil, "", &MissingArtifactError{Artifact: sourceFilesDir, Path: sourceDir}
	}

	data, err := readBounded(root, manifestFile, maxSize)
	if err != nil {
		return nil, "", err
	}
	js, err := decodeJurisdictions(manifestFile, data)
	if err != nil {
		return nil, "", err
	}
	return js, sourceDir, nil
}

// readBounded stats the artifact first and refuses to read it at all when it
// exceeds the size bound.
func readBounded(root, name string, limit int64) ([]byte, error) {
	path := filepath.Join(root, name)

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingArtifactError{Artifact: name, Path: path}
		}
		return nil, eris.Wrapf(err, "artifact: stat %s", name)
	}
	if fi.Size() > limit {
		return nil, &OversizedArtifactError{Artifact: name, Size: fi.Size(), Limit: limit}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: read %s", name)
	}
	return data, nil
}

// readMetadataFile resolves the run metadata artifact: meta.json when
// present, falling back to the legacy config.json name.
func readMetadataFile(root string, limit int64) (string, []byte, error) {
	data, err := readBounded(root, metaFile, limit)
	if err == nil {
		return metaFile, data, nil
	}
	if !IsMissing(err) {
		return "", nil, err
	}

	data, err = readBounded(root, legacyMetaFile, limit)
	if err == nil {
		return legacyMetaFile, data, nil
	}
	if IsMissing(err) {
		return "", nil, &MissingArtifactError{Artifact: "run metadata (meta.json or config.json)", Path: filepath.Join(root, metaFile)}
	}
	return "", nil, err
}
