package artifact

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/NREL/COMPASS/internal/checksum"
	"github.com/NREL/COMPASS/internal/model"
)

const (
	ordinancePattern = "*_ordinances.csv"
	quantitativeFile = "quantitative_ordinances.csv"
)

// ordinanceColumns are the canonical columns of an ordinance CSV, in the
// order the scraper writes them. The quantitative file must carry all of
// them.
var ordinanceColumns = []string{
	"county", "state", "subdivision", "jurisdiction_type", "fips",
	"feature", "value", "units", "offset", "min_dist", "max_dist",
	"summary", "ord_year", "section", "source",
}

// columnAliases folds historical header spellings into the canonical names.
// The scraper's own header spells subdivision without the second "i".
var columnAliases = map[string]string{
	"subdivison": "subdivision",
	"adder":      "offset",
}

// identityColumns must resolve in every ordinance CSV, canonical or not.
var identityColumns = []string{"county", "state", "fips", "feature"}

// discoverOrdinanceFiles globs the run root for ordinance CSVs and returns
// their base names in sorted order. The quantitative file is mandatory; any
// other *_ordinances.csv rides along.
func discoverOrdinanceFiles(root string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(root, ordinancePattern))
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: glob %s", ordinancePattern)
	}

	var names []string
	for _, m := range matches {
		if fi, err := os.Stat(m); err != nil || fi.IsDir() {
			continue
		}
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)

	required := false
	for _, n := range names {
		if n == quantitativeFile {
			required = true
			break
		}
	}
	if !required {
		return nil, &MissingArtifactError{Artifact: quantitativeFile, Path: filepath.Join(root, quantitativeFile)}
	}

	return names, nil
}

// readOrdinanceFile streams one ordinance CSV, decoding rows and digesting
// the raw bytes in a single pass. Rows that fail to parse are skipped and
// counted, never fatal.
func readOrdinanceFile(root, name string) (*OrdinanceFile, string, error) {
	path := filepath.Join(root, name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", &MissingArtifactError{Artifact: name, Path: path}
		}
		return nil, "", eris.Wrapf(err, "artifact: open %s", name)
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	reader := csv.NewReader(io.TeeReader(f, h))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, "", &MalformedArtifactError{Artifact: name, Reason: "read CSV header", Err: err}
	}

	colIdx, err := mapOrdinanceColumns(name, header)
	if err != nil {
		return nil, "", err
	}

	file := &OrdinanceFile{Name: name}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			file.SkippedRows++ // malformed row, e.g. wrong field count
			continue
		}
		rec, ok := decodeOrdinanceRow(record, colIdx)
		if !ok {
			file.SkippedRows++
			continue
		}
		file.Records = append(file.Records, *rec)
	}

	sum := checksum.Prefix + hex.EncodeToString(h.Sum(nil))
	return file, sum, nil
}

// mapOrdinanceColumns resolves column positions from a header, folding case
// and historical aliases. The quantitative file must resolve every canonical
// column; additional files only the identity columns.
func mapOrdinanceColumns(name string, header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		c := strings.ToLower(strings.TrimSpace(col))
		if canonical, ok := columnAliases[c]; ok {
			c = canonical
		}
		if _, dup := idx[c]; !dup {
			idx[c] = i
		}
	}

	required := identityColumns
	if name == quantitativeFile {
		required = ordinanceColumns
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, &MalformedArtifactError{Artifact: name, Reason: "missing column " + strconv.Quote(col)}
		}
	}
	return idx, nil
}

func decodeOrdinanceRow(record []string, colIdx map[string]int) (*model.OrdinanceRecord, bool) {
	col := func(name string) string {
		i, ok := colIdx[name]
		if !ok || i >= len(record) {
			return ""
		}
		return cleanField(record[i])
	}

	fips, err := strconv.ParseInt(col("fips"), 10, 64)
	if err != nil {
		return nil, false
	}

	rec := &model.OrdinanceRecord{
		County:           col("county"),
		State:            col("state"),
		Subdivision:      col("subdivision"),
		JurisdictionType: col("jurisdiction_type"),
		FIPS:             fips,
		Feature:          col("feature"),
		Units:            col("units"),
		Summary:          col("summary"),
		Section:          col("section"),
		Source:           col("source"),
	}

	var ok bool
	if rec.Value, ok = parseOptFloat(col("value")); !ok {
		return nil, false
	}
	if rec.Offset, ok = parseOptFloat(col("offset")); !ok {
		return nil, false
	}
	if rec.MinDist, ok = parseOptFloat(col("min_dist")); !ok {
		return nil, false
	}
	if rec.MaxDist, ok = parseOptFloat(col("max_dist")); !ok {
		return nil, false
	}
	if rec.OrdYear, ok = parseOptInt(col("ord_year")); !ok {
		return nil, false
	}

	return rec, true
}

// parseOptFloat parses an optional numeric column. Blank means absent; a
// non-blank value that fails to parse invalidates the row.
func parseOptFloat(s string) (*float64, bool) {
	if s == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

func parseOptInt(s string) (*int, bool) {
	if s == "" {
		return nil, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, false
	}
	return &v, true
}

// cleanField trims surrounding whitespace and repairs fields the scraper
// wrote in Windows-1252 instead of UTF-8.
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if utf8.ValidString(s) {
		return s
	}
	if fixed, err := charmap.Windows1252.NewDecoder().String(s); err == nil {
		return fixed
	}
	return strings.ToValidUTF8(s, "")
}
