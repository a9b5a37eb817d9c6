package checksum

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NREL/COMPASS/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFile_KnownDigest(t *testing.T) {
	path := writeFile(t, t.TempDir(), "doc.txt", "hello world")

	sum, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", sum)
}

func TestFile_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", "ordinance body text")
	b := writeFile(t, dir, "b.pdf", "ordinance body text")

	sumA, err := File(a)
	require.NoError(t, err)
	sumA2, err := File(a)
	require.NoError(t, err)
	sumB, err := File(b)
	require.NoError(t, err)

	assert.Equal(t, sumA, sumA2)
	assert.Equal(t, sumA, sumB) // same content, different name
}

func TestFile_NotFound(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
}

func manifestFor(docs ...model.Document) []model.Jurisdiction {
	return []model.Jurisdiction{{
		FullName:  "Decatur County, Indiana",
		County:    "Decatur",
		State:     "Indiana",
		FIPS:      18031,
		Found:     true,
		Documents: docs,
	}}
}

func TestVerify_AllOutcomes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.pdf", "hello world")
	writeFile(t, dir, "tampered.pdf", "altered content")
	writeFile(t, dir, "stray.pdf", "nobody declared me")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	goodSum, err := File(filepath.Join(dir, "good.pdf"))
	require.NoError(t, err)

	manifest := manifestFor(
		model.Document{Filename: "good.pdf", Checksum: goodSum, Source: "county site", OrdYear: 2022, NumPages: 4},
		model.Document{Filename: "tampered.pdf", Checksum: "sha256:0000000000000000000000000000000000000000000000000000000000000000", Source: "county site", OrdYear: 2023, NumPages: 2},
		model.Document{Filename: "vanished.pdf", Checksum: "sha256:1111111111111111111111111111111111111111111111111111111111111111", Source: "county site", OrdYear: 2024, NumPages: 9},
	)

	report, err := Verify(context.Background(), manifest, dir, 2)
	require.NoError(t, err)

	require.Len(t, report.Confirmed, 1)
	assert.Equal(t, "good.pdf", report.Confirmed[0].Filename)
	assert.Equal(t, goodSum, report.Confirmed[0].Computed)

	require.Len(t, report.Mismatched, 1)
	assert.Equal(t, "tampered.pdf", report.Mismatched[0].Filename)
	assert.NotEqual(t, report.Mismatched[0].Declared, report.Mismatched[0].Computed)

	require.Len(t, report.Unknown, 1)
	assert.Equal(t, "stray.pdf", report.Unknown[0].Filename)

	require.Len(t, report.Missing, 1)
	assert.Equal(t, "vanished.pdf", report.Missing[0].Filename)

	assert.False(t, report.Clean())
	assert.Equal(t, 4, report.Total())
}

func TestVerify_CleanRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.pdf", "content a")
	writeFile(t, dir, "b.pdf", "content b")

	sumA, err := File(filepath.Join(dir, "a.pdf"))
	require.NoError(t, err)
	sumB, err := File(filepath.Join(dir, "b.pdf"))
	require.NoError(t, err)

	manifest := manifestFor(
		model.Document{Filename: "a.pdf", Checksum: sumA},
		model.Document{Filename: "b.pdf", Checksum: sumB},
	)

	report, err := Verify(context.Background(), manifest, dir, 0)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Len(t, report.Confirmed, 2)
}

func TestVerify_EmptyManifestEmptyDir(t *testing.T) {
	report, err := Verify(context.Background(), nil, t.TempDir(), 4)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Zero(t, report.Total())
}

func TestVerify_SourceDirMissing(t *testing.T) {
	_, err := Verify(context.Background(), nil, filepath.Join(t.TempDir(), "no_such_dir"), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read source directory")
}
