package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRunDir lays out a minimal complete run directory.
func writeRunDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"meta.json": `{"model": "gpt-4", "llm_service_rate_limit": 4000, "tech": "wind"}`,
		"usage.json": `{
			"total_time_seconds": 642.1,
			"total_time": "0:10:42",
			"Decatur County, Indiana": {
				"total_time_seconds": 642.1,
				"tracker_totals": {"requests": 14, "prompt_tokens": 1400, "response_tokens": 280}
			}
		}`,
		"jurisdictions.json": `{"jurisdictions": [{
			"full_name": "Decatur County, Indiana",
			"county": "Decatur",
			"state": "Indiana",
			"fips": 18031,
			"found": true,
			"total_time": 642.1,
			"total_time_string": "0:10:42",
			"documents": [{
				"source": "https://decaturcounty.in.gov/ordinance.pdf",
				"ord_year": 2022,
				"ord_filename": "Decatur County, Indiana.pdf",
				"num_pages": 14,
				"checksum": "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
			}]
		}]}`,
		"quantitative_ordinances.csv": ordinanceHeader +
			"Decatur,Indiana,,county,18031,turbine height,500,feet,,,,max height,2022,,county site\n",
		filepath.Join("logs", "all.log"): "[2025-12-06 15:15:14,272] INFO - Task-1: Running COMPASS\n" +
			"[2025-12-06 15:15:15,100] DEBUG - Task-1: noisy detail\n" +
			"[2025-12-06 15:15:16,900] ERROR - Task-1: scrape failed\n",
		filepath.Join("ordinance_files", "Decatur County, Indiana.pdf"): "pdf bytes",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestOpen(t *testing.T) {
	root := writeRunDir(t)

	set, err := Open(context.Background(), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, metaFile, set.MetadataFile)
	assert.Equal(t, "gpt-4", set.Metadata.Model)
	assert.Equal(t, filepath.Join(root, sourceFilesDir), set.SourceDir)

	assert.Equal(t, 642.1, set.Usage.TotalTimeSeconds)
	require.Len(t, set.Usage.Items, 1)

	require.Len(t, set.Jurisdictions, 1)
	assert.Equal(t, "Decatur County, Indiana", set.Jurisdictions[0].FullName)
	require.Len(t, set.Jurisdictions[0].Documents, 1)

	require.Len(t, set.Ordinances, 1)
	assert.Equal(t, quantitativeFile, set.Ordinances[0].Name)
	require.Len(t, set.OrdinanceRecords(), 1)
	assert.Equal(t, "turbine height", set.OrdinanceRecords()[0].Feature)
	assert.Zero(t, set.SkippedRows())

	require.Len(t, set.RuntimeLog.Records, 2) // DEBUG line filtered out
	assert.Equal(t, 1, set.RuntimeLog.Filtered)
	assert.Zero(t, set.RuntimeLog.Dropped)
}

func TestOpen_LegacyConfigFallback(t *testing.T) {
	root := writeRunDir(t)
	require.NoError(t, os.Rename(filepath.Join(root, metaFile), filepath.Join(root, legacyMetaFile)))

	set, err := Open(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, legacyMetaFile, set.MetadataFile)
	assert.Equal(t, "gpt-4", set.Metadata.Model)
}

func TestOpen_MissingRunDir(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "no_such_run"), Options{})
	require.Error(t, err)
	assert.True(t, IsMissing(err))
}

func TestOpen_MissingArtifacts(t *testing.T) {
	cases := []struct {
		name   string
		remove string
		want   string
	}{
		{"metadata", metaFile, "meta.json"},
		{"usage", usageFile, "usage.json"},
		{"manifest", manifestFile, "jurisdictions.json"},
		{"runtime log", filepath.Join("logs", "all.log"), "logs/all.log"},
		{"quantitative csv", quantitativeFile, quantitativeFile},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := writeRunDir(t)
			require.NoError(t, os.Remove(filepath.Join(root, tc.remove)))

			_, err := Open(context.Background(), root, Options{})
			require.Error(t, err)
			assert.True(t, IsMissing(err), "got %v", err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestOpen_MissingSourceDir(t *testing.T) {
	root := writeRunDir(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, sourceFilesDir)))

	_, err := Open(context.Background(), root, Options{})
	require.Error(t, err)
	assert.True(t, IsMissing(err))
	assert.Contains(t, err.Error(), sourceFilesDir)
}

func TestOpen_OversizedNeverParsed(t *testing.T) {
	root := writeRunDir(t)

	// Garbage over the size bound: rejected on size alone, so the content is
	// never decoded.
	junk := strings.Repeat("x", DefaultMaxJSONSize+1)
	require.NoError(t, os.WriteFile(filepath.Join(root, metaFile), []byte(junk), 0o644))

	_, err := Open(context.Background(), root, Options{})
	require.Error(t, err)
	assert.True(t, IsOversized(err), "got %v", err)
	assert.False(t, IsMalformed(err))
	assert.Contains(t, err.Error(), metaFile)
}

func TestRunHash_Deterministic(t *testing.T) {
	root := writeRunDir(t)

	first, err := Open(context.Background(), root, Options{})
	require.NoError(t, err)
	second, err := Open(context.Background(), root, Options{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first.RunHash(), "sha256:"))
	assert.Len(t, first.RunHash(), len("sha256:")+64)
	assert.Equal(t, first.RunHash(), second.RunHash())
}

func TestRunHash_TracksContent(t *testing.T) {
	root := writeRunDir(t)

	before, err := Open(context.Background(), root, Options{})
	require.NoError(t, err)

	path := filepath.Join(root, quantitativeFile)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	content = append(content, []byte("Box Elder,Utah,,county,49003,noise,,,,,,,,,site\n")...)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	after, err := Open(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, before.RunHash(), after.RunHash())
}

func TestReadManifest(t *testing.T) {
	root := writeRunDir(t)

	js, sourceDir, err := ReadManifest(root, 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, sourceFilesDir), sourceDir)
	require.Len(t, js, 1)
	assert.Equal(t, "Decatur County, Indiana", js[0].FullName)
	require.Len(t, js[0].Documents, 1)
	assert.Equal(t, "Decatur County, Indiana.pdf", js[0].Documents[0].Filename)
}

func TestReadManifest_MissingSourceDir(t *testing.T) {
	root := writeRunDir(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, sourceFilesDir)))

	_, _, err := ReadManifest(root, 0)
	require.Error(t, err)
	assert.True(t, IsMissing(err))
	assert.Contains(t, err.Error(), sourceFilesDir)
}

func TestReadManifest_MalformedManifest(t *testing.T) {
	root := writeRunDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, manifestFile), []byte("{"), 0o644))

	_, _, err := ReadManifest(root, 0)
	require.Error(t, err)
	assert.True(t, IsMalformed(err), "got %v", err)
}
