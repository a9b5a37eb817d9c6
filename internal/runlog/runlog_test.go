package runlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord_SingleLine(t *testing.T) {
	rec, err := ParseRecord("[2025-12-06 15:15:14,272] INFO - Task-1: Running COMPASS")
	require.NoError(t, err)

	assert.Equal(t, LevelInfo, rec.Level)
	assert.Equal(t, "Task-1", rec.Subject)
	assert.Equal(t, "Running COMPASS", rec.Message)
	assert.Equal(t, time.Date(2025, 12, 6, 15, 15, 14, 272_000_000, time.UTC), rec.Timestamp)
}

func TestParseRecord_BadTimestamp(t *testing.T) {
	_, err := ParseRecord("[yesterday] INFO - Task-1: something happened")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse timestamp")
}

func TestParseRecord_NoMatch(t *testing.T) {
	_, err := ParseRecord("Traceback (most recent call last):")
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for _, tok := range []string{"DEBUG_TO_FILE", "TRACE", "DEBUG", "INFO", "WARNING", "ERROR"} {
		lvl, err := ParseLevel(tok)
		require.NoError(t, err)
		assert.Equal(t, Level(tok), lvl)
	}

	// Strict matching: only the exact uppercase tokens are valid.
	for _, tok := range []string{"info", "Warning", "FATAL", ""} {
		_, err := ParseLevel(tok)
		assert.Error(t, err, "token %q should not parse", tok)
	}
}

func TestLevel_Retained(t *testing.T) {
	assert.True(t, LevelInfo.Retained())
	assert.True(t, LevelWarning.Retained())
	assert.True(t, LevelError.Retained())

	assert.False(t, LevelTrace.Retained())
	assert.False(t, LevelDebug.Retained())
	assert.False(t, LevelDebugToFile.Retained())
}

func TestParse_RetentionAndOrder(t *testing.T) {
	text := `[2025-12-06 15:15:14,100] TRACE - Task-1: noisy detail
[2025-12-06 15:15:14,200] DEBUG - Task-1: more noise
[2025-12-06 15:15:14,272] INFO - Task-1: Running COMPASS
[2025-12-06 15:15:15,003] DEBUG_TO_FILE - Task-1: file-only noise

[2025-12-06 15:15:16,500] WARNING - Decatur County, Indiana: document not found
[2025-12-06 15:15:17,900] ERROR - Task-1: scrape failed
`

	rl := Parse(text)

	require.Len(t, rl.Records, 3)
	assert.Equal(t, LevelInfo, rl.Records[0].Level)
	assert.Equal(t, LevelWarning, rl.Records[1].Level)
	assert.Equal(t, LevelError, rl.Records[2].Level)
	assert.Equal(t, "Decatur County, Indiana", rl.Records[1].Subject)
	assert.Equal(t, "document not found", rl.Records[1].Message)

	assert.Equal(t, 3, rl.Filtered)
	assert.Equal(t, 0, rl.Dropped)
}

func TestParse_DropsMalformedLines(t *testing.T) {
	text := `[2025-12-06 15:15:14,272] INFO - Task-1: starting
Traceback (most recent call last):
  File "process.py", line 120, in run
[2025-12-06 15:15:15,000] SHOUTING - Task-1: unknown level token
[2025-12-06 15:15:16,000] ERROR - Task-1: crashed
`

	rl := Parse(text)

	require.Len(t, rl.Records, 2)
	assert.Equal(t, "starting", rl.Records[0].Message)
	assert.Equal(t, "crashed", rl.Records[1].Message)
	assert.Equal(t, 3, rl.Dropped)
	assert.Equal(t, 0, rl.Filtered)
}

func TestParse_EmptyInput(t *testing.T) {
	rl := Parse("")
	assert.Empty(t, rl.Records)
	assert.Zero(t, rl.Dropped)
	assert.Zero(t, rl.Filtered)
}

func TestParse_WindowsLineEndings(t *testing.T) {
	rl := Parse("[2025-12-06 15:15:14,272] INFO - Task-1: carriage returned\r\n")
	require.Len(t, rl.Records, 1)
	assert.Equal(t, "carriage returned", rl.Records[0].Message)
}
