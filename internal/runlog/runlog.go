// Package runlog parses the scraper's free-text runtime log into structured
// records and applies the severity retention policy used for ingestion.
package runlog

import (
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Level is a severity token emitted by the scraper's (Python) runtime.
type Level string

const (
	LevelDebugToFile Level = "DEBUG_TO_FILE"
	LevelTrace       Level = "TRACE"
	LevelDebug       Level = "DEBUG"
	LevelInfo        Level = "INFO"
	LevelWarning     Level = "WARNING"
	LevelError       Level = "ERROR"
)

// ParseLevel parses a level token. Matching is strict: only the exact
// uppercase tokens the runtime emits are accepted.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelDebugToFile, LevelTrace, LevelDebug, LevelInfo, LevelWarning, LevelError:
		return Level(s), nil
	}
	return "", eris.Errorf("runlog: unknown level %q", s)
}

// Retained reports whether records at this level are kept for ingestion.
// The verbose levels are discarded to bound volume.
func (l Level) Retained() bool {
	return l == LevelInfo || l == LevelWarning || l == LevelError
}

// Record is one structured runtime log line.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
}

// RuntimeLog is the retained subset of a parsed runtime log. Dropped counts
// lines that did not match the line format or carried an unknown level;
// Filtered counts well-formed records below the retention threshold.
type RuntimeLog struct {
	Records  []Record `json:"records"`
	Dropped  int      `json:"dropped"`
	Filtered int      `json:"filtered"`
}

// Line format: [timestamp] LEVEL - subject: message
var lineRE = regexp.MustCompile(`^\[([^\]]+)\]\s+(\w+)\s+-\s+([^:]+):\s+(.+)$`)

// timestampLayout matches the runtime's %Y-%m-%d %H:%M:%S,%3f format.
const timestampLayout = "2006-01-02 15:04:05,000"

// ParseRecord parses a single physical log line. Multi-line messages are not
// supported; a continuation line fails the format match.
func ParseRecord(line string) (Record, error) {
	caps := lineRE.FindStringSubmatch(line)
	if caps == nil {
		return Record{}, eris.Errorf("runlog: line does not match log format: %q", line)
	}

	ts, err := time.Parse(timestampLayout, caps[1])
	if err != nil {
		return Record{}, eris.Wrapf(err, "runlog: parse timestamp %q", caps[1])
	}

	level, err := ParseLevel(caps[2])
	if err != nil {
		return Record{}, err
	}

	return Record{
		Timestamp: ts,
		Level:     level,
		Subject:   caps[3],
		Message:   caps[4],
	}, nil
}

// Parse splits text into non-empty trimmed lines and parses each
// independently, in order. Lines that fail to parse are dropped with a
// diagnostic rather than failing the whole log: a best-effort record of the
// run is preferable to no record at all.
func Parse(text string) *RuntimeLog {
	log := zap.L().With(zap.String("component", "runlog"))

	out := &RuntimeLog{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		rec, err := ParseRecord(line)
		if err != nil {
			log.Debug("dropping unparseable log line", zap.Error(err))
			out.Dropped++
			continue
		}
		if !rec.Level.Retained() {
			out.Filtered++
			continue
		}
		out.Records = append(out.Records, rec)
	}

	return out
}
