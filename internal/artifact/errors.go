package artifact

import (
	"errors"
	"fmt"
)

// MissingArtifactError reports that a required file or directory of the run
// layout is absent.
type MissingArtifactError struct {
	Artifact string // artifact name, e.g. "jurisdictions.json"
	Path     string // path that was checked
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing artifact %s: %s not found", e.Artifact, e.Path)
}

// OversizedArtifactError reports that a JSON artifact exceeds the size bound.
// The file is rejected before any parse attempt.
type OversizedArtifactError struct {
	Artifact string
	Size     int64
	Limit    int64
}

func (e *OversizedArtifactError) Error() string {
	return fmt.Sprintf("oversized artifact %s: %d bytes exceeds limit of %d", e.Artifact, e.Size, e.Limit)
}

// MalformedArtifactError reports structurally invalid artifact content:
// undecodable bytes or a required field that is absent.
type MalformedArtifactError struct {
	Artifact string
	Reason   string
	Err      error // underlying decode error, when there is one
}

func (e *MalformedArtifactError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed artifact %s: %s: %v", e.Artifact, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed artifact %s: %s", e.Artifact, e.Reason)
}

func (e *MalformedArtifactError) Unwrap() error { return e.Err }

// IsMissing reports whether err is (or wraps) a MissingArtifactError.
func IsMissing(err error) bool {
	var e *MissingArtifactError
	return errors.As(err, &e)
}

// IsOversized reports whether err is (or wraps) an OversizedArtifactError.
func IsOversized(err error) bool {
	var e *OversizedArtifactError
	return errors.As(err, &e)
}

// IsMalformed reports whether err is (or wraps) a MalformedArtifactError.
func IsMalformed(err error) bool {
	var e *MalformedArtifactError
	return errors.As(err, &e)
}
