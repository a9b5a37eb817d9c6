// Package store persists decoded run artifacts. All derived rows of one run
// are written in a single transaction under a fresh bookkeeper record, so the
// database only ever holds complete runs.
package store

import (
	"context"
	"fmt"

	"github.com/NREL/COMPASS/internal/artifact"
	"github.com/NREL/COMPASS/internal/model"
)

// SchemaVersion is recorded in schema_info when the schema is created.
const SchemaVersion = "0.1.0"

// Entity families written during one ingestion, in write order. A
// TransactionAbortedError names the family whose writer failed.
const (
	FamilyJurisdictions = "jurisdictions"
	FamilyOrdinances    = "ordinances"
	FamilyUsage         = "usage"
	FamilyLogs          = "logs"
	FamilyConfig        = "config"
)

// RunInfo is the operator-supplied attribution recorded on the bookkeeper
// row of an ingestion.
type RunInfo struct {
	Username string
	Comment  string
}

// TransactionAbortedError reports an ingestion whose transaction was rolled
// back. No partial state remains in the database.
type TransactionAbortedError struct {
	Family string // entity family whose writer failed
	Err    error
}

func (e *TransactionAbortedError) Error() string {
	return fmt.Sprintf("ingestion aborted writing %s, transaction rolled back: %v", e.Family, e.Err)
}

func (e *TransactionAbortedError) Unwrap() error { return e.Err }

// extraJSON renders the unmodeled metadata fields for the scraper_config
// extra column. An empty bag stores as an empty object rather than NULL so
// consumers can always json-parse the column.
func extraJSON(extra model.ExtraFields) string {
	if extra.IsEmpty() {
		return "{}"
	}
	return extra.String()
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Store is the persistence interface for the ordinance database. Two
// backends implement it: PostgresStore for shared deployments and
// SQLiteStore for the embedded single-file case.
type Store interface {
	// InitSchema creates the tables and id sequences. Safe to run
	// repeatedly.
	InitSchema(ctx context.Context) error

	// Ingest writes the whole artifact set under one new bookkeeper row,
	// atomically: either every derived row lands, or none do. Returns the
	// bookkeeper id every written row references.
	Ingest(ctx context.Context, run RunInfo, set *artifact.Set) (int64, error)

	// ListRuns returns bookkeeper records, newest first.
	ListRuns(ctx context.Context, limit int) ([]model.ProvenanceRecord, error)

	// Ordinances returns every stored ordinance row in insertion order.
	Ordinances(ctx context.Context) ([]model.OrdinanceRecord, error)

	Close() error
}
