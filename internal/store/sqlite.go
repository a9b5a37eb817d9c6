package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/NREL/COMPASS/internal/artifact"
	"github.com/NREL/COMPASS/internal/model"
	"github.com/NREL/COMPASS/internal/runlog"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// Pragmas apply per connection, and a single writer avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS schema_info (
	version    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS bookkeeper (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	hash       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	username   TEXT,
	comment    TEXT,
	model      TEXT
);

CREATE TABLE IF NOT EXISTS jurisdiction (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	bookkeeper_lnk    INTEGER NOT NULL REFERENCES bookkeeper(id),
	full_name         TEXT NOT NULL,
	county            TEXT NOT NULL,
	state             TEXT NOT NULL,
	subdivision       TEXT,
	jurisdiction_type TEXT,
	fips              INTEGER NOT NULL,
	found             BOOLEAN NOT NULL,
	total_time        REAL,
	total_time_string TEXT
);

CREATE TABLE IF NOT EXISTS archive (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	bookkeeper_lnk   INTEGER NOT NULL REFERENCES bookkeeper(id),
	jurisdiction_lnk INTEGER NOT NULL REFERENCES jurisdiction(id),
	source           TEXT,
	ord_year         INTEGER,
	filename         TEXT NOT NULL,
	num_pages        INTEGER,
	checksum         TEXT NOT NULL,
	access_time      TEXT
);

CREATE TABLE IF NOT EXISTS ordinance (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	bookkeeper_lnk    INTEGER NOT NULL REFERENCES bookkeeper(id),
	county            TEXT NOT NULL,
	state             TEXT NOT NULL,
	subdivision       TEXT,
	jurisdiction_type TEXT,
	fips              INTEGER NOT NULL,
	feature           TEXT NOT NULL,
	value             REAL,
	units             TEXT,
	"offset"          REAL,
	min_dist          REAL,
	max_dist          REAL,
	summary           TEXT,
	ord_year          INTEGER,
	section           TEXT,
	source            TEXT
);

CREATE TABLE IF NOT EXISTS usage (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	bookkeeper_lnk INTEGER NOT NULL REFERENCES bookkeeper(id),
	total_time     REAL NOT NULL,
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_per_item (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	bookkeeper_lnk        INTEGER NOT NULL REFERENCES bookkeeper(id),
	usage_lnk             INTEGER NOT NULL REFERENCES usage(id),
	name                  TEXT NOT NULL,
	total_time            REAL,
	total_requests        INTEGER NOT NULL,
	total_prompt_tokens   INTEGER NOT NULL,
	total_response_tokens INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_event (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	bookkeeper_lnk     INTEGER NOT NULL REFERENCES bookkeeper(id),
	usage_per_item_lnk INTEGER NOT NULL REFERENCES usage_per_item(id),
	event              TEXT NOT NULL,
	requests           INTEGER NOT NULL,
	prompt_tokens      INTEGER NOT NULL,
	response_tokens    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS logs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	bookkeeper_lnk INTEGER NOT NULL REFERENCES bookkeeper(id),
	timestamp      DATETIME,
	level          TEXT,
	subject        TEXT,
	message        TEXT
);

CREATE TABLE IF NOT EXISTS scraper_config (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	bookkeeper_lnk         INTEGER NOT NULL REFERENCES bookkeeper(id),
	model                  TEXT NOT NULL,
	llm_service_rate_limit INTEGER,
	extra                  TEXT
);

CREATE INDEX IF NOT EXISTS idx_jurisdiction_bookkeeper ON jurisdiction(bookkeeper_lnk);
CREATE INDEX IF NOT EXISTS idx_archive_jurisdiction ON archive(jurisdiction_lnk);
CREATE INDEX IF NOT EXISTS idx_ordinance_bookkeeper ON ordinance(bookkeeper_lnk);
CREATE INDEX IF NOT EXISTS idx_ordinance_fips ON ordinance(fips);
CREATE INDEX IF NOT EXISTS idx_logs_bookkeeper ON logs(bookkeeper_lnk);
`

func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return eris.Wrap(err, "sqlite: create schema")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schema_info (version) SELECT ? WHERE NOT EXISTS (SELECT 1 FROM schema_info)`,
		SchemaVersion,
	)
	return eris.Wrap(err, "sqlite: record schema version")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ingest writes the artifact set in one transaction, mirroring the Postgres
// backend: bookkeeper row first, then every family, rollback on any failure.
func (s *SQLiteStore) Ingest(ctx context.Context, run RunInfo, set *artifact.Set) (int64, error) {
	log := zap.L().With(zap.String("component", "store"))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin ingest")
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookkeeper (hash, created_at, username, comment, model) VALUES (?, ?, ?, ?, ?)`,
		set.RunHash(), time.Now().UTC(), run.Username, run.Comment, set.Metadata.Model,
	)
	if err != nil {
		_ = tx.Rollback()
		return 0, eris.Wrap(err, "sqlite: insert bookkeeper")
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, eris.Wrap(err, "sqlite: bookkeeper id")
	}

	if err := s.writeFamilies(ctx, tx, id, set); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit ingest")
	}

	log.Info("run ingested",
		zap.Int64("bookkeeper_id", id),
		zap.String("hash", set.RunHash()),
		zap.Int("jurisdictions", len(set.Jurisdictions)),
		zap.Int("ordinance_rows", len(set.OrdinanceRecords())),
		zap.Int("log_records", len(set.RuntimeLog.Records)))

	return id, nil
}

func (s *SQLiteStore) writeFamilies(ctx context.Context, tx *sql.Tx, id int64, set *artifact.Set) error {
	if err := s.writeJurisdictions(ctx, tx, id, set.Jurisdictions); err != nil {
		return &TransactionAbortedError{Family: FamilyJurisdictions, Err: err}
	}
	if err := s.writeOrdinances(ctx, tx, id, set.OrdinanceRecords()); err != nil {
		return &TransactionAbortedError{Family: FamilyOrdinances, Err: err}
	}
	if err := s.writeUsage(ctx, tx, id, set.Usage); err != nil {
		return &TransactionAbortedError{Family: FamilyUsage, Err: err}
	}
	if err := s.writeLogs(ctx, tx, id, set.RuntimeLog); err != nil {
		return &TransactionAbortedError{Family: FamilyLogs, Err: err}
	}
	if err := s.writeConfig(ctx, tx, id, set.Metadata); err != nil {
		return &TransactionAbortedError{Family: FamilyConfig, Err: err}
	}
	return nil
}

func (s *SQLiteStore) writeJurisdictions(ctx context.Context, tx *sql.Tx, bid int64, js []model.Jurisdiction) error {
	for _, j := range js {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO jurisdiction
			 (bookkeeper_lnk, full_name, county, state, subdivision, jurisdiction_type,
			  fips, found, total_time, total_time_string)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			bid, j.FullName, j.County, j.State, j.Subdivision, j.JurisdictionType,
			j.FIPS, j.Found, j.TotalTime, j.TotalTimeString,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert jurisdiction %s", j.FullName)
		}
		jid, err := res.LastInsertId()
		if err != nil {
			return eris.Wrap(err, "sqlite: jurisdiction id")
		}

		for _, d := range j.Documents {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO archive
				 (bookkeeper_lnk, jurisdiction_lnk, source, ord_year, filename, num_pages, checksum, access_time)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				bid, jid, d.Source, d.OrdYear, d.Filename, d.NumPages, d.Checksum, d.AccessTime,
			); err != nil {
				return eris.Wrapf(err, "sqlite: insert archive %s", d.Filename)
			}
		}
	}
	return nil
}

func (s *SQLiteStore) writeOrdinances(ctx context.Context, tx *sql.Tx, bid int64, records []model.OrdinanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ordinance
		 (bookkeeper_lnk, county, state, subdivision, jurisdiction_type, fips, feature,
		  value, units, "offset", min_dist, max_dist, summary, ord_year, section, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare ordinance insert")
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			bid, r.County, r.State, r.Subdivision, r.JurisdictionType, r.FIPS, r.Feature,
			r.Value, r.Units, r.Offset, r.MinDist, r.MaxDist, r.Summary, r.OrdYear, r.Section, r.Source,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert ordinance row for %s", r.Feature)
		}
	}
	return nil
}

func (s *SQLiteStore) writeUsage(ctx context.Context, tx *sql.Tx, bid int64, u *model.Usage) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO usage (bookkeeper_lnk, total_time, created_at) VALUES (?, ?, ?)`,
		bid, u.TotalTimeSeconds, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert usage")
	}
	uid, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: usage id")
	}

	for _, item := range u.Items {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO usage_per_item
			 (bookkeeper_lnk, usage_lnk, name, total_time, total_requests, total_prompt_tokens, total_response_tokens)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			bid, uid, item.Name, item.TotalTimeSeconds,
			item.Totals.Requests, item.Totals.PromptTokens, item.Totals.ResponseTokens,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert usage item %s", item.Name)
		}
		iid, err := res.LastInsertId()
		if err != nil {
			return eris.Wrap(err, "sqlite: usage item id")
		}

		for _, ev := range item.Events {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO usage_event
				 (bookkeeper_lnk, usage_per_item_lnk, event, requests, prompt_tokens, response_tokens)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				bid, iid, ev.Name, ev.Requests, ev.PromptTokens, ev.ResponseTokens,
			); err != nil {
				return eris.Wrapf(err, "sqlite: insert usage event %s", ev.Name)
			}
		}
	}
	return nil
}

func (s *SQLiteStore) writeLogs(ctx context.Context, tx *sql.Tx, bid int64, rl *runlog.RuntimeLog) error {
	if rl == nil || len(rl.Records) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO logs (bookkeeper_lnk, timestamp, level, subject, message) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare log insert")
	}
	defer stmt.Close()

	for _, rec := range rl.Records {
		if _, err := stmt.ExecContext(ctx,
			bid, rec.Timestamp, string(rec.Level), rec.Subject, rec.Message,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert log record")
		}
	}
	return nil
}

func (s *SQLiteStore) writeConfig(ctx context.Context, tx *sql.Tx, bid int64, md *model.RunMetadata) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO scraper_config (bookkeeper_lnk, model, llm_service_rate_limit, extra)
		 VALUES (?, ?, ?, ?)`,
		bid, md.Model, md.RateLimit, extraJSON(md.Extra),
	)
	return eris.Wrap(err, "sqlite: insert scraper config")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.ProvenanceRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hash, created_at, username, comment, model
		 FROM bookkeeper ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.ProvenanceRecord
	for rows.Next() {
		var r model.ProvenanceRecord
		var username, comment, modelName sql.NullString
		if err := rows.Scan(&r.ID, &r.Hash, &r.CreatedAt, &username, &comment, &modelName); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan bookkeeper row")
		}
		r.Username, r.Comment, r.Model = username.String, comment.String, modelName.String
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) Ordinances(ctx context.Context) ([]model.OrdinanceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT county, state, subdivision, jurisdiction_type, fips, feature, value, units,
		        "offset", min_dist, max_dist, summary, ord_year, section, source
		 FROM ordinance ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query ordinances")
	}
	defer rows.Close()

	var records []model.OrdinanceRecord
	for rows.Next() {
		var r model.OrdinanceRecord
		var subdivision, jurisdictionType, units, summary, section, source sql.NullString
		var value, offset, minDist, maxDist sql.NullFloat64
		var ordYear sql.NullInt64
		if err := rows.Scan(
			&r.County, &r.State, &subdivision, &jurisdictionType, &r.FIPS, &r.Feature,
			&value, &units, &offset, &minDist, &maxDist, &summary,
			&ordYear, &section, &source,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ordinance row")
		}
		r.Subdivision, r.JurisdictionType = subdivision.String, jurisdictionType.String
		r.Units, r.Summary = units.String, summary.String
		r.Section, r.Source = section.String, source.String
		if value.Valid {
			r.Value = &value.Float64
		}
		if offset.Valid {
			r.Offset = &offset.Float64
		}
		if minDist.Valid {
			r.MinDist = &minDist.Float64
		}
		if maxDist.Valid {
			r.MaxDist = &maxDist.Float64
		}
		if ordYear.Valid {
			year := int(ordYear.Int64)
			r.OrdYear = &year
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: ordinances iterate")
}
