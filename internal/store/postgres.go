package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/NREL/COMPASS/internal/artifact"
	"github.com/NREL/COMPASS/internal/db"
	"github.com/NREL/COMPASS/internal/model"
	"github.com/NREL/COMPASS/internal/runlog"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS schema_info (
	version    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE SEQUENCE IF NOT EXISTS bookkeeper_sequence START 1;
CREATE TABLE IF NOT EXISTS bookkeeper (
	id         BIGINT PRIMARY KEY DEFAULT nextval('bookkeeper_sequence'),
	hash       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	username   TEXT,
	comment    TEXT,
	model      TEXT
);

CREATE SEQUENCE IF NOT EXISTS jurisdiction_sequence START 1;
CREATE TABLE IF NOT EXISTS jurisdiction (
	id                BIGINT PRIMARY KEY DEFAULT nextval('jurisdiction_sequence'),
	bookkeeper_lnk    BIGINT NOT NULL REFERENCES bookkeeper(id),
	full_name         TEXT NOT NULL,
	county            TEXT NOT NULL,
	state             TEXT NOT NULL,
	subdivision       TEXT,
	jurisdiction_type TEXT,
	fips              BIGINT NOT NULL,
	found             BOOLEAN NOT NULL,
	total_time        DOUBLE PRECISION,
	total_time_string TEXT
);

CREATE SEQUENCE IF NOT EXISTS archive_sequence START 1;
CREATE TABLE IF NOT EXISTS archive (
	id               BIGINT PRIMARY KEY DEFAULT nextval('archive_sequence'),
	bookkeeper_lnk   BIGINT NOT NULL REFERENCES bookkeeper(id),
	jurisdiction_lnk BIGINT NOT NULL REFERENCES jurisdiction(id),
	source           TEXT,
	ord_year         INTEGER,
	filename         TEXT NOT NULL,
	num_pages        INTEGER,
	checksum         TEXT NOT NULL,
	access_time      TEXT
);

CREATE SEQUENCE IF NOT EXISTS ordinance_sequence START 1;
CREATE TABLE IF NOT EXISTS ordinance (
	id                BIGINT PRIMARY KEY DEFAULT nextval('ordinance_sequence'),
	bookkeeper_lnk    BIGINT NOT NULL REFERENCES bookkeeper(id),
	county            TEXT NOT NULL,
	state             TEXT NOT NULL,
	subdivision       TEXT,
	jurisdiction_type TEXT,
	fips              BIGINT NOT NULL,
	feature           TEXT NOT NULL,
	value             DOUBLE PRECISION,
	units             TEXT,
	"offset"          DOUBLE PRECISION,
	min_dist          DOUBLE PRECISION,
	max_dist          DOUBLE PRECISION,
	summary           TEXT,
	ord_year          INTEGER,
	section           TEXT,
	source            TEXT
);

CREATE SEQUENCE IF NOT EXISTS usage_sequence START 1;
CREATE TABLE IF NOT EXISTS usage (
	id             BIGINT PRIMARY KEY DEFAULT nextval('usage_sequence'),
	bookkeeper_lnk BIGINT NOT NULL REFERENCES bookkeeper(id),
	total_time     DOUBLE PRECISION NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE SEQUENCE IF NOT EXISTS usage_per_item_sequence START 1;
CREATE TABLE IF NOT EXISTS usage_per_item (
	id                    BIGINT PRIMARY KEY DEFAULT nextval('usage_per_item_sequence'),
	bookkeeper_lnk        BIGINT NOT NULL REFERENCES bookkeeper(id),
	usage_lnk             BIGINT NOT NULL REFERENCES usage(id),
	name                  TEXT NOT NULL,
	total_time            DOUBLE PRECISION,
	total_requests        BIGINT NOT NULL,
	total_prompt_tokens   BIGINT NOT NULL,
	total_response_tokens BIGINT NOT NULL
);

CREATE SEQUENCE IF NOT EXISTS usage_event_sequence START 1;
CREATE TABLE IF NOT EXISTS usage_event (
	id                 BIGINT PRIMARY KEY DEFAULT nextval('usage_event_sequence'),
	bookkeeper_lnk     BIGINT NOT NULL REFERENCES bookkeeper(id),
	usage_per_item_lnk BIGINT NOT NULL REFERENCES usage_per_item(id),
	event              TEXT NOT NULL,
	requests           BIGINT NOT NULL,
	prompt_tokens      BIGINT NOT NULL,
	response_tokens    BIGINT NOT NULL
);

CREATE SEQUENCE IF NOT EXISTS logs_sequence START 1;
CREATE TABLE IF NOT EXISTS logs (
	id             BIGINT PRIMARY KEY DEFAULT nextval('logs_sequence'),
	bookkeeper_lnk BIGINT NOT NULL REFERENCES bookkeeper(id),
	timestamp      TIMESTAMPTZ,
	level          TEXT,
	subject        TEXT,
	message        TEXT
);

CREATE SEQUENCE IF NOT EXISTS scraper_config_sequence START 1;
CREATE TABLE IF NOT EXISTS scraper_config (
	id                     BIGINT PRIMARY KEY DEFAULT nextval('scraper_config_sequence'),
	bookkeeper_lnk         BIGINT NOT NULL REFERENCES bookkeeper(id),
	model                  TEXT NOT NULL,
	llm_service_rate_limit BIGINT,
	extra                  TEXT
);

CREATE INDEX IF NOT EXISTS idx_jurisdiction_bookkeeper ON jurisdiction(bookkeeper_lnk);
CREATE INDEX IF NOT EXISTS idx_archive_jurisdiction ON archive(jurisdiction_lnk);
CREATE INDEX IF NOT EXISTS idx_ordinance_bookkeeper ON ordinance(bookkeeper_lnk);
CREATE INDEX IF NOT EXISTS idx_ordinance_fips ON ordinance(fips);
CREATE INDEX IF NOT EXISTS idx_logs_bookkeeper ON logs(bookkeeper_lnk);
`

// Bulk-written tables go through COPY; id and created_at fall back to their
// column defaults.
var (
	ordinanceCopyColumns = []string{
		"bookkeeper_lnk", "county", "state", "subdivision", "jurisdiction_type",
		"fips", "feature", "value", "units", "offset", "min_dist", "max_dist",
		"summary", "ord_year", "section", "source",
	}
	logCopyColumns = []string{"bookkeeper_lnk", "timestamp", "level", "subject", "message"}
)

func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return eris.Wrap(err, "postgres: create schema")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO schema_info (version) SELECT $1 WHERE NOT EXISTS (SELECT 1 FROM schema_info)`,
		SchemaVersion,
	)
	return eris.Wrap(err, "postgres: record schema version")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Ingest writes the artifact set in one transaction. The bookkeeper row goes
// first so every writer can reference its id; any writer failure rolls the
// whole transaction back.
func (s *PostgresStore) Ingest(ctx context.Context, run RunInfo, set *artifact.Set) (int64, error) {
	log := zap.L().With(zap.String("component", "store"))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin ingest")
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO bookkeeper (hash, created_at, username, comment, model)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		set.RunHash(), time.Now().UTC(), run.Username, run.Comment, set.Metadata.Model,
	).Scan(&id)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, eris.Wrap(err, "postgres: insert bookkeeper")
	}

	if err := s.writeFamilies(ctx, tx, id, set); err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit ingest")
	}

	log.Info("run ingested",
		zap.Int64("bookkeeper_id", id),
		zap.String("hash", set.RunHash()),
		zap.Int("jurisdictions", len(set.Jurisdictions)),
		zap.Int("ordinance_rows", len(set.OrdinanceRecords())),
		zap.Int("log_records", len(set.RuntimeLog.Records)))

	return id, nil
}

func (s *PostgresStore) writeFamilies(ctx context.Context, tx pgx.Tx, id int64, set *artifact.Set) error {
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

func (s *PostgresStore) writeJurisdictions(ctx context.Context, tx pgx.Tx, bid int64, js []model.Jurisdiction) error {
	for _, j := range js {
		var jid int64
		err := tx.QueryRow(ctx,
			`INSERT INTO jurisdiction
			 (bookkeeper_lnk, full_name, county, state, subdivision, jurisdiction_type,
			  fips, found, total_time, total_time_string)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
			bid, j.FullName, j.County, j.State, j.Subdivision, j.JurisdictionType,
			j.FIPS, j.Found, j.TotalTime, j.TotalTimeString,
		).Scan(&jid)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert jurisdiction %s", j.FullName)
		}

		for _, d := range j.Documents {
			if _, err := tx.Exec(ctx,
				`INSERT INTO archive
				 (bookkeeper_lnk, jurisdiction_lnk, source, ord_year, filename, num_pages, checksum, access_time)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				bid, jid, d.Source, d.OrdYear, d.Filename, d.NumPages, d.Checksum, d.AccessTime,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert archive %s", d.Filename)
			}
		}
	}
	return nil
}

func (s *PostgresStore) writeOrdinances(ctx context.Context, tx pgx.Tx, bid int64, records []model.OrdinanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			bid, r.County, r.State, r.Subdivision, r.JurisdictionType,
			r.FIPS, r.Feature, r.Value, r.Units, r.Offset, r.MinDist, r.MaxDist,
			r.Summary, r.OrdYear, r.Section, r.Source,
		})
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"ordinance"}, ordinanceCopyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return eris.Wrap(err, "postgres: copy ordinance rows")
	}
	if n != int64(len(records)) {
		return eris.Errorf("postgres: copied %d of %d ordinance rows", n, len(records))
	}
	return nil
}

func (s *PostgresStore) writeUsage(ctx context.Context, tx pgx.Tx, bid int64, u *model.Usage) error {
	var uid int64
	err := tx.QueryRow(ctx,
		`INSERT INTO usage (bookkeeper_lnk, total_time) VALUES ($1, $2) RETURNING id`,
		bid, u.TotalTimeSeconds,
	).Scan(&uid)
	if err != nil {
		return eris.Wrap(err, "postgres: insert usage")
	}

	for _, item := range u.Items {
		var iid int64
		err := tx.QueryRow(ctx,
			`INSERT INTO usage_per_item
			 (bookkeeper_lnk, usage_lnk, name, total_time, total_requests, total_prompt_tokens, total_response_tokens)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			bid, uid, item.Name, item.TotalTimeSeconds,
			item.Totals.Requests, item.Totals.PromptTokens, item.Totals.ResponseTokens,
		).Scan(&iid)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert usage item %s", item.Name)
		}

		for _, ev := range item.Events {
			if _, err := tx.Exec(ctx,
				`INSERT INTO usage_event
				 (bookkeeper_lnk, usage_per_item_lnk, event, requests, prompt_tokens, response_tokens)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				bid, iid, ev.Name, ev.Requests, ev.PromptTokens, ev.ResponseTokens,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert usage event %s", ev.Name)
			}
		}
	}
	return nil
}

func (s *PostgresStore) writeLogs(ctx context.Context, tx pgx.Tx, bid int64, rl *runlog.RuntimeLog) error {
	if rl == nil || len(rl.Records) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(rl.Records))
	for _, rec := range rl.Records {
		rows = append(rows, []any{bid, rec.Timestamp, string(rec.Level), rec.Subject, rec.Message})
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"logs"}, logCopyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return eris.Wrap(err, "postgres: copy log records")
	}
	if n != int64(len(rl.Records)) {
		return eris.Errorf("postgres: copied %d of %d log records", n, len(rl.Records))
	}
	return nil
}

func (s *PostgresStore) writeConfig(ctx context.Context, tx pgx.Tx, bid int64, md *model.RunMetadata) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO scraper_config (bookkeeper_lnk, model, llm_service_rate_limit, extra)
		 VALUES ($1, $2, $3, $4)`,
		bid, md.Model, md.RateLimit, extraJSON(md.Extra),
	)
	return eris.Wrap(err, "postgres: insert scraper config")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.ProvenanceRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, hash, created_at, username, comment, model
		 FROM bookkeeper ORDER BY id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ProvenanceRecord
	for rows.Next() {
		var r model.ProvenanceRecord
		var username, comment, modelName *string
		if err := rows.Scan(&r.ID, &r.Hash, &r.CreatedAt, &username, &comment, &modelName); err != nil {
			return nil, eris.Wrap(err, "postgres: scan bookkeeper row")
		}
		r.Username, r.Comment, r.Model = orEmpty(username), orEmpty(comment), orEmpty(modelName)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) Ordinances(ctx context.Context) ([]model.OrdinanceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT county, state, subdivision, jurisdiction_type, fips, feature, value, units,
		        "offset", min_dist, max_dist, summary, ord_year, section, source
		 FROM ordinance ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query ordinances")
	}
	defer rows.Close()

	var records []model.OrdinanceRecord
	for rows.Next() {
		var r model.OrdinanceRecord
		var subdivision, jurisdictionType, units, summary, section, source *string
		if err := rows.Scan(
			&r.County, &r.State, &subdivision, &jurisdictionType, &r.FIPS, &r.Feature,
			&r.Value, &units, &r.Offset, &r.MinDist, &r.MaxDist, &summary,
			&r.OrdYear, &section, &source,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ordinance row")
		}
		r.Subdivision, r.JurisdictionType = orEmpty(subdivision), orEmpty(jurisdictionType)
		r.Units, r.Summary = orEmpty(units), orEmpty(summary)
		r.Section, r.Source = orEmpty(section), orEmpty(source)
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: ordinances iterate")
}
