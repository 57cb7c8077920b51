package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labhacker007/Joti-sub001/internal/duplicate"
	"github.com/labhacker007/Joti-sub001/internal/guardrail"

	_ "modernc.org/sqlite"
)

// SQLite implements guardrail.Repository and duplicate.ArticleSource.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenSQLite opens (creating if needed) the database at dbPath and applies
// the schema. ":memory:" is accepted for tests.
func OpenSQLite(dbPath string, log *zap.Logger) (*SQLite, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dsn := dbPath
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: SQLite serializes writers and ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS guardrails (
		id          TEXT PRIMARY KEY,
		seq         INTEGER NOT NULL,
		status      TEXT NOT NULL,
		body        TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_guardrails_seq ON guardrails(seq);

	CREATE TABLE IF NOT EXISTS guardrail_overrides (
		function      TEXT NOT NULL,
		guardrail_id  TEXT NOT NULL REFERENCES guardrails(id),
		enabled       INTEGER NOT NULL,
		severity      TEXT,
		config        TEXT,
		updated_by    TEXT,
		updated_at    TEXT NOT NULL,
		PRIMARY KEY (function, guardrail_id)
	);
	CREATE INDEX IF NOT EXISTS idx_overrides_guardrail ON guardrail_overrides(guardrail_id);

	CREATE TABLE IF NOT EXISTS guardrail_audit (
		id            TEXT PRIMARY KEY,
		guardrail_id  TEXT NOT NULL,
		function      TEXT,
		action        TEXT NOT NULL,
		old_value     TEXT,
		new_value     TEXT,
		user          TEXT,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_guardrail ON guardrail_audit(guardrail_id);

	CREATE TABLE IF NOT EXISTS articles (
		id            TEXT PRIMARY KEY,
		source_id     TEXT,
		title         TEXT NOT NULL,
		content       TEXT,
		summary       TEXT,
		url           TEXT,
		published_at  INTEGER,
		created_at    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_articles_created ON articles(created_at);
	CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn in a transaction. The mutation and its audit entry commit together.
func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertAudit(ctx context.Context, tx *sql.Tx, e guardrail.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO guardrail_audit (id, guardrail_id, function, action, old_value, new_value, user, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.GuardrailID, e.Function, string(e.Action), nullableJSON(e.Old), nullableJSON(e.New), e.User, formatTime(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

func (s *SQLite) SaveDefinition(ctx context.Context, d *guardrail.Definition, audit guardrail.AuditEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var seq int64
		err := tx.QueryRowContext(ctx, `SELECT seq FROM guardrails WHERE id = ?`, d.ID).Scan(&seq)
		if errors.Is(err, sql.ErrNoRows) {
			if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM guardrails`).Scan(&seq); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		d.Seq = seq

		body, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to encode guardrail %s: %w", d.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO guardrails (id, seq, status, body, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET status = excluded.status, body = excluded.body, updated_at = excluded.updated_at`,
			d.ID, seq, string(d.Status), string(body), formatTime(d.UpdatedAt),
		)
		if err != nil {
			return err
		}
		return insertAudit(ctx, tx, audit)
	})
}

func (s *SQLite) GetDefinition(ctx context.Context, id string) (guardrail.Definition, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM guardrails WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return guardrail.Definition{}, guardrail.ErrNotFound
	}
	if err != nil {
		return guardrail.Definition{}, err
	}
	return decodeDefinition(body)
}

func (s *SQLite) ListDefinitions(ctx context.Context) ([]guardrail.Definition, error) {
	return s.queryDefinitions(ctx, `SELECT body FROM guardrails ORDER BY seq`)
}

// ListActive loads active rows and applies the scope filters in Go. Function
// and platform sets live inside the JSON body.
func (s *SQLite) ListActive(ctx context.Context, function, platform string) ([]guardrail.Definition, error) {
	all, err := s.queryDefinitions(ctx, `SELECT body FROM guardrails WHERE status = ? ORDER BY seq`, string(guardrail.StatusActive))
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, d := range all {
		if guardrail.Applies(d, function, platform) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *SQLite) queryDefinitions(ctx context.Context, query string, args ...any) ([]guardrail.Definition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []guardrail.Definition
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		d, err := decodeDefinition(body)
		if err != nil {
			s.log.Error("undecodable guardrail row", zap.Error(err))
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func decodeDefinition(body string) (guardrail.Definition, error) {
	var d guardrail.Definition
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return guardrail.Definition{}, fmt.Errorf("failed to decode guardrail: %w", err)
	}
	return d, nil
}

func (s *SQLite) DeleteDefinition(ctx context.Context, id string, audit guardrail.AuditEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM guardrail_overrides WHERE guardrail_id = ?`, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return guardrail.ErrReferenced
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM guardrails WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return guardrail.ErrNotFound
		}
		return insertAudit(ctx, tx, audit)
	})
}

func (s *SQLite) SaveOverride(ctx context.Context, o guardrail.Override, audit guardrail.AuditEntry) error {
	cfg, err := encodeConfig(o.Config)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM guardrails WHERE id = ?`, o.GuardrailID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return guardrail.ErrNotFound
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO guardrail_overrides (function, guardrail_id, enabled, severity, config, updated_by, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(function, guardrail_id) DO UPDATE SET
			   enabled = excluded.enabled, severity = excluded.severity, config = excluded.config,
			   updated_by = excluded.updated_by, updated_at = excluded.updated_at`,
			o.Function, o.GuardrailID, boolInt(o.Enabled), string(o.Severity), cfg, o.UpdatedBy, formatTime(o.UpdatedAt),
		)
		if err != nil {
			return err
		}
		return insertAudit(ctx, tx, audit)
	})
}

func (s *SQLite) DeleteOverride(ctx context.Context, function, guardrailID string, audit guardrail.AuditEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM guardrail_overrides WHERE function = ? AND guardrail_id = ?`, function, guardrailID)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return guardrail.ErrNotFound
		}
		return insertAudit(ctx, tx, audit)
	})
}

func (s *SQLite) ListOverrides(ctx context.Context, function string) ([]guardrail.Override, error) {
	query := `SELECT function, guardrail_id, enabled, severity, config, updated_by, updated_at FROM guardrail_overrides`
	var args []any
	if function != "" {
		query += ` WHERE function = ?`
		args = append(args, function)
	}
	query += ` ORDER BY function, guardrail_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []guardrail.Override
	for rows.Next() {
		var (
			o                 guardrail.Override
			enabled           int
			severity, cfg, by sql.NullString
			updatedAt         string
		)
		if err := rows.Scan(&o.Function, &o.GuardrailID, &enabled, &severity, &cfg, &by, &updatedAt); err != nil {
			return nil, err
		}
		o.Enabled = enabled != 0
		o.Severity = guardrail.Severity(severity.String)
		o.UpdatedBy = by.String
		o.UpdatedAt = parseTime(updatedAt)
		if cfg.Valid && cfg.String != "" {
			if err := json.Unmarshal([]byte(cfg.String), &o.Config); err != nil {
				return nil, fmt.Errorf("failed to decode override config %s/%s: %w", o.Function, o.GuardrailID, err)
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLite) CountOverrides(ctx context.Context, guardrailID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guardrail_overrides WHERE guardrail_id = ?`, guardrailID).Scan(&n)
	return n, err
}

func (s *SQLite) ListAudit(ctx context.Context, guardrailID string, limit int) ([]guardrail.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, guardrail_id, function, action, old_value, new_value, user, created_at FROM guardrail_audit`
	var args []any
	if guardrailID != "" {
		query += ` WHERE guardrail_id = ?`
		args = append(args, guardrailID)
	}
	query += ` ORDER BY rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []guardrail.AuditEntry
	for rows.Next() {
		var (
			e                        guardrail.AuditEntry
			function, oldV, newV, by sql.NullString
			action, at               string
		)
		if err := rows.Scan(&e.ID, &e.GuardrailID, &function, &action, &oldV, &newV, &by, &at); err != nil {
			return nil, err
		}
		e.Function = function.String
		e.Action = guardrail.AuditAction(action)
		if oldV.Valid {
			e.Old = json.RawMessage(oldV.String)
		}
		if newV.Valid {
			e.New = json.RawMessage(newV.String)
		}
		e.User = by.String
		e.Timestamp = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveArticle stores an ingested article, assigning an id and creation time
// when missing.
func (s *SQLite) SaveArticle(ctx context.Context, a *duplicate.Article) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var published sql.NullInt64
	if a.PublishedAt != nil {
		published = sql.NullInt64{Int64: a.PublishedAt.UnixNano(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (id, source_id, title, content, summary, url, published_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SourceID, a.Title, a.Content, a.Summary, a.URL, published, a.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save article: %w", err)
	}
	return nil
}

func (s *SQLite) RecentArticles(ctx context.Context, since time.Time) ([]duplicate.Article, error) {
	cutoff := since.UnixNano()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, title, content, summary, url, published_at, created_at
		 FROM articles WHERE created_at >= ? OR published_at >= ?
		 ORDER BY created_at DESC`, cutoff, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []duplicate.Article
	for rows.Next() {
		var (
			a                                duplicate.Article
			source, content, summary, rawURL sql.NullString
			published                        sql.NullInt64
			created                          int64
		)
		if err := rows.Scan(&a.ID, &source, &a.Title, &content, &summary, &rawURL, &published, &created); err != nil {
			return nil, err
		}
		a.SourceID, a.Content, a.Summary, a.URL = source.String, content.String, summary.String, rawURL.String
		if published.Valid {
			t := time.Unix(0, published.Int64).UTC()
			a.PublishedAt = &t
		}
		a.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func encodeConfig(cfg map[string]any) (sql.NullString, error) {
	if len(cfg) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode override config: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
