// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/pkg/types"
)

// DefaultRecallLimit is the number of past records returned when the caller
// passes a non-positive limit.
const DefaultRecallLimit = 3

// PastRecord is one remembered research run.
type PastRecord struct {
	Query       string    `json:"query" yaml:"query"`
	Summary     string    `json:"summary" yaml:"summary"`
	KeyFindings []string  `json:"key_findings" yaml:"key_findings"`
	ItemCount   int       `json:"item_count" yaml:"item_count"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Recall is a SQLite store of past research with an FTS5 index over the
// query, summary and findings.
type Recall struct {
	db  *sql.DB
	now func() time.Time
}

// OpenRecall opens or creates the store at path.
func OpenRecall(path string) (*Recall, error) {
	if path == "" {
		return nil, eris.New("memory: recall store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "memory: create recall store directory")
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, eris.Wrap(err, "memory: open recall store")
	}

	r := &Recall{db: db, now: time.Now}
	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "memory: create recall schema")
	}
	return r, nil
}

// Close releases the database connection.
func (r *Recall) Close() error {
	return r.db.Close()
}

func (r *Recall) createSchema() error {
	if _, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS research (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		summary TEXT,
		findings TEXT,
		item_count INTEGER,
		created_at TEXT NOT NULL
	)`); err != nil {
		return err
	}

	var ftsExists int
	if err := r.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='research_fts'`,
	).Scan(&ftsExists); err != nil {
		return err
	}
	if ftsExists > 0 {
		return nil
	}

	for _, stmt := range []string{
		`CREATE VIRTUAL TABLE research_fts USING fts5(query, summary, findings, content=research, content_rowid=id)`,
		`CREATE TRIGGER research_ai AFTER INSERT ON research BEGIN
			INSERT INTO research_fts(rowid, query, summary, findings) VALUES (new.id, new.query, new.summary, new.findings);
		END`,
		`CREATE TRIGGER research_ad AFTER DELETE ON research BEGIN
			INSERT INTO research_fts(research_fts, rowid, query, summary, findings) VALUES('delete', old.id, old.query, old.summary, old.findings);
		END`,
	} {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Remember stores one finished run.
func (r *Recall) Remember(ctx context.Context, query string, rs types.ResultSet, a types.Analysis) error {
	findings := a.KeyFindings()
	if findings == nil {
		findings = []string{}
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return eris.Wrap(err, "memory: encode findings")
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO research (query, summary, findings, item_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		query, a.Summary(), string(findingsJSON), rs.Total(), r.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return eris.Wrapf(err, "memory: remember %q", query)
	}
	zap.L().Debug("research remembered", zap.String("query", query), zap.Int("items", rs.Total()))
	return nil
}

// RecallSimilar returns up to limit past runs matching any word of query,
// best match first. Store failures yield an empty result.
func (r *Recall) RecallSimilar(ctx context.Context, query string, limit int) []PastRecord {
	match := ftsQuery(query)
	if match == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultRecallLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT r.query, r.summary, r.findings, r.item_count, r.created_at
		FROM research_fts
		JOIN research r ON r.id = research_fts.rowid
		WHERE research_fts MATCH ?
		ORDER BY research_fts.rank, r.id DESC
		LIMIT ?`, match, limit)
	if err != nil {
		zap.L().Warn("recall query failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	defer rows.Close()

	var records []PastRecord
	for rows.Next() {
		var (
			rec          PastRecord
			summary      sql.NullString
			findingsJSON sql.NullString
			itemCount    sql.NullInt64
			createdAt    string
		)
		if err := rows.Scan(&rec.Query, &summary, &findingsJSON, &itemCount, &createdAt); err != nil {
			zap.L().Warn("recall scan failed", zap.Error(err))
			return nil
		}
		rec.Summary = summary.String
		rec.ItemCount = int(itemCount.Int64)
		if findingsJSON.Valid {
			json.Unmarshal([]byte(findingsJSON.String), &rec.KeyFindings)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		zap.L().Warn("recall iteration failed", zap.Error(err))
		return nil
	}
	return records
}

// ContextFor formats similar past runs as a prompt section. It returns ""
// when nothing matches.
func (r *Recall) ContextFor(ctx context.Context, query string, limit int) string {
	records := r.RecallSimilar(ctx, query, limit)
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant Past Research:\n")
	for _, rec := range records {
		fmt.Fprintf(&b, "- %q (%s, %d items)", rec.Query, rec.CreatedAt.Format("2006-01-02"), rec.ItemCount)
		if rec.Summary != "" {
			fmt.Fprintf(&b, ": %s", clip(rec.Summary, 200))
		}
		b.WriteString("\n")
		for i, f := range rec.KeyFindings {
			if i == 2 {
				break
			}
			fmt.Fprintf(&b, "  * %s\n", clip(f, 150))
		}
	}
	return b.String()
}

// Count returns the number of remembered runs.
func (r *Recall) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM research`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "memory: count research")
	}
	return n, nil
}

// ftsQuery turns free text into an FTS5 OR-query of quoted terms, so
// punctuation in the user's query cannot break the MATCH syntax.
func ftsQuery(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	var terms []string
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
