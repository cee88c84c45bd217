// Package pagecache implements the persistent, content-addressed page
// store (spec §4.F): a single SQLite database with pages and searches
// tables, upsert-by-id, section extraction, and age-based pruning.
//
// Initialization is retry-bounded: after repeated open failures the store
// reports itself unavailable and every operation becomes a no-op, so the
// executor can fall back to inline content instead of failing the run.
package pagecache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Page is the cached-page record of spec §3.
type Page struct {
	ID                string
	URL               string
	Title             string
	Content           string
	Summary           string
	FetchedAt         time.Time
	ContentLength     int
	CompressedLength  int
	ContentType       string
}

// SearchRecord is a row in the searches table.
type SearchRecord struct {
	ID          string
	Query       string
	ResultsJSON string
	SearchedAt  time.Time
	Source      string
}

// Store owns the SQLite connection and degraded-mode bookkeeping.
type Store struct {
	mu          sync.Mutex
	conn        *sql.DB
	available   bool
	openRetries int
}

// MaxOpenRetries bounds how many consecutive open failures are tolerated
// before the store gives up and reports unavailable, per spec §4.F.
const MaxOpenRetries = 3

// Open opens or creates the database at path in WAL mode with a busy
// timeout, then runs versioned migrations. If opening fails, Open retries
// up to MaxOpenRetries times before returning a Store in degraded mode
// rather than an error, matching spec §4.F's "unavailable" fail mode.
func Open(path string) *Store {
	s := &Store{}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	var lastErr error
	for attempt := 0; attempt < MaxOpenRetries; attempt++ {
		conn, err := sql.Open("sqlite", dsn)
		if err != nil {
			lastErr = err
			continue
		}
		if err := conn.Ping(); err != nil {
			lastErr = err
			_ = conn.Close()
			continue
		}
		if err := migrate(conn); err != nil {
			lastErr = err
			_ = conn.Close()
			continue
		}
		s.conn = conn
		s.available = true
		return s
	}
	s.available = false
	s.openRetries = MaxOpenRetries
	log.Warn().Err(lastErr).Str("path", path).Int("retries", MaxOpenRetries).
		Msg("page cache open failed after all retries; degrading to unavailable mode")
	return s
}

// Available reports whether the store is serving reads/writes.
func (s *Store) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Close releases the underlying connection, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func migrate(conn *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pages (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			fetched_at INTEGER NOT NULL,
			content_length INTEGER NOT NULL DEFAULT 0,
			compressed_length INTEGER NOT NULL DEFAULT 0,
			content_type TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_fetched_at ON pages(fetched_at)`,
		`CREATE TABLE IF NOT EXISTS searches (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			results_json TEXT NOT NULL DEFAULT '',
			searched_at INTEGER NOT NULL,
			source TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_searches_searched_at ON searches(searched_at)`,
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("pagecache migration failed: %w\nSQL: %s", err, stmt)
		}
	}

	version := schemaVersion(conn)
	if version < 1 {
		// v1: FTS5 virtual table synced to pages(content), with fallback
		// when the running SQLite build lacks the FTS5 module.
		if _, err := conn.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS pages_fts USING fts5(
			title, content,
			content=pages, content_rowid=rowid
		)`); err == nil {
			_, _ = conn.Exec(`INSERT INTO pages_fts(pages_fts) VALUES('rebuild')`)
		}
		if err := setMeta(conn, "schema_version", "1"); err != nil {
			return err
		}
	}
	return nil
}

func schemaVersion(conn *sql.DB) int {
	var v string
	if err := conn.QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&v); err != nil {
		return 0
	}
	n, _ := strconv.Atoi(v)
	return n
}

func setMeta(conn *sql.DB, key, value string) error {
	_, err := conn.Exec(`INSERT INTO schema_meta(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// PageID returns the first 12 hex characters of sha256(url) — id is a pure
// function of url, so storing the same URL twice replaces the row.
func PageID(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:12]
}

// StorePage upserts a page by its content-addressed id. The same URL never
// creates two rows.
func (s *Store) StorePage(ctx context.Context, url, title, content, contentType string, fetchedAt time.Time) (string, error) {
	if !s.Available() {
		return "", nil
	}
	id := PageID(url)
	summary := summaryOf(content)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO pages (id, url, title, content, summary, fetched_at, content_length, compressed_length, content_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url, title = excluded.title, content = excluded.content,
			summary = excluded.summary, fetched_at = excluded.fetched_at,
			content_length = excluded.content_length, compressed_length = excluded.compressed_length,
			content_type = excluded.content_type`,
		id, url, title, content, summary, fetchedAt.Unix(), len(content), len(content), contentType,
	)
	if err != nil {
		return "", fmt.Errorf("pagecache: store_page: %w", err)
	}
	return id, nil
}

// GetPage returns the page stored under id, or ok=false if absent or the
// store is unavailable.
func (s *Store) GetPage(ctx context.Context, id string) (Page, bool) {
	if !s.Available() {
		return Page{}, false
	}
	return s.scanPage(ctx, `SELECT id, url, title, content, summary, fetched_at, content_length, compressed_length, content_type FROM pages WHERE id = ?`, id)
}

// GetPageByURL returns the page stored for url if fresher than maxAge (when
// maxAge > 0), or ok=false if absent, stale, or the store is unavailable.
func (s *Store) GetPageByURL(ctx context.Context, url string, maxAge time.Duration) (Page, bool) {
	if !s.Available() {
		return Page{}, false
	}
	p, ok := s.scanPage(ctx, `SELECT id, url, title, content, summary, fetched_at, content_length, compressed_length, content_type FROM pages WHERE url = ?`, url)
	if !ok {
		return Page{}, false
	}
	if maxAge > 0 && time.Since(p.FetchedAt) > maxAge {
		return Page{}, false
	}
	return p, true
}

func (s *Store) scanPage(ctx context.Context, query string, arg string) (Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var p Page
	var fetchedAt int64
	err := s.conn.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.URL, &p.Title, &p.Content, &p.Summary, &fetchedAt, &p.ContentLength, &p.CompressedLength, &p.ContentType,
	)
	if err != nil {
		return Page{}, false
	}
	p.FetchedAt = time.Unix(fetchedAt, 0)
	return p, true
}

// GetPageSection finds the first case-insensitive occurrence of keyword in
// the page's content and returns a window of maxChars centered on it, whose
// start and end are each moved outward to the nearest paragraph boundary
// ("\n\n") within 500 characters. The snapped window is not cut back, so it
// can be up to 1000 characters longer than maxChars (plus the "[…]"
// markers). If keyword is absent (or empty), the leading maxChars are
// returned instead.
func (s *Store) GetPageSection(ctx context.Context, id, keyword string, maxChars int) (string, bool) {
	p, ok := s.GetPage(ctx, id)
	if !ok {
		return "", false
	}
	if maxChars <= 0 {
		maxChars = 5000
	}
	return extractSection(p.Content, keyword, maxChars), true
}

func extractSection(content, keyword string, maxChars int) string {
	if len(content) <= maxChars {
		return content
	}
	idx := -1
	if strings.TrimSpace(keyword) != "" {
		idx = strings.Index(strings.ToLower(content), strings.ToLower(keyword))
	}
	if idx < 0 {
		window := content[:maxChars]
		return strings.TrimSpace(window) + " […]"
	}
	half := maxChars / 2
	start := idx - half
	if start < 0 {
		start = 0
	}
	end := start + maxChars
	if end > len(content) {
		end = len(content)
		start = end - maxChars
		if start < 0 {
			start = 0
		}
	}
	start = snapToParagraph(content, start, 500, false)
	end = snapToParagraph(content, end, 500, true)

	window := content[start:end]
	if start > 0 {
		window = "[…] " + window
	}
	if end < len(content) {
		window = window + " […]"
	}
	return strings.TrimSpace(window)
}

// snapToParagraph nudges idx to the nearest "\n\n" within maxShift
// characters, searching forward if forward is true.
func snapToParagraph(content string, idx, maxShift int, forward bool) int {
	if forward {
		limit := idx + maxShift
		if limit > len(content) {
			limit = len(content)
		}
		if pos := strings.Index(content[idx:limit], "\n\n"); pos >= 0 {
			return idx + pos
		}
		return idx
	}
	start := idx - maxShift
	if start < 0 {
		start = 0
	}
	if pos := strings.LastIndex(content[start:idx], "\n\n"); pos >= 0 {
		return start + pos + 2
	}
	return idx
}

func summaryOf(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= 200 {
		return content
	}
	return content[:200]
}

// GetPageReference formats the cache reference string that is the only
// artifact of this store allowed to cross the LLM boundary.
func (s *Store) GetPageReference(ctx context.Context, id string) (string, bool) {
	p, ok := s.GetPage(ctx, id)
	if !ok {
		return "", false
	}
	summary := p.Summary
	if strings.TrimSpace(summary) == "" {
		summary = summaryOf(p.Content)
	}
	if len(summary) > 200 {
		summary = summary[:200]
	}
	host := hostOf(p.URL)
	return fmt.Sprintf("[cached:%s] %q (%s) — %s", p.ID, p.Title, host, summary), true
}

func hostOf(rawURL string) string {
	u := strings.TrimPrefix(rawURL, "https://")
	u = strings.TrimPrefix(u, "http://")
	if i := strings.IndexAny(u, "/?#"); i >= 0 {
		u = u[:i]
	}
	return u
}

// StoreSearch upserts a search record. id is the caller's choice (e.g. the
// normalized query's fingerprint).
func (s *Store) StoreSearch(ctx context.Context, id, query, resultsJSON, source string, searchedAt time.Time) error {
	if !s.Available() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO searches (id, query, results_json, searched_at, source)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			query = excluded.query, results_json = excluded.results_json,
			searched_at = excluded.searched_at, source = excluded.source`,
		id, query, resultsJSON, searchedAt.Unix(), source,
	)
	if err != nil {
		return fmt.Errorf("pagecache: store_search: %w", err)
	}
	return nil
}

// PruneOlderThan deletes pages and searches older than cutoff, returning
// the number of rows removed from each table.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (pagesRemoved, searchesRemoved int, err error) {
	if !s.Available() {
		return 0, 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.conn.ExecContext(ctx, `DELETE FROM pages WHERE fetched_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, 0, fmt.Errorf("pagecache: prune pages: %w", err)
	}
	pn, _ := res.RowsAffected()
	res2, err := s.conn.ExecContext(ctx, `DELETE FROM searches WHERE searched_at < ?`, cutoff.Unix())
	if err != nil {
		return int(pn), 0, fmt.Errorf("pagecache: prune searches: %w", err)
	}
	sn, _ := res2.RowsAffected()
	return int(pn), int(sn), nil
}
