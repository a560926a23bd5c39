// Package store persists filter settings, the local blocklist, and scraped
// comment archives in SQLite. Settings writes publish to subscribers so open
// views react to edits made elsewhere.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xnotehq/xnote/internal/types"
)

// Store handles all database operations.
type Store struct {
	db *sql.DB

	mu          sync.Mutex
	settingsSub []func(types.FilterSettings)
	shieldSub   []func(bool)
}

// New creates a Store with a SQLite backend at dbPath.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS filter_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		pattern TEXT NOT NULL,
		is_regex BOOLEAN NOT NULL DEFAULT 0,
		case_sensitive BOOLEAN NOT NULL DEFAULT 0,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS whitelist_users (
		handle TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS whitelist_posts (
		post_id TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS local_blocklist (
		handle TEXT PRIMARY KEY,
		blocked_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS comments (
		post_id TEXT NOT NULL,
		comment_id TEXT NOT NULL,
		username TEXT NOT NULL,
		date TEXT,
		text TEXT,
		likes INTEGER,
		replies INTEGER,
		reposts INTEGER,
		views INTEGER,
		scraped_at DATETIME NOT NULL,
		PRIMARY KEY (post_id, comment_id)
	);

	CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- settings ---

func (s *Store) getSetting(key, fallback string) string {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return fallback
	}
	return value
}

func (s *Store) setSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// FilterSettings assembles the persisted filter configuration.
func (s *Store) FilterSettings() (types.FilterSettings, error) {
	settings := types.DefaultFilterSettings()
	settings.Enabled = s.getSetting("filter_enabled", "false") == "true"
	settings.Scope = types.FilterScope(s.getSetting("filter_scope", string(types.ScopeAll)))
	settings.IncludeQuoted = s.getSetting("include_quoted", "true") == "true"

	rows, err := s.db.Query(`
		SELECT id, name, pattern, is_regex, case_sensitive, enabled
		FROM filter_rules ORDER BY position
	`)
	if err != nil {
		return settings, err
	}
	defer rows.Close()
	for rows.Next() {
		var r types.FilterRule
		if err := rows.Scan(&r.ID, &r.Name, &r.Pattern, &r.IsRegex, &r.CaseSensitive, &r.Enabled); err != nil {
			return settings, err
		}
		settings.Rules = append(settings.Rules, r)
	}
	if err := rows.Err(); err != nil {
		return settings, err
	}

	if settings.WhitelistUsers, err = s.column(`SELECT handle FROM whitelist_users`); err != nil {
		return settings, err
	}
	if settings.WhitelistPosts, err = s.column(`SELECT post_id FROM whitelist_posts`); err != nil {
		return settings, err
	}
	return settings, nil
}

// SaveFilterSettings replaces the persisted configuration and notifies
// subscribers.
func (s *Store) SaveFilterSettings(settings types.FilterSettings) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range map[string]string{
		"filter_enabled": strconv.FormatBool(settings.Enabled),
		"filter_scope":   string(settings.Scope),
		"include_quoted": strconv.FormatBool(settings.IncludeQuoted),
	} {
		if _, err := tx.Exec(`
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM filter_rules`); err != nil {
		return err
	}
	for i, r := range settings.Rules {
		if _, err := tx.Exec(`
			INSERT INTO filter_rules (id, name, pattern, is_regex, case_sensitive, enabled, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.Name, r.Pattern, r.IsRegex, r.CaseSensitive, r.Enabled, i); err != nil {
			return err
		}
	}

	if err := replaceColumn(tx, "whitelist_users", "handle", settings.WhitelistUsers); err != nil {
		return err
	}
	if err := replaceColumn(tx, "whitelist_posts", "post_id", settings.WhitelistPosts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.mu.Lock()
	subs := append([]func(types.FilterSettings){}, s.settingsSub...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(settings)
	}
	return nil
}

// OnSettingsChange registers a callback invoked after every settings save.
func (s *Store) OnSettingsChange(fn func(types.FilterSettings)) {
	s.mu.Lock()
	s.settingsSub = append(s.settingsSub, fn)
	s.mu.Unlock()
}

// ShieldEnabled reports whether community-blocklist folding is on.
// Defaults to on, matching a fresh install.
func (s *Store) ShieldEnabled() bool {
	return s.getSetting("shield_enabled", "true") == "true"
}

// SetShieldEnabled toggles community-blocklist folding and notifies
// subscribers.
func (s *Store) SetShieldEnabled(enabled bool) error {
	if err := s.setSetting("shield_enabled", strconv.FormatBool(enabled)); err != nil {
		return err
	}
	s.mu.Lock()
	subs := append([]func(bool){}, s.shieldSub...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(enabled)
	}
	return nil
}

// OnShieldToggle registers a callback for shield enable/disable transitions.
func (s *Store) OnShieldToggle(fn func(bool)) {
	s.mu.Lock()
	s.shieldSub = append(s.shieldSub, fn)
	s.mu.Unlock()
}

// --- local blocklist ---

// LocalBlocklist returns all locally blocked handles.
func (s *Store) LocalBlocklist() ([]string, error) {
	return s.column(`SELECT handle FROM local_blocklist ORDER BY handle`)
}

// AppendLocalBlock records a successful block action. Re-blocking an
// already-listed handle is a no-op.
func (s *Store) AppendLocalBlock(handle string) error {
	_, err := s.db.Exec(`
		INSERT INTO local_blocklist (handle, blocked_at) VALUES (?, ?)
		ON CONFLICT(handle) DO NOTHING
	`, handle, time.Now())
	return err
}

// --- comment archive ---

// SaveComments archives scraped rows for a thread. Rows already archived for
// the same thread are refreshed.
func (s *Store) SaveComments(postID string, rows []types.CommentRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, r := range rows {
		if _, err := tx.Exec(`
			INSERT INTO comments (post_id, comment_id, username, date, text, likes, replies, reposts, views, scraped_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(post_id, comment_id) DO UPDATE SET
				likes = excluded.likes,
				replies = excluded.replies,
				reposts = excluded.reposts,
				views = excluded.views,
				scraped_at = excluded.scraped_at
		`, postID, r.ID, r.Username, r.Date, r.Text, r.Likes, r.Replies, r.Reposts, r.Views, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Comments returns the archived rows for a thread.
func (s *Store) Comments(postID string) ([]types.CommentRow, error) {
	rows, err := s.db.Query(`
		SELECT comment_id, username, date, text, likes, replies, reposts, views
		FROM comments WHERE post_id = ? ORDER BY scraped_at, comment_id
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.CommentRow
	for rows.Next() {
		var r types.CommentRow
		if err := rows.Scan(&r.ID, &r.Username, &r.Date, &r.Text, &r.Likes, &r.Replies, &r.Reposts, &r.Views); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- helpers ---

func (s *Store) column(query string) ([]string, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func replaceColumn(tx *sql.Tx, table, col string, values []string) error {
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		return err
	}
	for _, v := range values {
		if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?)`, table, col), v); err != nil {
			return err
		}
	}
	return nil
}
