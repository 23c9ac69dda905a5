// Package store keeps fetched chapter data in a local SQLite database so
// chapters open without the network once seen.
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

	_ "modernc.org/sqlite"

	"tilawah/internal/quran"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. ":memory:" is accepted for
// tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serializes
	// writers
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS chapter_list (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			payload TEXT NOT NULL,
			fetched_utc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chapters (
			number INTEGER NOT NULL,
			text_edition TEXT NOT NULL,
			audio_edition TEXT NOT NULL,
			translation_edition TEXT NOT NULL,
			payload TEXT NOT NULL,
			fetched_utc TEXT NOT NULL,
			PRIMARY KEY (number, text_edition, audio_edition, translation_edition)
		);`,
		`CREATE TABLE IF NOT EXISTS app_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_utc TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

// Entry is a cached payload and the time it was fetched.
type Entry[T any] struct {
	Value     T
	FetchedAt time.Time
}

// Fresh reports whether the entry is younger than ttl. A non-positive ttl
// never expires.
func (e Entry[T]) Fresh(now time.Time, ttl time.Duration) bool {
	return ttl <= 0 || now.Sub(e.FetchedAt) < ttl
}

func (s *Store) PutChapterList(ctx context.Context, list []quran.ChapterSummary) error {
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode chapter list: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chapter_list (id, payload, fetched_utc) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, fetched_utc = excluded.fetched_utc
	`, string(payload), s.stamp())
	if err != nil {
		return fmt.Errorf("store chapter list: %w", err)
	}
	return nil
}

// ChapterList returns the cached list; found is false when nothing is
// cached.
func (s *Store) ChapterList(ctx context.Context) (Entry[[]quran.ChapterSummary], bool, error) {
	var e Entry[[]quran.ChapterSummary]
	var payload, fetched string
	err := s.db.QueryRowContext(ctx, `SELECT payload, fetched_utc FROM chapter_list WHERE id = 1`).Scan(&payload, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return e, false, nil
	}
	if err != nil {
		return e, false, fmt.Errorf("load chapter list: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &e.Value); err != nil {
		return e, false, fmt.Errorf("decode chapter list: %w", err)
	}
	e.FetchedAt, err = time.Parse(time.RFC3339Nano, fetched)
	if err != nil {
		return e, false, fmt.Errorf("parse fetched_utc: %w", err)
	}
	return e, true, nil
}

// PutChapter caches a chapter under the editions it carries. Chapters with
// pending translations are not cached.
func (s *Store) PutChapter(ctx context.Context, ch *quran.Chapter) error {
	for _, v := range ch.Verses {
		if v.TranslationPending() {
			return nil
		}
	}
	payload, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encode chapter %d: %w", ch.Number, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chapters (number, text_edition, audio_edition, translation_edition, payload, fetched_utc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(number, text_edition, audio_edition, translation_edition)
		DO UPDATE SET payload = excluded.payload, fetched_utc = excluded.fetched_utc
	`, ch.Number, ch.TextEdition, ch.AudioEdition, ch.TranslationEdition, string(payload), s.stamp())
	if err != nil {
		return fmt.Errorf("store chapter %d: %w", ch.Number, err)
	}
	return nil
}

func (s *Store) Chapter(ctx context.Context, number int, ed quran.Editions) (Entry[*quran.Chapter], bool, error) {
	var e Entry[*quran.Chapter]
	var payload, fetched string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, fetched_utc FROM chapters
		WHERE number = ? AND text_edition = ? AND audio_edition = ? AND translation_edition = ?
	`, number, ed.Text, ed.Audio, ed.Translation).Scan(&payload, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return e, false, nil
	}
	if err != nil {
		return e, false, fmt.Errorf("load chapter %d: %w", number, err)
	}
	e.Value = &quran.Chapter{}
	if err := json.Unmarshal([]byte(payload), e.Value); err != nil {
		return e, false, fmt.Errorf("decode chapter %d: %w", number, err)
	}
	e.FetchedAt, err = time.Parse(time.RFC3339Nano, fetched)
	if err != nil {
		return e, false, fmt.Errorf("parse fetched_utc: %w", err)
	}
	return e, true, nil
}

// Translations pulls the translation texts of a chapter from any cached
// copy carrying that edition.
func (s *Store) Translations(ctx context.Context, number int, edition string) (Entry[map[int]string], bool, error) {
	var e Entry[map[int]string]
	var payload, fetched string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, fetched_utc FROM chapters
		WHERE number = ? AND translation_edition = ?
		ORDER BY fetched_utc DESC LIMIT 1
	`, number, edition).Scan(&payload, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return e, false, nil
	}
	if err != nil {
		return e, false, fmt.Errorf("load translations %d/%s: %w", number, edition, err)
	}
	var ch quran.Chapter
	if err := json.Unmarshal([]byte(payload), &ch); err != nil {
		return e, false, fmt.Errorf("decode chapter %d: %w", number, err)
	}
	e.Value = make(map[int]string, len(ch.Verses))
	for _, v := range ch.Verses {
		e.Value[v.NumberInSurah] = v.Translation
	}
	e.FetchedAt, err = time.Parse(time.RFC3339Nano, fetched)
	if err != nil {
		return e, false, fmt.Errorf("parse fetched_utc: %w", err)
	}
	return e, true, nil
}

// Purge drops every cached chapter and the chapter list.
func (s *Store) Purge(ctx context.Context) error {
	for _, stmt := range []string{`DELETE FROM chapters`, `DELETE FROM chapter_list`} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge cache: %w", err)
		}
	}
	return nil
}

func (s *Store) SetAppState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_state (key, value, updated_utc) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_utc = excluded.updated_utc
	`, key, value, s.stamp())
	if err != nil {
		return fmt.Errorf("set app state %q: %w", key, err)
	}
	return nil
}

func (s *Store) GetAppState(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get app state %q: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
