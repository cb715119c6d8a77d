// Package store persists users, bans, settings, and download statistics
// in a local SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"grabbit/internal/media"
)

// historyCap bounds the download history table; the oldest rows beyond it
// are trimmed on insert.
const historyCap = 1000

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// User is a tracked bot user.
type User struct {
	ID             int64
	Username       string
	FirstName      string
	LastName       string
	FirstSeen      time.Time
	LastSeen       time.Time
	TotalDownloads int
	VideoDownloads int
	AudioDownloads int
}

// Download is one row of the download history.
type Download struct {
	UserID    int64
	Type      string
	Platform  string
	URL       string
	Title     string
	Timestamp time.Time
}

// Stats aggregates global counters.
type Stats struct {
	TotalUsers     int
	TotalDownloads int
	VideoDownloads int
	AudioDownloads int
	PerPlatform    map[string]int
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id              INTEGER PRIMARY KEY,
	username        TEXT NOT NULL DEFAULT '',
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	first_seen      TIMESTAMP NOT NULL,
	last_seen       TIMESTAMP NOT NULL,
	total_downloads INTEGER NOT NULL DEFAULT 0,
	video_downloads INTEGER NOT NULL DEFAULT 0,
	audio_downloads INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS bans (
	user_id INTEGER PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS downloads (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id   INTEGER NOT NULL,
	type      TEXT NOT NULL,
	platform  TEXT NOT NULL,
	url       TEXT NOT NULL,
	title     TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS downloads_user ON downloads(user_id);
CREATE TABLE IF NOT EXISTS settings (
	user_id        INTEGER PRIMARY KEY,
	video_quality  TEXT NOT NULL,
	audio_format   TEXT NOT NULL,
	auto_thumbnail INTEGER NOT NULL DEFAULT 0
);
`

// Open opens (and if needed creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite handles one writer at a time; serialize access through a
	// single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// UpsertUser inserts a user on first contact or refreshes their identity
// fields and last-seen time.
func (s *Store) UpsertUser(id int64, username, firstName, lastName string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO users (id, username, first_name, last_name, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			last_seen = excluded.last_seen`,
		id, username, firstName, lastName, now, now)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// GetUser returns the user row, or nil when unknown.
func (s *Store) GetUser(id int64) (*User, error) {
	var u User
	err := s.db.QueryRow(`
		SELECT id, username, first_name, last_name, first_seen, last_seen,
		       total_downloads, video_downloads, audio_downloads
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.FirstSeen,
			&u.LastSeen, &u.TotalDownloads, &u.VideoDownloads, &u.AudioDownloads)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &u, nil
}

// Ban marks a user as banned.
func (s *Store) Ban(userID int64) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO bans (user_id) VALUES (?)`, userID)
	return err
}

// Unban removes a ban.
func (s *Store) Unban(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM bans WHERE user_id = ?`, userID)
	return err
}

// IsBanned reports whether the user is banned.
func (s *Store) IsBanned(userID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM bans WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking ban: %w", err)
	}
	return n > 0, nil
}

// RecordDownload appends a history row, bumps the user's counters, and
// trims the history to its cap.
func (s *Store) RecordDownload(rec media.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO downloads (user_id, type, platform, url, title, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.UserID, string(rec.Type), rec.Platform, rec.URL, rec.Title,
		time.Now().UTC()); err != nil {
		return fmt.Errorf("inserting download: %w", err)
	}

	column := "audio_downloads"
	if rec.Type == media.TypeVideo {
		column = "video_downloads"
	}
	if _, err := tx.Exec(fmt.Sprintf(`
		UPDATE users SET total_downloads = total_downloads + 1,
		       %s = %s + 1 WHERE id = ?`, column, column), rec.UserID); err != nil {
		return fmt.Errorf("updating user counters: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM downloads WHERE id NOT IN
			(SELECT id FROM downloads ORDER BY id DESC LIMIT ?)`,
		historyCap); err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}

	return tx.Commit()
}

// Statistics aggregates the global counters.
func (s *Store) Statistics() (*Stats, error) {
	st := &Stats{PerPlatform: map[string]int{}}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&st.TotalUsers); err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	if err := s.db.QueryRow(`
		SELECT COALESCE(SUM(total_downloads), 0),
		       COALESCE(SUM(video_downloads), 0),
		       COALESCE(SUM(audio_downloads), 0) FROM users`).
		Scan(&st.TotalDownloads, &st.VideoDownloads, &st.AudioDownloads); err != nil {
		return nil, fmt.Errorf("summing downloads: %w", err)
	}

	rows, err := s.db.Query(`SELECT platform, COUNT(*) FROM downloads GROUP BY platform`)
	if err != nil {
		return nil, fmt.Errorf("counting platforms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var platform string
		var count int
		if err := rows.Scan(&platform, &count); err != nil {
			return nil, err
		}
		st.PerPlatform[platform] = count
	}
	return st, rows.Err()
}

// RecentDownloads returns the newest history rows, most recent first.
func (s *Store) RecentDownloads(limit int) ([]Download, error) {
	rows, err := s.db.Query(`
		SELECT user_id, type, platform, url, title, timestamp
		FROM downloads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()
	return scanDownloads(rows)
}

// UserHistory returns the newest rows for one user, most recent first.
func (s *Store) UserHistory(userID int64, limit int) ([]Download, error) {
	rows, err := s.db.Query(`
		SELECT user_id, type, platform, url, title, timestamp
		FROM downloads WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading user history: %w", err)
	}
	defer rows.Close()
	return scanDownloads(rows)
}

// ClearUserHistory removes all history rows for a user.
func (s *Store) ClearUserHistory(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM downloads WHERE user_id = ?`, userID)
	return err
}

// GetSettings loads a user's preferences, falling back to defaults when no
// row exists.
func (s *Store) GetSettings(userID int64) (media.Settings, error) {
	var quality, format string
	var autoThumb int
	err := s.db.QueryRow(`
		SELECT video_quality, audio_format, auto_thumbnail
		FROM settings WHERE user_id = ?`, userID).
		Scan(&quality, &format, &autoThumb)
	if errors.Is(err, sql.ErrNoRows) {
		return media.DefaultSettings(), nil
	}
	if err != nil {
		return media.Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	return media.Settings{
		VideoQuality:  media.Quality(quality),
		AudioFormat:   media.AudioFormat(format),
		AutoThumbnail: autoThumb != 0,
	}, nil
}

// SaveSettings writes a user's preferences, last write wins.
func (s *Store) SaveSettings(userID int64, st media.Settings) error {
	autoThumb := 0
	if st.AutoThumbnail {
		autoThumb = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO settings (user_id, video_quality, audio_format, auto_thumbnail)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			video_quality = excluded.video_quality,
			audio_format = excluded.audio_format,
			auto_thumbnail = excluded.auto_thumbnail`,
		userID, string(st.VideoQuality), string(st.AudioFormat), autoThumb)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// AllUserIDs lists every tracked user, for broadcast.
func (s *Store) AllUserIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanDownloads(rows *sql.Rows) ([]Download, error) {
	var out []Download
	for rows.Next() {
		var d Download
		if err := rows.Scan(&d.UserID, &d.Type, &d.Platform, &d.URL,
			&d.Title, &d.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
