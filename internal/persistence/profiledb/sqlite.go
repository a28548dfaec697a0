// Package profiledb persists player profile consent preferences in sqlite.
//
// Rows are unique per (profile, topic). Loading happens at session start,
// off the world goroutine; edits made in-game are written back through a
// buffered writer goroutine so the simulation never waits on disk.
package profiledb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
)

type DB struct {
	db  *sql.DB
	log logrus.FieldLogger

	ch   chan writeReq
	wg   sync.WaitGroup
	once sync.Once

	// mu orders sends on ch against close(ch); closed is guarded by mu.
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

type writeReq struct {
	profileID int64
	topic     consent.TopicID
	level     consent.Level
	flushed   chan struct{}
}

// Profile is one row of the profile table plus its preference count.
type Profile struct {
	ID          int64  `json:"profile_id"`
	Name        string `json:"name"`
	CreatedAt   string `json:"created_at"`
	Preferences int    `json:"preferences"`
}

func OpenSQLite(path string, logger logrus.FieldLogger) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		logger = l
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db:  db,
		log: logger.WithField("component", "profiledb"),
		ch:  make(chan writeReq, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profile (
			profile_id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS profile_consent_preference (
			profile_consent_preference_id INTEGER PRIMARY KEY AUTOINCREMENT,
			profile_id INTEGER NOT NULL REFERENCES profile(profile_id) ON DELETE CASCADE,
			consent_prototype_id TEXT NOT NULL,
			level INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS IX_profile_consent_preference_profile_id
			ON profile_consent_preference(profile_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS IX_profile_consent_preference_profile_id_consent_prototype_id
			ON profile_consent_preference(profile_id, consent_prototype_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped reports how many async writes were discarded because the queue was full.
func (s *DB) Dropped() uint64 { return s.dropped.Load() }

func (s *DB) CreateProfile(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO profile(name, created_at) VALUES(?, ?)`,
		name, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("create profile: %w", err)
	}
	return res.LastInsertId()
}

func (s *DB) DeleteProfile(ctx context.Context, profileID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profile WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("delete profile %d: %w", profileID, err)
	}
	return nil
}

func (s *DB) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.profile_id, p.name, p.created_at, COUNT(c.profile_consent_preference_id)
		FROM profile p
		LEFT JOIN profile_consent_preference c ON c.profile_id = p.profile_id
		GROUP BY p.profile_id
		ORDER BY p.profile_id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()
	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.Preferences); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LoadPreferences returns the saved preferences of a profile. An unknown
// profile yields an empty map. Rows holding a level outside the defined
// range are skipped.
func (s *DB) LoadPreferences(ctx context.Context, profileID int64) (consent.PreferenceMap, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT consent_prototype_id, level FROM profile_consent_preference WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, fmt.Errorf("load preferences %d: %w", profileID, err)
	}
	defer rows.Close()
	out := consent.PreferenceMap{}
	for rows.Next() {
		var (
			topic string
			level int
		)
		if err := rows.Scan(&topic, &level); err != nil {
			return nil, err
		}
		if level < int(consent.Ask) || level > int(consent.EnthusiasticAllow) {
			s.log.WithFields(logrus.Fields{"profile": profileID, "topic": topic, "level": level}).
				Warn("skipping out-of-range consent level")
			continue
		}
		out[consent.TopicID(topic)] = consent.Level(level)
	}
	return out, rows.Err()
}

// SetPreference upserts one row synchronously, creating the profile row
// if it does not exist yet.
func (s *DB) SetPreference(ctx context.Context, profileID int64, topic consent.TopicID, level consent.Level) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %d", consent.ErrInvalidLevel, int(level))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := upsert(ctx, tx, profileID, topic, level); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *DB) DeletePreference(ctx context.Context, profileID int64, topic consent.TopicID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM profile_consent_preference WHERE profile_id = ? AND consent_prototype_id = ?`,
		profileID, string(topic))
	return err
}

// ImportProfile replaces a profile's name and full preference set in one
// transaction. Invalid levels abort the import.
func (s *DB) ImportProfile(ctx context.Context, profileID int64, name string, prefs consent.PreferenceMap) error {
	for topic, level := range prefs {
		if !level.Valid() {
			return fmt.Errorf("%s: %w: %d", topic, consent.ErrInvalidLevel, int(level))
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profile(profile_id, name, created_at) VALUES(?, ?, ?)
		ON CONFLICT(profile_id) DO UPDATE SET name = excluded.name`,
		profileID, name, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("import profile %d: %w", profileID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM profile_consent_preference WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("import profile %d: %w", profileID, err)
	}
	for _, topic := range prefs.Topics() {
		if err := upsert(ctx, tx, profileID, topic, prefs[topic]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func upsert(ctx context.Context, tx *sql.Tx, profileID int64, topic consent.TopicID, level consent.Level) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO profile(profile_id, name, created_at) VALUES(?, '', ?)`,
		profileID, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("ensure profile %d: %w", profileID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profile_consent_preference(profile_id, consent_prototype_id, level) VALUES(?, ?, ?)
		ON CONFLICT(profile_id, consent_prototype_id) DO UPDATE SET level = excluded.level`,
		profileID, string(topic), int(level)); err != nil {
		return fmt.Errorf("upsert preference %d/%s: %w", profileID, topic, err)
	}
	return nil
}

// SavePreference queues an upsert and returns immediately. It never blocks;
// when the queue is full the write is dropped and counted.
func (s *DB) SavePreference(profileID int64, topic consent.TopicID, level consent.Level) {
	if s == nil || profileID <= 0 {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- writeReq{profileID: profileID, topic: topic, level: level}:
	default:
		s.dropped.Add(1)
		s.log.WithFields(logrus.Fields{"profile": profileID, "topic": topic}).Warn("profile write queue full; dropping")
	}
}

// Flush blocks until every write queued before the call has been applied.
func (s *DB) Flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	select {
	case s.ch <- writeReq{flushed: done}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *DB) loop() {
	ctx := context.Background()
	for r := range s.ch {
		if r.flushed != nil {
			close(r.flushed)
			continue
		}
		if err := s.SetPreference(ctx, r.profileID, r.topic, r.level); err != nil {
			s.log.WithError(err).WithField("profile", r.profileID).Error("persist consent preference")
		}
	}
}
