// Package store persists run artifacts between pipeline stages: the model
// chosen by a selection run, per-tweet classifications, and cursors.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"plumage/internal/model"
)

// DB wraps the SQLite database holding run artifacts.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS selections (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  model TEXT NOT NULL,
	  mean_agreement REAL NOT NULL,
	  std_agreement REAL NOT NULL,
	  sample_size INTEGER NOT NULL,
	  chosen_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS classifications (
	  tweet_id TEXT NOT NULL,
	  model TEXT NOT NULL,
	  humor_type TEXT NOT NULL,
	  topic_category TEXT NOT NULL,
	  has_data_reference INTEGER NOT NULL,
	  shows_vulnerability INTEGER NOT NULL,
	  critique_type TEXT NOT NULL,
	  created_at INTEGER NOT NULL,
	  PRIMARY KEY (tweet_id, model)
	);
	CREATE TABLE IF NOT EXISTS cursors (
	  key TEXT PRIMARY KEY,
	  value TEXT NOT NULL
	);
	`)
	return err
}

// SaveSelection records the winning model of a selection run.
func (d *DB) SaveSelection(ctx context.Context, model string, mean, std float64, n int) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO selections(model, mean_agreement, std_agreement, sample_size, chosen_at) VALUES(?,?,?,?,?)`,
		model, mean, std, n, time.Now().UTC().Unix())
	return err
}

// LoadSelection returns the most recently chosen model.
func (d *DB) LoadSelection(ctx context.Context) (string, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT model FROM selections ORDER BY id DESC LIMIT 1`)
	var m string
	if err := row.Scan(&m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errors.New("no model selected yet; run select-model first")
		}
		return "", err
	}
	return m, nil
}

// PutClassification upserts one tweet's labels for one model.
func (d *DB) PutClassification(ctx context.Context, tweetID, modelName string, c model.Classification) error {
	_, err := d.sql.ExecContext(ctx, `
	INSERT INTO classifications(tweet_id, model, humor_type, topic_category, has_data_reference, shows_vulnerability, critique_type, created_at)
	VALUES(?,?,?,?,?,?,?,?)
	ON CONFLICT(tweet_id, model) DO UPDATE SET
	  humor_type=excluded.humor_type,
	  topic_category=excluded.topic_category,
	  has_data_reference=excluded.has_data_reference,
	  shows_vulnerability=excluded.shows_vulnerability,
	  critique_type=excluded.critique_type,
	  created_at=excluded.created_at`,
		tweetID, modelName, c.HumorType, c.TopicCategory,
		boolInt(c.HasDataReference), boolInt(c.ShowsVulnerability), c.CritiqueType,
		time.Now().UTC().Unix())
	return err
}

// StoredClassification is one persisted classification row.
type StoredClassification struct {
	TweetID string
	Model   string
	Labels  model.Classification
}

// LoadClassifications returns every stored classification, tweet id order.
func (d *DB) LoadClassifications(ctx context.Context) ([]StoredClassification, error) {
	rows, err := d.sql.QueryContext(ctx, `
	SELECT tweet_id, model, humor_type, topic_category, has_data_reference, shows_vulnerability, critique_type
	FROM classifications ORDER BY tweet_id, model`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredClassification
	for rows.Next() {
		var sc StoredClassification
		var hasData, vulnerable int
		if err := rows.Scan(&sc.TweetID, &sc.Model, &sc.Labels.HumorType, &sc.Labels.TopicCategory,
			&hasData, &vulnerable, &sc.Labels.CritiqueType); err != nil {
			return nil, err
		}
		sc.Labels.HasDataReference = hasData != 0
		sc.Labels.ShowsVulnerability = vulnerable != 0
		out = append(out, sc)
	}
	return out, rows.Err()
}

// SaveCursor stores a named progress marker.
func (d *DB) SaveCursor(ctx context.Context, key, value string) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO cursors(key, value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value)
	return err
}

// LoadCursor returns a previously stored marker.
func (d *DB) LoadCursor(ctx context.Context, key string) (string, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT value FROM cursors WHERE key=?`, key)
	var v string
	if err := row.Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
