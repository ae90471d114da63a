package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lox/worldstrat/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// sqliteTime is the prefix layout of stored DATETIME values, used for range
// comparisons.
const sqliteTime = "2006-01-02 15:04:05"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertSession stores the inputs of a session, creating it on first use.
func (s *Store) UpsertSession(sess models.Session) error {
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	in := sess.Inputs
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, metadata_path, split_path, cloud_max, tile, lat_col, lon_col, id_col, compare_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			metadata_path = excluded.metadata_path,
			split_path = excluded.split_path,
			cloud_max = excluded.cloud_max,
			tile = excluded.tile,
			lat_col = excluded.lat_col,
			lon_col = excluded.lon_col,
			id_col = excluded.id_col,
			compare_id = excluded.compare_id,
			updated_at = excluded.updated_at
	`, sess.ID, in.Path, in.SplitPath, in.CloudMax, in.Tile, in.LatCol, in.LonCol, in.IDCol, in.Compare, sess.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", sess.ID, err)
	}
	return nil
}

// GetSession returns the stored session, or ErrSessionNotFound.
func (s *Store) GetSession(id string) (*models.Session, error) {
	var (
		sess                                     models.Session
		path, split, tile, latCol, lonCol, idCol sql.NullString
		compare                                  sql.NullString
	)
	err := s.db.QueryRow(`
		SELECT id, metadata_path, split_path, cloud_max, tile, lat_col, lon_col, id_col, compare_id, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &path, &split, &sess.Inputs.CloudMax, &tile, &latCol, &lonCol, &idCol,
		&compare, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	sess.Inputs.Path = path.String
	sess.Inputs.SplitPath = split.String
	sess.Inputs.Tile = tile.String
	sess.Inputs.LatCol = latCol.String
	sess.Inputs.LonCol = lonCol.String
	sess.Inputs.IDCol = idCol.String
	sess.Inputs.Compare = compare.String
	return &sess, nil
}

// DeleteSessionsBefore removes sessions not updated since cutoff.
func (s *Store) DeleteSessionsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE SUBSTR(updated_at, 1, 19) < ?`, cutoff.UTC().Format(sqliteTime))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountSessions returns the number of stored sessions.
func (s *Store) CountSessions() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}
