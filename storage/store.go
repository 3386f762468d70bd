// Package storage persists exported occupancy snapshots in a sqlite database so a
// mapping session can be listed, resumed for export, or compared after the fact.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	_ "embed"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	// registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"go.viam.com/floormap/logging"
	"go.viam.com/floormap/occupancy"
)

// ErrNoSnapshot is returned when a lookup matches no stored snapshot.
var ErrNoSnapshot = errors.New("no snapshot stored")

// schema.sql creates the session and snapshot tables.
//
//go:embed schema.sql
var schemaSQL string

// Store is a sqlite backed archive of snapshots grouped by session.
type Store struct {
	*sql.DB
	logger logging.Logger
}

// NewStore opens (creating if needed) the database at path and applies the schema.
func NewStore(path string, logger logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening snapshot database %q", path)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "applying snapshot schema"), db.Close())
	}
	logger.Debugw("initialized snapshot database", "path", path)
	return &Store{DB: db, logger: logger}, nil
}

// NewSession registers a new session and returns its id.
func (s *Store) NewSession(ctx context.Context, notes string) (string, error) {
	id := uuid.NewString()
	_, err := s.ExecContext(ctx,
		`INSERT INTO sessions (session_id, started_unix_nanos, notes) VALUES (?, ?, ?)`,
		id, time.Now().UnixNano(), notes)
	if err != nil {
		return "", errors.Wrap(err, "failed to start session")
	}
	s.logger.Infow("started session", "session", id)
	return id, nil
}

// InsertSnapshot stores snap under session, stamped with the time of the last batch it includes.
func (s *Store) InsertSnapshot(ctx context.Context, session string, stamp time.Time, snap occupancy.Snapshot) (int64, error) {
	if err := snap.Validate(); err != nil {
		return 0, errors.Wrap(err, "refusing to store invalid snapshot")
	}
	blob, err := compress(snap.Data)
	if err != nil {
		return 0, err
	}
	res, err := s.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, stamp_unix_nanos, frame, width, height, resolution, origin_x, origin_y, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session, stamp.UnixNano(), snap.Frame, snap.Width, snap.Height, snap.Resolution, snap.OriginX, snap.OriginY, blob)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert snapshot")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read snapshot id")
	}
	s.logger.Debugw("stored snapshot", "session", session, "id", id, "bytes", len(blob))
	return id, nil
}

// Record is a stored snapshot.
type Record struct {
	ID       int64
	Session  string
	Stamp    time.Time
	Snapshot occupancy.Snapshot
}

// Latest returns the newest snapshot of session, or of any session if session is empty.
func (s *Store) Latest(ctx context.Context, session string) (Record, error) {
	query := `
		SELECT snapshot_id, session_id, stamp_unix_nanos, frame, width, height, resolution, origin_x, origin_y, data
		FROM snapshots
		WHERE ? = '' OR session_id = ?
		ORDER BY stamp_unix_nanos DESC, snapshot_id DESC
		LIMIT 1`
	var (
		rec   Record
		nanos int64
		blob  []byte
		geo   occupancy.Geometry
	)
	err := s.QueryRowContext(ctx, query, session, session).Scan(
		&rec.ID, &rec.Session, &nanos, &geo.Frame, &geo.Width, &geo.Height,
		&geo.Resolution, &geo.OriginX, &geo.OriginY, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNoSnapshot
	}
	if err != nil {
		return Record{}, errors.Wrap(err, "failed to query latest snapshot")
	}
	data, err := decompress(blob)
	if err != nil {
		return Record{}, errors.Wrapf(err, "snapshot %d", rec.ID)
	}
	rec.Stamp = time.Unix(0, nanos)
	rec.Snapshot = occupancy.Snapshot{Geometry: geo, Data: data}
	if err := rec.Snapshot.Validate(); err != nil {
		return Record{}, errors.Wrapf(err, "snapshot %d is corrupt", rec.ID)
	}
	return rec, nil
}

// SessionSummary describes one session.
type SessionSummary struct {
	ID        string
	Started   time.Time
	Notes     string
	Snapshots int
	// LastStamp is zero when the session has no snapshots.
	LastStamp time.Time
}

// Sessions lists every session, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT s.session_id, s.started_unix_nanos, s.notes, COUNT(n.snapshot_id), MAX(n.stamp_unix_nanos)
		FROM sessions s
		LEFT JOIN snapshots n ON n.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_unix_nanos, s.session_id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query sessions")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warnw("closing session rows", "error", err)
		}
	}()

	var sessions []SessionSummary
	for rows.Next() {
		var (
			sum     SessionSummary
			started int64
			last    sql.NullInt64
		)
		if err := rows.Scan(&sum.ID, &started, &sum.Notes, &sum.Snapshots, &last); err != nil {
			return nil, errors.Wrap(err, "failed to scan session")
		}
		sum.Started = time.Unix(0, started)
		if last.Valid {
			sum.LastStamp = time.Unix(0, last.Int64)
		}
		sessions = append(sessions, sum)
	}
	return sessions, rows.Err()
}

func compress(data []int8) ([]byte, error) {
	raw := make([]byte, len(data))
	for i, v := range data {
		raw[i] = byte(v)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, errors.Wrap(err, "compressing snapshot")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "compressing snapshot")
	}
	return buf.Bytes(), nil
}

func decompress(blob []byte) ([]int8, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, errors.Wrap(err, "decompressing snapshot")
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing snapshot")
	}
	data := make([]int8, len(raw))
	for i, b := range raw {
		data[i] = int8(b)
	}
	return data, nil
}
