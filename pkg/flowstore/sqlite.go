package flowstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

// Schema for the flows table.
const Schema = `
CREATE TABLE IF NOT EXISTS flows (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	domain      TEXT NOT NULL DEFAULT '',
	commands    TEXT NOT NULL,
	checksum    TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS flows_identity ON flows(name, domain, checksum);
CREATE INDEX IF NOT EXISTS flows_domain ON flows(domain, created_at);
`

// SQLiteStore keeps flows in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway store.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one connection keeps ":memory:" databases shared and serializes writes
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	logger.Info("flow store opened", zap.String("path", path))
	return &SQLiteStore{db: db, logger: logger, now: time.Now}, nil
}

func (s *SQLiteStore) SaveFlow(ctx context.Context, name, domain string, cmds []command.Command) (string, error) {
	name, err := ValidateName(name)
	if err != nil {
		return "", err
	}
	if err := command.ValidateAll(cmds); err != nil {
		return "", err
	}
	data, err := json.Marshal(command.List(cmds))
	if err != nil {
		return "", err
	}
	sum, err := Checksum(cmds)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO flows (id, name, domain, commands, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, domain, checksum) DO NOTHING
	`, id, name, domain, string(data), sum, s.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert flow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		s.logger.Debug("flow saved", zap.String("id", id), zap.String("name", name))
		return id, nil
	}

	var existing string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM flows WHERE name = ? AND domain = ? AND checksum = ?`,
		name, domain, sum).Scan(&existing)
	if err != nil {
		return "", fmt.Errorf("lookup flow: %w", err)
	}
	return existing, nil
}

func (s *SQLiteStore) ListFlows(ctx context.Context, domain string) ([]Flow, error) {
	query := `SELECT id, name, domain, commands, checksum, created_at FROM flows`
	var args []any
	if domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	flows := []Flow{}
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

func (s *SQLiteStore) GetFlow(ctx context.Context, id string) (Flow, error) {
	if err := validateID(id); err != nil {
		return Flow{}, ErrFlowNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, domain, commands, checksum, created_at FROM flows WHERE id = ?`, id)
	f, err := scanFlow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Flow{}, ErrFlowNotFound
	}
	return f, err
}

func (s *SQLiteStore) DeleteFlow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFlowNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFlow(row scanner) (Flow, error) {
	var (
		f         Flow
		cmdsJSON  string
		createdMs int64
	)
	if err := row.Scan(&f.ID, &f.Name, &f.Domain, &cmdsJSON, &f.Checksum, &createdMs); err != nil {
		return Flow{}, err
	}
	if err := json.Unmarshal([]byte(cmdsJSON), &f.Commands); err != nil {
		return Flow{}, fmt.Errorf("decode flow %s: %w", f.ID, err)
	}
	f.CreatedAt = time.UnixMilli(createdMs)
	return f, nil
}
