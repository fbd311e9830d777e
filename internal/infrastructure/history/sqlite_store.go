package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

// SQLiteStore persists history in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLiteStore creates (or opens) the history database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		text TEXT NOT NULL,
		kind TEXT NOT NULL,
		mode TEXT NOT NULL,
		success INTEGER NOT NULL,
		error TEXT NOT NULL,
		from_cache INTEGER NOT NULL,
		commands TEXT NOT NULL,
		explanation TEXT NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS requests_session ON requests (session_id, timestamp);`)
	if err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Record implements ports.HistoryRepository.
func (s *SQLiteStore) Record(ctx context.Context, record domain.HistoryRecord) error {
	commands, err := json.Marshal(record.CommandsRun)
	if err != nil {
		return fmt.Errorf("encode commands: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO requests
		(id, session_id, timestamp, text, kind, mode, success, error, from_cache, commands, explanation, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.SessionID,
		record.Timestamp.UnixNano(),
		record.Text,
		string(record.Kind),
		string(record.Mode),
		boolToInt(record.Success),
		string(record.Error),
		boolToInt(record.FromCache),
		string(commands),
		record.Explanation,
		record.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, session_id, timestamp, text, kind, mode, success, error, from_cache, commands, explanation, duration_ms FROM requests`

// Recent implements ports.HistoryRepository, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	return s.query(ctx, "", nil, limit)
}

// LastForSession implements ports.HistoryRepository.
func (s *SQLiteStore) LastForSession(ctx context.Context, sessionID string) (domain.HistoryRecord, bool, error) {
	records, err := s.query(ctx, " WHERE session_id = ?", []interface{}{sessionID}, 1)
	if err != nil || len(records) == 0 {
		return domain.HistoryRecord{}, false, err
	}
	return records[0], true, nil
}

// Search implements ports.HistoryRepository; term matches the request text, kind or
// commands.
func (s *SQLiteStore) Search(ctx context.Context, term string, limit int) ([]domain.HistoryRecord, error) {
	like := "%" + term + "%"
	return s.query(ctx, " WHERE text LIKE ? OR kind LIKE ? OR commands LIKE ?", []interface{}{like, like, like}, limit)
}

func (s *SQLiteStore) query(ctx context.Context, where string, args []interface{}, limit int) ([]domain.HistoryRecord, error) {
	builder := strings.Builder{}
	builder.WriteString(selectColumns)
	builder.WriteString(where)
	builder.WriteString(" ORDER BY timestamp DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var (
			rec              domain.HistoryRecord
			ts               int64
			kind, mode, errK string
			success, cached  int
			commands         string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &ts, &rec.Text, &kind, &mode, &success, &errK, &cached, &commands, &rec.Explanation, &rec.DurationMS); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.Timestamp = time.Unix(0, ts)
		rec.Kind = domain.OperationKind(kind)
		rec.Mode = domain.Mode(mode)
		rec.Error = domain.ErrorKind(errK)
		rec.Success = success == 1
		rec.FromCache = cached == 1
		if commands != "" {
			_ = json.Unmarshal([]byte(commands), &rec.CommandsRun)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes all history entries.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM requests")
	return err
}

// Retain deletes entries older than olderThan and reports how many went.
func (s *SQLiteStore) Retain(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, errors.New("retention must be positive")
	}
	cutoff := time.Now().Add(-olderThan).UnixNano()
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM requests WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close implements ports.HistoryRepository.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.HistoryRepository = (*SQLiteStore)(nil)
