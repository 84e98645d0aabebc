package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"asynccalc/internal/models"
)

// Store keeps calculations in SQLite. Timestamps are unix nanoseconds so that updated_at
// round-trips exactly and can serve as the optimistic concurrency version. Results are
// text so that infinities and NaN survive.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the database at path and brings its schema up to date.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// one connection serialises writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: logger.With().Str("component", "database").Logger()}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.applyMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Info().Str("path", path).Msg("database ready")
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			login TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create table users: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS calculations (
			id TEXT PRIMARY KEY,
			expression TEXT NOT NULL,
			status TEXT NOT NULL,
			result TEXT,
			error_code TEXT,
			error_offset INTEGER,
			error_length INTEGER,
			created_by INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			FOREIGN KEY (created_by) REFERENCES users(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("create table calculations: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_calculations_created_at ON calculations(created_at)`)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// columns added after the first schema version
var migrations = []struct {
	column string
	ddl    string
}{
	{column: "error_offset", ddl: "ALTER TABLE calculations ADD COLUMN error_offset INTEGER"},
	{column: "error_length", ddl: "ALTER TABLE calculations ADD COLUMN error_length INTEGER"},
}

func (s *Store) applyMigrations(ctx context.Context) error {
	for _, m := range migrations {
		var count int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM pragma_table_info('calculations') WHERE name = ?", m.column).Scan(&count)
		if err != nil {
			return fmt.Errorf("check column %s: %w", m.column, err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("add column %s: %w", m.column, err)
		}
		s.log.Info().Str("column", m.column).Msg("migration applied")
	}
	return nil
}

const selectCalculation = `
	SELECT c.id, c.expression, c.status, c.result, c.error_code, c.error_offset, c.error_length,
		c.created_by, u.login, c.created_at, c.updated_at
	FROM calculations c
	JOIN users u ON u.id = c.created_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCalculation(row rowScanner) (models.Calculation, error) {
	var (
		calc                 models.Calculation
		id, status           string
		result, code         sql.NullString
		offset, length       sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&id, &calc.Expression, &status, &result, &code, &offset, &length,
		&calc.CreatedBy.ID, &calc.CreatedBy.Login, &createdAt, &updatedAt)
	if err != nil {
		return models.Calculation{}, err
	}

	if calc.ID, err = uuid.Parse(id); err != nil {
		return models.Calculation{}, fmt.Errorf("stored id %q: %w", id, err)
	}
	var ok bool
	if calc.Status, ok = models.ParseState(status); !ok {
		return models.Calculation{}, fmt.Errorf("stored status %q is unknown", status)
	}
	if result.Valid {
		v, err := strconv.ParseFloat(result.String, 64)
		if err != nil {
			return models.Calculation{}, fmt.Errorf("stored result %q: %w", result.String, err)
		}
		calc.Result = &v
	}
	if code.Valid {
		calc.Error = &models.CalculationErrorDetails{ErrorCode: code.String}
		if offset.Valid {
			o := int(offset.Int64)
			calc.Error.Offset = &o
		}
		if length.Valid {
			l := int(length.Int64)
			calc.Error.Length = &l
		}
	}
	calc.CreatedAt = fromNanos(createdAt)
	calc.UpdatedAt = fromNanos(updatedAt)
	return calc, nil
}

func (s *Store) List(ctx context.Context, filter models.CalculationFilter, page models.Pagination) ([]models.Calculation, error) {
	var (
		where []string
		args  []any
	)
	if filter.CreatedBy != nil {
		where = append(where, "c.created_by = ?")
		args = append(args, *filter.CreatedBy)
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "c.status IN ("+strings.Join(marks, ", ")+")")
	}
	if !filter.CreatedBefore.IsZero() {
		where = append(where, "c.created_at < ?")
		args = append(args, toNanos(filter.CreatedBefore))
	}

	var q strings.Builder
	q.WriteString(selectCalculation)
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if page.NewestFirst {
		q.WriteString(" ORDER BY c.created_at DESC, c.id DESC")
	} else {
		q.WriteString(" ORDER BY c.created_at ASC, c.id ASC")
	}
	limit := -1
	if page.Limit > 0 {
		limit = page.Limit
	}
	q.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, max(page.Offset, 0))

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list calculations: %w", err)
	}
	defer rows.Close()

	var out []models.Calculation
	for rows.Next() {
		calc, err := scanCalculation(rows)
		if err != nil {
			return nil, fmt.Errorf("read calculation: %w", err)
		}
		out = append(out, calc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list calculations: %w", err)
	}
	return out, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (models.Calculation, error) {
	calc, err := scanCalculation(s.db.QueryRowContext(ctx, selectCalculation+" WHERE c.id = ?", id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Calculation{}, fmt.Errorf("%w: calculation %s", models.ErrNotFound, id)
	}
	if err != nil {
		return models.Calculation{}, fmt.Errorf("get calculation %s: %w", id, err)
	}
	return calc, nil
}

func (s *Store) Contains(ctx context.Context, id uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM calculations WHERE id = ?", id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check calculation %s: %w", id, err)
	}
	return true, nil
}

// Add inserts calc and records its creator. A duplicate id yields models.ErrConflict.
func (s *Store) Add(ctx context.Context, calc models.Calculation) (models.Calculation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Calculation{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM calculations WHERE id = ?", calc.ID.String()).Scan(&count)
	if err != nil {
		return models.Calculation{}, fmt.Errorf("check calculation %s: %w", calc.ID, err)
	}
	if count > 0 {
		return models.Calculation{}, fmt.Errorf("%w: calculation %s already exists", models.ErrConflict, calc.ID)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (id, login) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET login = excluded.login",
		calc.CreatedBy.ID, calc.CreatedBy.Login)
	if err != nil {
		return models.Calculation{}, fmt.Errorf("save user %d: %w", calc.CreatedBy.ID, err)
	}

	code, offset, length := errorColumns(calc.Error)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO calculations (id, expression, status, result, error_code, error_offset, error_length,
			created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		calc.ID.String(), calc.Expression, string(calc.Status), resultColumn(calc.Result), code, offset, length,
		calc.CreatedBy.ID, toNanos(calc.CreatedAt), toNanos(calc.UpdatedAt))
	if err != nil {
		return models.Calculation{}, fmt.Errorf("save calculation %s: %w", calc.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return models.Calculation{}, fmt.Errorf("commit: %w", err)
	}

	s.log.Debug().Str("calculation_id", calc.ID.String()).Int("user_id", calc.CreatedBy.ID).Msg("calculation saved")
	return calc, nil
}

// UpdateStatus applies update if the stored updated_at still equals
// update.ExpectedUpdatedAt and the status change is legal.
func (s *Store) UpdateStatus(ctx context.Context, update models.CalculationStatusUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		status    string
		updatedAt int64
	)
	err = tx.QueryRowContext(ctx, "SELECT status, updated_at FROM calculations WHERE id = ?", update.ID.String()).
		Scan(&status, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: calculation %s", models.ErrNotFound, update.ID)
	}
	if err != nil {
		return fmt.Errorf("read calculation %s: %w", update.ID, err)
	}
	if updatedAt != toNanos(update.ExpectedUpdatedAt) {
		return fmt.Errorf("%w: calculation %s was modified concurrently", models.ErrConflict, update.ID)
	}
	current := models.CalculationState(status)
	if !current.IsValidTransition(update.Status) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, current, update.Status)
	}

	code, offset, length := errorColumns(update.Error)
	_, err = tx.ExecContext(ctx, `
		UPDATE calculations
		SET status = ?, result = ?, error_code = ?, error_offset = ?, error_length = ?, updated_at = ?
		WHERE id = ? AND updated_at = ?`,
		string(update.Status), resultColumn(update.Result), code, offset, length, toNanos(update.UpdatedAt),
		update.ID.String(), updatedAt)
	if err != nil {
		return fmt.Errorf("update calculation %s: %w", update.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ResetNonFinalToPending moves every pending or in-progress calculation created before
// maxCreatedAt back to pending. It bypasses the transition table and is meant for
// startup recovery only.
func (s *Store) ResetNonFinalToPending(ctx context.Context, maxCreatedAt, newUpdatedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE calculations
		SET status = ?, result = NULL, error_code = NULL, error_offset = NULL, error_length = NULL, updated_at = ?
		WHERE status IN (?, ?) AND created_at < ?`,
		string(models.StatePending), toNanos(newUpdatedAt),
		string(models.StatePending), string(models.StateInProgress), toNanos(maxCreatedAt))
	if err != nil {
		return 0, fmt.Errorf("reset calculations: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) DeleteOlderThan(ctx context.Context, createdBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM calculations WHERE created_at < ?", toNanos(createdBefore))
	if err != nil {
		return 0, fmt.Errorf("delete calculations: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM calculations WHERE id = ?", id.String())
	if err != nil {
		return false, fmt.Errorf("delete calculation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func resultColumn(v *float64) any {
	if v == nil {
		return nil
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func errorColumns(d *models.CalculationErrorDetails) (code, offset, length any) {
	if d == nil {
		return nil, nil, nil
	}
	code = d.ErrorCode
	if d.Offset != nil {
		offset = *d.Offset
	}
	if d.Length != nil {
		length = *d.Length
	}
	return code, offset, length
}
