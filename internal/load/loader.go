// Package load lands tabular datasets in Postgres with full-replace
// semantics.
package load

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/dataset"
)

var validIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// insertChunkSize bounds rows per INSERT statement.
const insertChunkSize = 500

// Result reports one completed table load.
type Result struct {
	Table   string
	Rows    int
	Columns []string
}

// Error is a fatal load failure: schema trouble, a failed write, or a
// post-write row-count mismatch. Loads are never retried.
type Error struct {
	Table string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("load %s (%s): %v", e.Table, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DB is the slice of pgxpool.Pool the loader needs; pgxmock satisfies it in
// tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Loader writes datasets into the relational store.
type Loader struct {
	db     DB
	logger *zap.Logger
}

// New builds a loader over an established connection pool.
func New(db DB, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{db: db, logger: logger}
}

// Connect opens a pgx pool and pings it.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Load normalizes the dataset and replaces the named table wholesale inside
// one transaction, so a failed write rolls back and never leaves a partial
// table behind. The written row count is verified before commit; any failure
// past normalization is fatal for this table.
func (l *Loader) Load(ctx context.Context, ds *dataset.Dataset, table string) (Result, error) {
	table = dataset.NormalizeIdentifier(table)
	if !validIdentifier.MatchString(table) {
		return Result{}, &Error{Table: table, Stage: "validate", Err: fmt.Errorf("invalid table name")}
	}

	ds.NormalizeColumns()
	for _, col := range ds.Columns {
		if !validIdentifier.MatchString(col) {
			return Result{}, &Error{Table: table, Stage: "validate", Err: fmt.Errorf("invalid column name %q", col)}
		}
	}
	coerceDateColumns(ds)
	dropped := ds.DropEmptyRows()
	if dropped > 0 {
		l.logger.Debug("dropped empty rows", zap.String("table", table), zap.Int("rows", dropped))
	}

	types := inferColumnTypes(ds)

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return Result{}, &Error{Table: table, Stage: "begin", Err: err}
	}
	// no-op once the transaction is committed
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return Result{}, &Error{Table: table, Stage: "drop", Err: err}
	}
	if _, err := tx.Exec(ctx, createTableSQL(table, ds.Columns, types)); err != nil {
		return Result{}, &Error{Table: table, Stage: "create", Err: err}
	}

	if err := insertRows(ctx, tx, ds, table, types); err != nil {
		return Result{}, &Error{Table: table, Stage: "insert", Err: err}
	}

	var count int
	if err := tx.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		return Result{}, &Error{Table: table, Stage: "verify", Err: err}
	}
	if count != ds.Len() {
		return Result{}, &Error{
			Table: table,
			Stage: "verify",
			Err:   fmt.Errorf("row count mismatch: wrote %d, table has %d", ds.Len(), count),
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, &Error{Table: table, Stage: "commit", Err: err}
	}

	l.logger.Info("table loaded",
		zap.String("table", table),
		zap.Int("rows", count),
		zap.Int("columns", len(ds.Columns)),
	)
	return Result{Table: table, Rows: count, Columns: ds.Columns}, nil
}

func insertRows(ctx context.Context, tx pgx.Tx, ds *dataset.Dataset, table string, types []columnType) error {
	for start := 0; start < ds.Len(); start += insertChunkSize {
		end := start + insertChunkSize
		if end > ds.Len() {
			end = ds.Len()
		}
		chunk := ds.Rows[start:end]

		sql, args := insertChunkSQL(table, ds.Columns, types, chunk)
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

func createTableSQL(table string, columns []string, types []columnType) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = col + " " + types[i].sqlType()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
}

func insertChunkSQL(table string, columns []string, types []columnType, rows [][]any) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	args := make([]any, 0, len(rows)*len(columns))
	arg := 1
	for r, row := range rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for i := range columns {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
			args = append(args, types[i].cellValue(row[i]))
		}
		b.WriteByte(')')
	}
	return b.String(), args
}

type columnType int

const (
	typeText columnType = iota
	typeBigint
	typeDouble
	typeBool
	typeTimestamp
)

func (t columnType) sqlType() string {
	switch t {
	case typeBigint:
		return "BIGINT"
	case typeDouble:
		return "DOUBLE PRECISION"
	case typeBool:
		return "BOOLEAN"
	case typeTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// cellValue adapts a cell to the column's inferred type; text columns
// stringify mixed values, missing values stay NULL.
func (t columnType) cellValue(cell any) any {
	if cell == nil {
		return nil
	}
	if t != typeText {
		return cell
	}
	if s, ok := cell.(string); ok {
		return s
	}
	return dataset.CellString(cell)
}

// inferColumnTypes picks the narrowest SQL type every non-nil cell in a
// column fits.
func inferColumnTypes(ds *dataset.Dataset) []columnType {
	types := make([]columnType, len(ds.Columns))
	for i := range ds.Columns {
		types[i] = inferColumn(ds, i)
	}
	return types
}

func inferColumn(ds *dataset.Dataset, col int) columnType {
	sawValue := false
	candidate := typeText
	for _, row := range ds.Rows {
		cell := row[col]
		if cell == nil {
			continue
		}
		var cellType columnType
		switch cell.(type) {
		case int, int64:
			cellType = typeBigint
		case float64:
			cellType = typeDouble
		case bool:
			cellType = typeBool
		case time.Time:
			cellType = typeTimestamp
		default:
			return typeText
		}
		switch {
		case !sawValue:
			candidate = cellType
			sawValue = true
		case candidate == cellType:
		case candidate == typeBigint && cellType == typeDouble,
			candidate == typeDouble && cellType == typeBigint:
			candidate = typeDouble
		default:
			return typeText
		}
	}
	return candidate
}
