package load

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/dataset"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func productsFixture(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds := dataset.New("Products", "Name", "Price")
	require.NoError(t, ds.Append("Widget", 19.99))
	require.NoError(t, ds.Append("Gadget", 5.0))
	return ds
}

func expectProductsReplace(mock pgxmock.PgxPoolIface) {
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS products").
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec("CREATE TABLE products (name TEXT, price DOUBLE PRECISION)").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO products (name, price) VALUES ($1, $2), ($3, $4)").
		WithArgs("Widget", 19.99, "Gadget", 5.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
}

func TestLoadFullReplace(t *testing.T) {
	mock := newMockPool(t)
	expectProductsReplace(mock)
	mock.ExpectQuery("SELECT COUNT(*) FROM products").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	loader := New(mock, zap.NewNop())
	result, err := loader.Load(context.Background(), productsFixture(t), "Products")
	require.NoError(t, err)
	require.Equal(t, Result{Table: "products", Rows: 2, Columns: []string{"name", "price"}}, result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadTwiceReplacesNotAppends(t *testing.T) {
	mock := newMockPool(t)
	for i := 0; i < 2; i++ {
		expectProductsReplace(mock)
		mock.ExpectQuery("SELECT COUNT(*) FROM products").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectCommit()
	}

	loader := New(mock, zap.NewNop())
	ds := productsFixture(t)
	first, err := loader.Load(context.Background(), ds, "Products")
	require.NoError(t, err)
	second, err := loader.Load(context.Background(), ds, "Products")
	require.NoError(t, err)
	require.Equal(t, first.Rows, second.Rows, "reload replaces rather than appends")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRowCountMismatchRollsBack(t *testing.T) {
	mock := newMockPool(t)
	expectProductsReplace(mock)
	mock.ExpectQuery("SELECT COUNT(*) FROM products").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	loader := New(mock, zap.NewNop())
	_, err := loader.Load(context.Background(), productsFixture(t), "Products")

	var loadErr *Error
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, "verify", loadErr.Stage)
	require.Contains(t, loadErr.Error(), "row count mismatch")
	require.NoError(t, mock.ExpectationsWereMet(), "mismatch must roll back, never commit")
}

func TestLoadInsertFailureRollsBack(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS products").
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec("CREATE TABLE products (name TEXT, price DOUBLE PRECISION)").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO products (name, price) VALUES ($1, $2), ($3, $4)").
		WithArgs("Widget", 19.99, "Gadget", 5.0).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	loader := New(mock, zap.NewNop())
	_, err := loader.Load(context.Background(), productsFixture(t), "Products")

	var loadErr *Error
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, "insert", loadErr.Stage)
	require.NoError(t, mock.ExpectationsWereMet(), "failed insert must roll back the replace")
}

// A chunked write that fails mid-stream must not leave the first chunk (or
// a destroyed prior table) behind.
func TestLoadSecondChunkFailureRollsBack(t *testing.T) {
	ds := dataset.New("events", "n")
	for i := 0; i < insertChunkSize+100; i++ {
		require.NoError(t, ds.Append(int64(i)))
	}
	types := inferColumnTypes(ds)
	sql1, args1 := insertChunkSQL("events", ds.Columns, types, ds.Rows[:insertChunkSize])
	sql2, args2 := insertChunkSQL("events", ds.Columns, types, ds.Rows[insertChunkSize:])

	mock := newMockPool(t)
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS events").
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec("CREATE TABLE events (n BIGINT)").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(sql1).WithArgs(args1...).
		WillReturnResult(pgxmock.NewResult("INSERT", int64(insertChunkSize)))
	mock.ExpectExec(sql2).WithArgs(args2...).
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	loader := New(mock, zap.NewNop())
	_, err := loader.Load(context.Background(), ds, "events")

	var loadErr *Error
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, "insert", loadErr.Stage)
	require.Contains(t, loadErr.Error(), fmt.Sprintf("rows %d-%d", insertChunkSize, ds.Len()-1))
	require.NoError(t, mock.ExpectationsWereMet(), "partial chunk must not survive the failure")
}

func TestLoadBeginFailure(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	loader := New(mock, zap.NewNop())
	_, err := loader.Load(context.Background(), productsFixture(t), "Products")

	var loadErr *Error
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, "begin", loadErr.Stage)
}

func TestLoadRejectsInvalidTableName(t *testing.T) {
	loader := New(newMockPool(t), zap.NewNop())
	_, err := loader.Load(context.Background(), productsFixture(t), "products; drop")

	var loadErr *Error
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, "validate", loadErr.Stage)
}

func TestLoadDropsEmptyRows(t *testing.T) {
	ds := dataset.New("notes", "text")
	require.NoError(t, ds.Append("keep"))
	require.NoError(t, ds.Append("   "))

	mock := newMockPool(t)
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS notes").
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec("CREATE TABLE notes (text TEXT)").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO notes (text) VALUES ($1)").
		WithArgs("keep").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT COUNT(*) FROM notes").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	loader := New(mock, zap.NewNop())
	result, err := loader.Load(context.Background(), ds, "notes")
	require.NoError(t, err)
	require.Equal(t, 1, result.Rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInferColumnTypes(t *testing.T) {
	ds := dataset.New("t", "ints", "mixed_num", "bools", "mixed", "empty")
	require.NoError(t, ds.Append(1, 1, true, "a", nil))
	require.NoError(t, ds.Append(int64(2), 2.5, false, 3, nil))

	types := inferColumnTypes(ds)
	require.Equal(t, typeBigint, types[0])
	require.Equal(t, typeDouble, types[1], "ints widen to double when floats appear")
	require.Equal(t, typeBool, types[2])
	require.Equal(t, typeText, types[3], "incompatible kinds fall back to text")
	require.Equal(t, typeText, types[4], "all-null column defaults to text")

	require.Equal(t, "3", typeText.cellValue(3), "text column stringifies mixed values")
	require.Nil(t, typeText.cellValue(nil))
}

func TestCreateTableSQLTypes(t *testing.T) {
	sql := createTableSQL("t", []string{"a", "b", "c"}, []columnType{typeBigint, typeTimestamp, typeBool})
	require.Equal(t, "CREATE TABLE t (a BIGINT, b TIMESTAMPTZ, c BOOLEAN)", sql)
}
