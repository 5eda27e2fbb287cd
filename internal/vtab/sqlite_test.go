//go:build sqlite_vtable

package vtab

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, tables ...Table) *sql.DB {
	t.Helper()
	db, err := OpenDB(tables)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func queryIDs(t *testing.T, db *sql.DB, q string, args ...any) []int64 {
	t.Helper()
	rows, err := db.Query(q, args...)
	require.NoError(t, err)
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}

func TestSQLite_EponymousTable(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, newFnTable())

	assert.Equal(t, []int64{1, 2, 3}, queryIDs(t, db, "SELECT id FROM functions"))
	assert.ElementsMatch(t, []int64{1, 2}, queryIDs(t, db, "SELECT id FROM functions WHERE name = 'Foo'"))
	assert.Equal(t, []int64{2}, queryIDs(t, db, "SELECT id FROM functions WHERE id = 2"))
	assert.Empty(t, queryIDs(t, db, "SELECT id FROM functions WHERE id = 99"))
	assert.Equal(t, []int64{2}, queryIDs(t, db, "SELECT id FROM functions WHERE id = ?", "2"))
	assert.Equal(t, []int64{1}, queryIDs(t, db, "SELECT id FROM functions LIMIT 1"))
}

func TestSQLite_RemainingPredicatesStillApply(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, newFnTable())

	ids := queryIDs(t, db, "SELECT id FROM functions WHERE name = 'Foo' AND rva > 256")
	assert.Equal(t, []int64{2}, ids)

	ids = queryIDs(t, db, "SELECT id FROM functions WHERE id = 1 AND name = 'Bar'")
	assert.Empty(t, ids)
}

func TestSQLite_ColumnTypes(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, newFnTable())

	var name string
	var rva, even int64
	err := db.QueryRow("SELECT name, rva, even FROM functions WHERE id = 2").Scan(&name, &rva, &even)
	require.NoError(t, err)
	assert.Equal(t, "Foo", name)
	assert.Equal(t, int64(0x200), rva)
	assert.Equal(t, int64(1), even)
}

func TestSQLite_OpenFailureIsAQueryError(t *testing.T) {
	t.Parallel()
	broken := Define[fnRow]("broken").
		Int64("id", func(r fnRow) int64 { return r.ID }).
		Scan(func() (Generator[fnRow], error) {
			return nil, errors.New("repository closed")
		})
	db := openTestDB(t, broken, newFnTable())

	err := queryErr(db, "SELECT id FROM broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository closed")

	// The connection stays usable.
	assert.Equal(t, []int64{3}, queryIDs(t, db, "SELECT id FROM functions WHERE name = 'Bar'"))
}

func TestSQLite_JoinUsesPushdown(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, newFnTable())

	rows, err := db.Query(`SELECT a.id, b.id FROM functions a JOIN functions b ON b.name = a.name WHERE a.id = 1 ORDER BY b.id`)
	require.NoError(t, err)
	defer rows.Close()
	var pairs [][2]int64
	for rows.Next() {
		var p [2]int64
		require.NoError(t, rows.Scan(&p[0], &p[1]))
		pairs = append(pairs, p)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, [][2]int64{{1, 1}, {1, 2}}, pairs)
}

// queryErr runs q to completion and returns the first error, whether it
// surfaces at prepare time or while stepping.
func queryErr(db *sql.DB, q string) error {
	rows, err := db.Query(q)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}
