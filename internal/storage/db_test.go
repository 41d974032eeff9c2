package storage

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDatabase opens a database in a fresh temp dir and closes it on cleanup.
func openTestDatabase(t *testing.T, opts ...Option) (*Database, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groupbanker.db")
	db, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	db, path := openTestDatabase(t)

	_, err := os.Stat(path)
	require.NoError(t, err, "database file was not created")

	version, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	count, err := db.CountTransactions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "groupbanker.db")

	db, err := Open(path)
	require.NoError(t, err)
	id, err := db.CreateTransaction(ctx, 12.0, "coffee", "2024-01-01T08:00")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Transaction{ID: id, Amount: 12.0, Description: "coffee", Time: "2024-01-01T08:00"}, got[0])
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "groupbanker.db?"+dsnParams, dsn("groupbanker.db"))
	assert.Equal(t, "file:groupbanker.db?mode=rwc&"+dsnParams, dsn("file:groupbanker.db?mode=rwc"))
}

func TestOpen_URIWithQuery(t *testing.T) {
	ctx := context.Background()
	path := "file:" + filepath.Join(t.TempDir(), "groupbanker.db") + "?mode=rwc"

	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.CreateTransaction(ctx, -3.2, "refund", "2024-01-02T09:30")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	count, err := db.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestOpen_FailsWhenFileCannotBeCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "groupbanker.db")

	db, err := Open(path)
	require.Error(t, err)
	assert.Nil(t, db)
	assert.ErrorIs(t, err, ErrOpenFailure)
}

func TestOpen_RejectsInvalidSchemaVersion(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "groupbanker.db"), WithSchemaVersion(0))
	assert.ErrorIs(t, err, ErrOpenFailure)
}

func TestClose_Idempotent(t *testing.T) {
	db, _ := openTestDatabase(t)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	var nilDB *Database
	assert.NoError(t, nilDB.Close())
}

func TestClosedDatabase(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDatabase(t)
	require.NoError(t, db.Close())

	_, err := db.CreateTransaction(ctx, 1, "x", "y")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = db.ListTransactions(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = db.CountTransactions(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, db.Ping(ctx), ErrClosed)
}

func TestCreateTransaction_AssignsUniqueIDs(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDatabase(t)

	seen := map[int64]bool{}
	for i := 0; i < 20; i++ {
		id, err := db.CreateTransaction(ctx, float64(i)*1.25, "item", "2024-05-05T10:00")
		require.NoError(t, err)
		assert.False(t, seen[id], "id %d returned twice", id)
		seen[id] = true
	}

	got, err := db.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 20)
	for _, tx := range got {
		assert.True(t, seen[tx.ID], "unexpected id %d", tx.ID)
	}
}

func TestCreateTransaction_ConstraintViolations(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDatabase(t)

	_, err := db.CreateTransaction(ctx, 5, "existing", "2024-01-01T00:00")
	require.NoError(t, err)

	tests := []struct {
		name        string
		amount      float64
		description string
		time        string
	}{
		{name: "empty description", amount: 1, description: "", time: "2024-01-01T00:00"},
		{name: "empty time", amount: 1, description: "lunch", time: ""},
		{name: "both empty", amount: 1},
		{name: "NaN amount", amount: math.NaN(), description: "lunch", time: "2024-01-01T00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := db.CreateTransaction(ctx, tt.amount, tt.description, tt.time)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConstraintViolation)
			assert.True(t, IsConstraintViolation(err))
			assert.Zero(t, id)

			count, err := db.CountTransactions(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})
	}
}

func TestSaveTransaction_RejectsCallerID(t *testing.T) {
	db, _ := openTestDatabase(t)

	err := db.SaveTransaction(context.Background(), &Transaction{ID: 7, Amount: 1, Description: "a", Time: "b"})
	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func TestSaveTransaction_FillsID(t *testing.T) {
	db, _ := openTestDatabase(t)

	tx := Transaction{Amount: 3, Description: "bus", Time: "2024-02-02T07:15"}
	require.NoError(t, db.SaveTransaction(context.Background(), &tx))
	assert.NotZero(t, tx.ID)
}

func TestSaveTransaction_NotNullFromDriver(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDatabase(t)

	err := db.db.Exec(`INSERT INTO "transaction" (amount, description, time) VALUES (?, NULL, ?)`, 1.0, "t").Error
	require.Error(t, err)
	assert.True(t, isConstraintError(err))

	count, err := db.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFetchAllTransactions_EmptyStore(t *testing.T) {
	db, _ := openTestDatabase(t)

	n := 0
	for _, err := range db.FetchAllTransactions(context.Background()) {
		require.NoError(t, err)
		n++
	}
	assert.Zero(t, n)

	got, err := db.ListTransactions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFetchAllTransactions_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDatabase(t)

	want := []Transaction{
		{Amount: 10.5, Description: "lunch", Time: "2024-01-01T12:00"},
		{Amount: -3.2, Description: "refund", Time: "2024-01-02T09:30"},
		{Amount: 100.0, Description: "rent", Time: "2024-01-03T00:00"},
	}
	for i := range want {
		id, err := db.CreateTransaction(ctx, want[i].Amount, want[i].Description, want[i].Time)
		require.NoError(t, err)
		want[i].ID = id
	}

	var got []Transaction
	for tx, err := range db.FetchAllTransactions(ctx) {
		require.NoError(t, err)
		got = append(got, tx)
	}
	assert.Equal(t, want, got)

	ids := map[int64]bool{}
	for _, tx := range got {
		ids[tx.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestFetchAllTransactions_StopsEarly(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDatabase(t)

	for _, d := range []string{"a", "b", "c"} {
		_, err := db.CreateTransaction(ctx, 1, d, "2024-01-01T00:00")
		require.NoError(t, err)
	}

	var first Transaction
	for tx, err := range db.FetchAllTransactions(ctx) {
		require.NoError(t, err)
		first = tx
		break
	}
	assert.Equal(t, "a", first.Description)

	// The abandoned rows must have been released.
	_, err := db.CreateTransaction(ctx, 1, "d", "2024-01-01T00:00")
	require.NoError(t, err)
}

func TestFetchAllTransactions_Snapshot(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDatabase(t)

	for _, d := range []string{"a", "b"} {
		_, err := db.CreateTransaction(ctx, 1, d, "2024-01-01T00:00")
		require.NoError(t, err)
	}

	seen := 0
	for _, err := range db.FetchAllTransactions(ctx) {
		require.NoError(t, err)
		if seen == 0 {
			_, err := db.CreateTransaction(ctx, 1, "late", "2024-01-01T00:00")
			require.NoError(t, err)
		}
		seen++
	}
	assert.Equal(t, 2, seen)

	all, err := db.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPing(t *testing.T) {
	db, _ := openTestDatabase(t)
	assert.NoError(t, db.Ping(context.Background()))
}
