package db_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/db/dbtest"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	dbh := dbtest.Open(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, dbh, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO banks (name, created_at) VALUES ($1, $2)`, "DB101", 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, dbtest.Count(t, dbh, `SELECT COUNT(*) FROM banks`))

	err = db.WithTx(ctx, dbh, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO banks (name, created_at) VALUES ($1, $2)`, "DB101", 1)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, dbtest.Count(t, dbh, `SELECT COUNT(*) FROM banks`))
}

func TestProgressCheckConstraint(t *testing.T) {
	dbh := dbtest.Open(t)
	_, err := dbh.Exec(`INSERT INTO banks (id, name, created_at) VALUES (1, 'b', 0)`)
	require.NoError(t, err)
	_, err = dbh.Exec(`INSERT INTO chapters (id, bank_id, name) VALUES (1, 1, 'c')`)
	require.NoError(t, err)

	_, err = dbh.Exec(`INSERT INTO chapter_progress (user_id, chapter_id, total_count, correct_count, updated_at) VALUES (1, 1, 1, 2, 0)`)
	assert.Error(t, err, "correct_count above total_count must be rejected")
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$3,$4,$5", db.Placeholders(3, 3))
	assert.Equal(t, "", db.Placeholders(1, 0))
}

func TestParseDriver(t *testing.T) {
	d, err := db.ParseDriver("pgx")
	require.NoError(t, err)
	assert.Equal(t, db.DriverPostgres, d)

	d, err = db.ParseDriver("")
	require.NoError(t, err)
	assert.Equal(t, db.DriverSQLite, d)

	_, err = db.ParseDriver("oracle")
	assert.Error(t, err)
}

func TestForeignKeysSurviveConnectionReplacement(t *testing.T) {
	dbh := dbtest.Open(t)
	ctx := context.Background()

	conn, err := dbh.Conn(ctx)
	require.NoError(t, err)
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()

	var on int
	require.NoError(t, dbh.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&on))
	assert.Equal(t, 1, on)
}

func TestIsUniqueViolation(t *testing.T) {
	dbh := dbtest.Open(t)
	ctx := context.Background()

	_, err := dbh.ExecContext(ctx, `INSERT INTO banks (name, created_at) VALUES ($1, $2)`, "DB101", 1)
	require.NoError(t, err)
	_, err = dbh.ExecContext(ctx, `INSERT INTO banks (name, created_at) VALUES ($1, $2)`, "DB101", 2)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))

	_, err = dbh.ExecContext(ctx, `INSERT INTO chapters (bank_id, name) VALUES ($1, $2)`, 9999, "orphan")
	require.Error(t, err, "foreign key")
	assert.False(t, db.IsUniqueViolation(err))
	assert.False(t, db.IsUniqueViolation(errors.New("UNIQUE constraint failed")), "plain errors are not driver errors")
}
