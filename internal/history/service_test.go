package history

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	sql     string
	args    []any
	execErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestRecordFillsIDAndTimestamp(t *testing.T) {
	db := &fakeDB{}
	quota := 42

	err := NewService(db).Record(context.Background(), Entry{
		ImageURL:       "https://example.com/oak.jpg",
		Organs:         "auto",
		OrganUsed:      "flower",
		BestMatch:      "Quercus robur L.",
		BestScore:      0.9,
		RemainingQuota: &quota,
	})
	require.NoError(t, err)

	assert.Contains(t, db.sql, "INSERT INTO identifications")
	require.Len(t, db.args, 9)
	assert.NotEqual(t, uuid.Nil, db.args[0])
	assert.Equal(t, "https://example.com/oak.jpg", db.args[1])
	assert.Equal(t, "auto", db.args[2])
	assert.Equal(t, "flower", db.args[3])
	assert.Equal(t, &quota, db.args[6])
}

func TestRecordWrapsErrors(t *testing.T) {
	db := &fakeDB{execErr: errors.New("connection refused")}

	err := NewService(db).Record(context.Background(), Entry{ImageURL: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert identification")
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-3))
	assert.Equal(t, 10, ClampLimit(10))
	assert.Equal(t, MaxLimit, ClampLimit(10_000))
}
