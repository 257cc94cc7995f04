package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockAuditDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresRecorder) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresRecorder(db, zap.NewNop())
}

func TestNewEntry(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	e := NewEntry("devotees", "xlsx", "devotees_20240301_100000.xlsx", 12, "admin", at)

	_, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, e.Rows)
	assert.Equal(t, time.UTC, e.CreatedAt.Location())
	assert.True(t, e.CreatedAt.Equal(at))
}

func TestPostgresRecorder_Record(t *testing.T) {
	db, mock, rec := setupMockAuditDB(t)
	defer db.Close()

	e := NewEntry("cows", "pdf", "cows_20240301_100000.pdf", 3, "", time.Now())
	mock.ExpectExec(`INSERT INTO export_audit`).
		WithArgs(e.ID, "cows", "pdf", e.Filename, 3, "", e.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, rec.Record(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_RecordError(t *testing.T) {
	db, mock, rec := setupMockAuditDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO export_audit`).WillReturnError(errors.New("connection refused"))

	err := rec.Record(context.Background(), NewEntry("cows", "pdf", "f.pdf", 1, "", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_EnsureSchema(t *testing.T) {
	db, mock, rec := setupMockAuditDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS export_audit`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, rec.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_Recent(t *testing.T) {
	db, mock, rec := setupMockAuditDB(t)
	defer db.Close()

	now := time.Now().UTC()
	id := uuid.New().String()
	rows := sqlmock.NewRows([]string{"id", "resource", "format", "filename", "row_count", "actor", "created_at"}).
		AddRow(id, "stock", "xlsx", "stock_1.xlsx", 40, "ops", now)
	mock.ExpectQuery(`SELECT`).WithArgs("stock", 20).WillReturnRows(rows)

	entries, err := rec.Recent(context.Background(), "stock", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, 40, entries[0].Rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemory(t *testing.T) {
	m := &Memory{}
	require.NoError(t, m.Record(context.Background(), Entry{Resource: "a"}))
	require.NoError(t, m.Record(context.Background(), Entry{Resource: "b"}))
	require.Len(t, m.Entries(), 2)
	assert.Equal(t, "b", m.Entries()[1].Resource)

	assert.NoError(t, Nop{}.Record(context.Background(), Entry{}))
}

func TestMemory_Recent(t *testing.T) {
	m := &Memory{}
	ctx := context.Background()
	for _, name := range []string{"cows_1.xlsx", "income_1.pdf", "cows_2.pdf", "cows_3.xlsx"} {
		res := "cows"
		if name == "income_1.pdf" {
			res = "income"
		}
		require.NoError(t, m.Record(ctx, Entry{Resource: res, Filename: name}))
	}

	got, err := m.Recent(ctx, "cows", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cows_3.xlsx", got[0].Filename)
	assert.Equal(t, "cows_2.pdf", got[1].Filename)

	got, err = m.Recent(ctx, "stock", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	var _ History = m
	var _ History = (*PostgresRecorder)(nil)
	_, isHistory := Recorder(Nop{}).(History)
	assert.False(t, isHistory)
}
