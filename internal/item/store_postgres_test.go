package item

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/naughtygopher/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgresPersistentStore(t *testing.T) {
	pstore, err := NewPostgresPersistentStore(nil, "")
	require.NoError(t, err)
	assert.Equal(t, `"items"`, pstore.table)

	pstore, err = NewPostgresPersistentStore(nil, `inventory"; DROP TABLE items; --`)
	require.NoError(t, err)
	assert.Equal(t, `"inventory""; DROP TABLE items; --"`, pstore.table)
}

func newMockedPostgresStore(t *testing.T) (*postgresItemStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	pstore, err := NewPostgresPersistentStore(db, "inventory_items")
	require.NoError(t, err)
	return pstore, mock
}

var itemColumns = []string{"code", "name", "quantity", "date_added"}

func TestPostgresStoreMigrate(t *testing.T) {
	pstore, mock := newMockedPostgresStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "inventory_items"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, pstore.Migrate(t.Context()))
}

func TestPostgresStoreExistsByCode(t *testing.T) {
	pstore, mock := newMockedPostgresStore(t)
	query := regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM "inventory_items" WHERE code = $1)`)

	mock.ExpectQuery(query).WithArgs(101).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	exists, err := pstore.ExistsByCode(t.Context(), 101)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(query).WithArgs(102).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	exists, err = pstore.ExistsByCode(t.Context(), 102)
	require.NoError(t, err)
	assert.False(t, exists)

	mock.ExpectQuery(query).WithArgs(103).WillReturnError(sql.ErrConnDone)
	_, err = pstore.ExistsByCode(t.Context(), 103)
	require.ErrorIs(t, err, sql.ErrConnDone)
}

func TestPostgresStoreSaveItemUpserts(t *testing.T) {
	pstore, mock := newMockedPostgresStore(t)
	rice := Item{Code: 101, Name: "RiceOrPAddy", Quantity: 1025, DateAdded: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "inventory_items" (code, name, quantity, date_added)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE
SET name = EXCLUDED.name, quantity = EXCLUDED.quantity, date_added = EXCLUDED.date_added`)).
		WithArgs(rice.Code, rice.Name, rice.Quantity, rice.DateAdded).
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := pstore.SaveItem(t.Context(), rice)
	require.NoError(t, err)
	assert.Equal(t, rice, *saved)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "inventory_items"`)).
		WillReturnError(errors.New("connection reset"))
	_, err = pstore.SaveItem(t.Context(), rice)
	require.Error(t, err)
}

func TestPostgresStoreItemByCode(t *testing.T) {
	pstore, mock := newMockedPostgresStore(t)
	query := regexp.QuoteMeta(`SELECT code, name, quantity, date_added FROM "inventory_items" WHERE code = $1`)
	dateAdded := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(query).WithArgs(101).
		WillReturnRows(sqlmock.NewRows(itemColumns).AddRow(101, "RiceOrPAddy", 1025, dateAdded))
	found, err := pstore.ItemByCode(t.Context(), 101)
	require.NoError(t, err)
	assert.Equal(t, &Item{Code: 101, Name: "RiceOrPAddy", Quantity: 1025, DateAdded: dateAdded}, found)

	mock.ExpectQuery(query).WithArgs(404).WillReturnRows(sqlmock.NewRows(itemColumns))
	found, err = pstore.ItemByCode(t.Context(), 404)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, found)

	mock.ExpectQuery(query).WithArgs(500).WillReturnError(sql.ErrConnDone)
	_, err = pstore.ItemByCode(t.Context(), 500)
	require.ErrorIs(t, err, sql.ErrConnDone)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestPostgresStoreListItems(t *testing.T) {
	pstore, mock := newMockedPostgresStore(t)
	query := regexp.QuoteMeta(`SELECT code, name, quantity, date_added FROM "inventory_items" ORDER BY code`)
	dateAdded := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(query).WillReturnRows(
		sqlmock.NewRows(itemColumns).
			AddRow(101, "RiceOrPAddy", 1025, dateAdded).
			AddRow(102, "Wheat", 2025, dateAdded),
	)
	list, err := pstore.ListItems(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 101, list[0].Code)
	assert.Equal(t, Item{Code: 102, Name: "Wheat", Quantity: 2025, DateAdded: dateAdded}, list[1])

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(itemColumns))
	list, err = pstore.ListItems(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	mock.ExpectQuery(query).WillReturnRows(
		sqlmock.NewRows(itemColumns).
			AddRow(101, "RiceOrPAddy", 1025, dateAdded).
			RowError(0, sql.ErrConnDone),
	)
	_, err = pstore.ListItems(t.Context())
	require.ErrorIs(t, err, sql.ErrConnDone)
}

func TestPostgresStoreDeleteByCode(t *testing.T) {
	pstore, mock := newMockedPostgresStore(t)
	query := regexp.QuoteMeta(`DELETE FROM "inventory_items" WHERE code = $1`)

	mock.ExpectExec(query).WithArgs(101).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, pstore.DeleteByCode(t.Context(), 101))

	mock.ExpectExec(query).WithArgs(102).WillReturnError(sql.ErrConnDone)
	require.ErrorIs(t, pstore.DeleteByCode(t.Context(), 102), sql.ErrConnDone)
}

func TestPostgresStoreWithService(t *testing.T) {
	pstore, mock := newMockedPostgresStore(t)
	svc, err := NewService(pstore)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(`)).WithArgs(101).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err = svc.Add(t.Context(), Item{Code: 101, Name: "RiceOrPAddy"})
	require.ErrorIs(t, err, ErrDuplicateItem)
}
