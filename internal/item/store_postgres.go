package item

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/naughtygopher/errors"
)

const defaultPostgresTable = "items"

type postgresItemStore struct {
	db    *sql.DB
	table string
}

// NewPostgresPersistentStore returns a store backed by a `database/sql` handle opened with the
// "postgres" driver. An empty table name defaults to "items".
func NewPostgresPersistentStore(db *sql.DB, table string) (*postgresItemStore, error) { //nolint:revive // it is ok to return unexported type in this case, ensures controlled access
	if table == "" {
		table = defaultPostgresTable
	}
	return &postgresItemStore{
		db:    db,
		table: pq.QuoteIdentifier(table),
	}, nil
}

// Migrate creates the items table if it doesn't exist yet.
func (pstore *postgresItemStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	code       INTEGER PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	quantity   INTEGER NOT NULL DEFAULT 0,
	date_added DATE NOT NULL
)`, pstore.table)

	_, err := pstore.db.ExecContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "could not create items table")
	}
	return nil
}

func (pstore *postgresItemStore) ExistsByCode(ctx context.Context, code int) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE code = $1)`, pstore.table)

	exists := false
	err := pstore.db.QueryRowContext(ctx, query, code).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "could not check item existence")
	}

	return exists, nil
}

func (pstore *postgresItemStore) SaveItem(ctx context.Context, item Item) (*Item, error) {
	query := fmt.Sprintf(`INSERT INTO %s (code, name, quantity, date_added)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE
SET name = EXCLUDED.name, quantity = EXCLUDED.quantity, date_added = EXCLUDED.date_added`, pstore.table)

	_, err := pstore.db.ExecContext(ctx, query, item.Code, item.Name, item.Quantity, item.DateAdded)
	if err != nil {
		return nil, errors.Wrap(err, "could not save the item")
	}

	return &item, nil
}

func (pstore *postgresItemStore) ItemByCode(ctx context.Context, code int) (*Item, error) {
	query := fmt.Sprintf(`SELECT code, name, quantity, date_added FROM %s WHERE code = $1`, pstore.table)

	item := new(Item)
	err := pstore.db.QueryRowContext(ctx, query, code).Scan(
		&item.Code,
		&item.Name,
		&item.Quantity,
		&item.DateAdded,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed getting item")
	}

	return item, nil
}

func (pstore *postgresItemStore) ListItems(ctx context.Context) ([]Item, error) {
	query := fmt.Sprintf(`SELECT code, name, quantity, date_added FROM %s ORDER BY code`, pstore.table)

	rows, err := pstore.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch items")
	}
	defer func() {
		_ = rows.Close()
	}()

	list := make([]Item, 0)
	for rows.Next() {
		it := Item{}
		err = rows.Scan(&it.Code, &it.Name, &it.Quantity, &it.DateAdded)
		if err != nil {
			return nil, errors.Wrap(err, "could not scan item")
		}
		list = append(list, it)
	}

	err = rows.Err()
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch items")
	}

	return list, nil
}

func (pstore *postgresItemStore) DeleteByCode(ctx context.Context, code int) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE code = $1`, pstore.table)

	_, err := pstore.db.ExecContext(ctx, query, code)
	if err != nil {
		return errors.Wrap(err, "could not delete the item")
	}

	return nil
}
