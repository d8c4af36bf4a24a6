package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/go-faster/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driver() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseDialect() goose.Dialect {
	if d == DialectPostgres {
		return goose.DialectPostgres
	}
	return goose.DialectSQLite3
}

func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// SQLStore keeps keys in the cart_kv table of a SQLite or PostgreSQL database.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect

	getQuery    string
	upsertQuery string
	deleteQuery string
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	p := dialect.placeholder
	return &SQLStore{
		db:       db,
		dialect:  dialect,
		getQuery: "SELECT value FROM cart_kv WHERE key = " + p(1),
		upsertQuery: "INSERT INTO cart_kv (key, value, updated_at) VALUES (" + p(1) + ", " + p(2) + ", CURRENT_TIMESTAMP) " +
			"ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP",
		deleteQuery: "DELETE FROM cart_kv WHERE key = " + p(1),
	}
}

// OpenSQL opens dsn with the dialect's driver, applies migrations and returns
// a ready store.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(dialect.driver(), dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dialect)
	}
	if dialect == DialectSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping %s", dialect)
	}
	if err := Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLStore(db, dialect), nil
}

// Migrate applies the embedded schema migrations. Each call uses its own
// goose provider, so stores on different dialects can migrate concurrently.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "migrations fs")
	}
	provider, err := goose.NewProvider(dialect.gooseDialect(), db, fsys)
	if err != nil {
		return errors.Wrap(err, "migration provider")
	}
	if _, err := provider.Up(ctx); err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.getQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "get %s", key)
	}
	return value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.upsertQuery, key, value); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery, key); err != nil {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}

// WriteBatch applies writes in a single transaction.
func (s *SQLStore) WriteBatch(ctx context.Context, writes []Write) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin batch")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, w := range writes {
		if w.Delete {
			if _, err = tx.ExecContext(ctx, s.deleteQuery, w.Key); err != nil {
				return &KeyError{Op: "delete", Key: w.Key, Err: err}
			}
			continue
		}
		if _, err = tx.ExecContext(ctx, s.upsertQuery, w.Key, w.Value); err != nil {
			return &KeyError{Op: "write", Key: w.Key, Err: err}
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit batch")
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
