package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the common PersistentStore contract against s.
func exerciseStore(t *testing.T, s PersistentStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v1"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	require.NoError(t, s.Set(ctx, "k", "v2"))
	v, _, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, "never-set"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_FailWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	boom := errors.New("quota exceeded")

	m.FailWrites(boom)
	assert.ErrorIs(t, m.Set(ctx, "a", "1"), boom)
	assert.ErrorIs(t, m.Delete(ctx, "a"), boom)

	m.FailWrites(boom, "wishlist")
	assert.NoError(t, m.Set(ctx, "cartItems", "[]"))
	assert.ErrorIs(t, m.Set(ctx, "wishlist", "[]"), boom)

	m.FailWrites(nil)
	assert.NoError(t, m.Set(ctx, "wishlist", "[]"))
	assert.Equal(t, []string{"cartItems", "wishlist"}, m.Keys())
	assert.Equal(t, 2, m.Writes())
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemoryStore()
	assert.ErrorIs(t, m.Set(ctx, "a", "1"), context.Canceled)
	_, _, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNamespace(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	a := Namespace(m, "cart:alice")
	b := Namespace(m, "cart:bob")

	exerciseStore(t, a)

	require.NoError(t, a.Set(ctx, "cartItems", "A"))
	require.NoError(t, b.Set(ctx, "cartItems", "B"))

	v, _, _ := a.Get(ctx, "cartItems")
	assert.Equal(t, "A", v)
	v, _, _ = b.Get(ctx, "cartItems")
	assert.Equal(t, "B", v)
	assert.Equal(t, []string{"cart:alice:cartItems", "cart:bob:cartItems"}, m.Keys())
	assert.Equal(t, "cart:bob:", b.Prefix())
}

func TestNamespace_TrailingSeparatorIsDistinct(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	plain := Namespace(m, "cart:a")
	colon := Namespace(m, "cart:a:")

	require.NoError(t, plain.Set(ctx, KeyCartCount, "2"))

	_, ok, err := colon.Get(ctx, KeyCartCount)
	require.NoError(t, err)
	assert.False(t, ok, "session \"a:\" must not see session \"a\"")

	require.NoError(t, colon.Set(ctx, KeyCartCount, "5"))
	v, _, _ := plain.Get(ctx, KeyCartCount)
	assert.Equal(t, "2", v)
	assert.Equal(t, []string{"cart:a::cartCount", "cart:a:cartCount"}, m.Keys())
}

func TestWriteBatch_Memory(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Set(ctx, "stale", "x"))

	require.NoError(t, WriteBatch(ctx, m, []Write{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "2"},
		{Key: "stale", Delete: true},
	}))
	assert.Equal(t, []string{"a", "b"}, m.Keys())

	boom := errors.New("disk full")
	m.FailWrites(boom, "d")
	err := WriteBatch(ctx, m, []Write{{Key: "c", Value: "3"}, {Key: "d", Value: "4"}})
	var keyErr *KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "d", keyErr.Key)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, m.Keys(), "a failed batch writes nothing")
}

// setOnly hides the batch support of the store it wraps.
type setOnly struct{ PersistentStore }

func TestWriteBatch_FallbackPerKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Set(ctx, "old", "x"))

	require.NoError(t, WriteBatch(ctx, setOnly{m}, []Write{
		{Key: "a", Value: "1"},
		{Key: "old", Delete: true},
	}))
	assert.Equal(t, []string{"a"}, m.Keys())

	boom := errors.New("read only")
	m.FailWrites(boom, "old")
	err := WriteBatch(ctx, setOnly{m}, []Write{{Key: "old", Delete: true}})
	var keyErr *KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "delete", keyErr.Op)
}

func TestNamespace_WriteBatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ns := Namespace(m, "cart:s1")

	require.NoError(t, WriteBatch(ctx, ns, []Write{{Key: KeyCartItems, Value: "[]"}, {Key: KeyCartCount, Value: "0"}}))
	assert.Equal(t, []string{"cart:s1:cartCount", "cart:s1:cartItems"}, m.Keys())

	m.FailWrites(errors.New("boom"), "cart:s1:cartCount")
	err := WriteBatch(ctx, ns, []Write{{Key: KeyCartCount, Value: "1"}})
	var keyErr *KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, KeyCartCount, keyErr.Key)
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisStore(t *testing.T) {
	_, client := setupTestRedis(t)
	exerciseStore(t, NewRedisStore(client))
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client, WithKeyPrefix("artisan:"), WithTTL(time.Hour))

	require.NoError(t, s.Set(context.Background(), "cartCount", "3"))

	got, err := mr.Get("artisan:cartCount")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
	assert.Equal(t, time.Hour, mr.TTL("artisan:cartCount"))

	mr.FastForward(2 * time.Hour)
	_, ok, err := s.Get(context.Background(), "cartCount")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_WriteBatch(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client, WithKeyPrefix("artisan:"), WithTTL(time.Hour))
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "cartPromo", "{}"))

	require.NoError(t, WriteBatch(ctx, s, []Write{
		{Key: "cartItems", Value: "[]"},
		{Key: "cartCount", Value: "0"},
		{Key: "cartPromo", Delete: true},
	}))

	got, err := mr.Get("artisan:cartCount")
	require.NoError(t, err)
	assert.Equal(t, "0", got)
	assert.Equal(t, time.Hour, mr.TTL("artisan:cartItems"))
	assert.False(t, mr.Exists("artisan:cartPromo"))
}

func TestOpenRedis(t *testing.T) {
	mr, _ := setupTestRedis(t)

	s, err := OpenRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)

	_, err = OpenRedis(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestRedisStore_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	s := NewRedisStore(client)
	mr.Close()

	assert.Error(t, s.Set(context.Background(), "k", "v"))
}

func TestSQLStore_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cart.db")

	s, err := OpenSQL(ctx, DialectSQLite, path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Set(ctx, "cartCount", "7"))
	require.NoError(t, s.Close())

	reopened, err := OpenSQL(ctx, DialectSQLite, path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, "cartCount")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", v)
}

func TestSQLStore_ConcurrentOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := OpenSQL(ctx, DialectSQLite, filepath.Join(dir, fmt.Sprintf("cart-%d.db", i)))
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = errors.Join(s.Set(ctx, "cartCount", "1"), s.Close())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestSQLStore_WriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLStore(db, DialectPostgres)
	ctx := context.Background()
	upsert := regexp.QuoteMeta("INSERT INTO cart_kv (key, value, updated_at) VALUES ($1, $2, CURRENT_TIMESTAMP)")
	del := regexp.QuoteMeta("DELETE FROM cart_kv WHERE key = $1")

	mock.ExpectBegin()
	mock.ExpectExec(upsert).WithArgs("cart:s1:cartItems", "[]").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(upsert).WithArgs("cart:s1:cartCount", "0").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(del).WithArgs("cart:s1:cartPromo").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, WriteBatch(ctx, Namespace(s, "cart:s1"), []Write{
		{Key: "cartItems", Value: "[]"},
		{Key: "cartCount", Value: "0"},
		{Key: "cartPromo", Delete: true},
	}))

	boom := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec(upsert).WithArgs("cartItems", "[]").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(upsert).WithArgs("cartCount", "0").WillReturnError(boom)
	mock.ExpectRollback()
	err = s.WriteBatch(ctx, []Write{{Key: "cartItems", Value: "[]"}, {Key: "cartCount", Value: "0"}})
	var keyErr *KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "cartCount", keyErr.Key)
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLStore(db, DialectPostgres)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cart_kv (key, value, updated_at) VALUES ($1, $2, CURRENT_TIMESTAMP)")).
		WithArgs("cart:s1:cartCount", "2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, s.Set(ctx, "cart:s1:cartCount", "2"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM cart_kv WHERE key = $1")).
		WithArgs("cart:s1:cartCount").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("2"))
	v, ok, err := s.Get(ctx, "cart:s1:cartCount")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM cart_kv WHERE key = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	_, ok, err = s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart_kv WHERE key = $1")).
		WithArgs("cart:s1:cartCount").
		WillReturnError(errors.New("connection reset"))
	assert.Error(t, s.Delete(ctx, "cart:s1:cartCount"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
