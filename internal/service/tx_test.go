package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"picimpact-go/internal/config"
)

// lockWaitConn 是只认识 innodb_lock_wait_timeout 的 database/sql 驱动连接，
// 用来观察 mysql 方言下 runInTx 对会话变量的读写。
type lockWaitConn struct {
	mu      sync.Mutex
	current int64
	execs   []string
}

func (c *lockWaitConn) Connect(context.Context) (driver.Conn, error) { return c, nil }
func (c *lockWaitConn) Driver() driver.Driver                       { return c }
func (c *lockWaitConn) Open(string) (driver.Conn, error)            { return c, nil }
func (c *lockWaitConn) Close() error                                { return nil }
func (c *lockWaitConn) Begin() (driver.Tx, error)                   { return lockWaitTx{}, nil }

func (c *lockWaitConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *lockWaitConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, query)
	if strings.HasPrefix(query, "SET SESSION innodb_lock_wait_timeout") && len(args) == 1 {
		v, ok := args[0].Value.(int64)
		if !ok {
			return nil, errors.New("unexpected argument type")
		}
		c.current = v
	}
	return driver.RowsAffected(0), nil
}

func (c *lockWaitConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !strings.Contains(query, "innodb_lock_wait_timeout") {
		return nil, errors.New("unexpected query: " + query)
	}
	return &singleValueRows{column: "@@SESSION.innodb_lock_wait_timeout", value: c.current}, nil
}

func (c *lockWaitConn) value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

type lockWaitTx struct{}

func (lockWaitTx) Commit() error   { return nil }
func (lockWaitTx) Rollback() error { return nil }

type singleValueRows struct {
	column string
	value  int64
	done   bool
}

func (r *singleValueRows) Columns() []string { return []string{r.column} }
func (r *singleValueRows) Close() error      { return nil }

func (r *singleValueRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = r.value
	return nil
}

func newLockWaitDB(t *testing.T, current int64) (*gorm.DB, *lockWaitConn) {
	t.Helper()
	conn := &lockWaitConn{current: current}
	sqlDB := sql.OpenDB(conn)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, conn
}

func TestRunInTx_RestoresMySQLLockWait(t *testing.T) {
	db, conn := newLockWaitDB(t, 50)

	var during int64
	err := runInTx(context.Background(), db, config.TxConfig{LockWaitSeconds: 3, TimeoutSeconds: 5}, func(ctx context.Context, tx *gorm.DB) error {
		during = conn.value()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), during)
	assert.Equal(t, int64(50), conn.value())
}

func TestRunInTx_RestoresMySQLLockWaitOnError(t *testing.T) {
	db, conn := newLockWaitDB(t, 50)
	boom := errors.New("boom")

	err := runInTx(context.Background(), db, config.TxConfig{LockWaitSeconds: 3, TimeoutSeconds: 5}, func(ctx context.Context, tx *gorm.DB) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(50), conn.value())
}

func TestRunInTx_SkipsLockWaitOutsideMySQL(t *testing.T) {
	db := newTestDB(t)
	called := false
	err := runInTx(context.Background(), db, config.TxConfig{LockWaitSeconds: 3, TimeoutSeconds: 5}, func(ctx context.Context, tx *gorm.DB) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
