package postgresql_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"go.llib.dev/testcase/assert"

	"go.llib.dev/aggregate/adapter/postgresql"
	"go.llib.dev/aggregate/internal/testent"
)

func DatabaseDSN(tb testing.TB) string {
	const envKey = "PG_DATABASE_URL"
	dsn, ok := os.LookupEnv(envKey)
	if !ok {
		tb.Skipf("%s is not set", envKey)
	}
	return dsn
}

var (
	connection      *postgresql.Connection
	mutexConnection sync.Mutex
)

func GetConnection(tb testing.TB) postgresql.Connection {
	mutexConnection.Lock()
	defer mutexConnection.Unlock()
	if connection != nil {
		return *connection
	}
	c, err := postgresql.Connect(DatabaseDSN(tb))
	assert.NoError(tb, err)
	connection = &c
	return c
}

// NewStore returns a Store on a freshly migrated schema, which is dropped after the test.
func NewStore(tb testing.TB) *postgresql.Store {
	c := GetConnection(tb)
	ctx := context.Background()
	_, err := c.ExecContext(ctx, testent.PostgresDropSchema)
	assert.NoError(tb, err)
	_, err = c.ExecContext(ctx, testent.PostgresSchema)
	assert.NoError(tb, err)
	tb.Cleanup(func() {
		_, err := c.ExecContext(ctx, testent.PostgresDropSchema)
		assert.NoError(tb, err)
	})
	return &postgresql.Store{Connection: c}
}
