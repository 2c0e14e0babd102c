package replication

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubDriver is a database/sql driver over an in-memory video table keyed by
// identifier. Inserts become visible on commit, like ON CONFLICT DO NOTHING
// rows in a transaction.
type stubDriver struct{}

var (
	stubMu       sync.Mutex
	stubBackends = map[string]*stubBackend{}
	stubSeq      int
)

func init() {
	sql.Register("replstub", stubDriver{})
}

type stubBackend struct {
	mu       sync.Mutex
	rows     map[string]bool
	fail     map[string]error
	attempts []string
	ddl      int
}

func (b *stubBackend) attempted(identifier string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.attempts {
		if a == identifier {
			return true
		}
	}
	return false
}

func (b *stubBackend) stored() map[string]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]bool, len(b.rows))
	for k := range b.rows {
		out[k] = true
	}
	return out
}

// sqlTarget is a DBProvider over the stub driver.
type sqlTarget struct{ db *sql.DB }

func (t sqlTarget) DB() *sql.DB { return t.db }

func newStubTarget(t *testing.T, existing ...string) (sqlTarget, *stubBackend) {
	t.Helper()
	b := &stubBackend{rows: map[string]bool{}, fail: map[string]error{}}
	for _, id := range existing {
		b.rows[id] = true
	}

	stubMu.Lock()
	stubSeq++
	dsn := fmt.Sprintf("stub-%d", stubSeq)
	stubBackends[dsn] = b
	stubMu.Unlock()

	db, err := sql.Open("replstub", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlTarget{db: db}, b
}

func (stubDriver) Open(dsn string) (driver.Conn, error) {
	stubMu.Lock()
	defer stubMu.Unlock()
	b, ok := stubBackends[dsn]
	if !ok {
		return nil, fmt.Errorf("unknown dsn %q", dsn)
	}
	return &stubConn{backend: b}, nil
}

type stubConn struct {
	backend *stubBackend
	pending []string
}

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return &stubStmt{conn: c, query: query}, nil
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	c.pending = nil
	return &stubTx{conn: c}, nil
}

// CheckNamedValue accepts every argument type, the way pgx does.
func (c *stubConn) CheckNamedValue(*driver.NamedValue) error { return nil }

type stubTx struct{ conn *stubConn }

func (tx *stubTx) Commit() error {
	b := tx.conn.backend
	b.mu.Lock()
	for _, id := range tx.conn.pending {
		b.rows[id] = true
	}
	b.mu.Unlock()
	tx.conn.pending = nil
	return nil
}

func (tx *stubTx) Rollback() error {
	tx.conn.pending = nil
	return nil
}

type stubStmt struct {
	conn  *stubConn
	query string
}

func (s *stubStmt) Close() error  { return nil }
func (s *stubStmt) NumInput() int { return -1 }

func (s *stubStmt) Exec(args []driver.Value) (driver.Result, error) {
	b := s.conn.backend
	if !strings.Contains(s.query, "INSERT INTO video") {
		b.mu.Lock()
		b.ddl++
		b.mu.Unlock()
		return driver.RowsAffected(0), nil
	}

	identifier, _ := args[0].(string)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = append(b.attempts, identifier)
	if err := b.fail[identifier]; err != nil {
		return nil, err
	}
	if b.rows[identifier] {
		return driver.RowsAffected(0), nil
	}
	for _, p := range s.conn.pending {
		if p == identifier {
			return driver.RowsAffected(0), nil
		}
	}
	s.conn.pending = append(s.conn.pending, identifier)
	return driver.RowsAffected(1), nil
}

func (s *stubStmt) Query(args []driver.Value) (driver.Rows, error) {
	return nil, errors.New("query not supported")
}
