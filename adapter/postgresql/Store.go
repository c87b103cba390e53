// Package postgresql is a store.Driver on top of PostgreSQL.
// Each table needs an identifier column and a sequence for the key allocation,
// the remaining columns are written as the mapping serialises them.
package postgresql

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5"

	"go.llib.dev/aggregate/pkg/errorkit"
	"go.llib.dev/aggregate/pkg/flsql"
	"go.llib.dev/aggregate/port/store"
)

const ErrInvalidCount errorkit.Error = "postgresql: invalid key count"

type Config struct {
	DatabaseURL string `env:"AGGREGATE_DATABASE_URL,required"`
	// IDColumn is the identifier column of every table.
	IDColumn string `env:"AGGREGATE_PG_ID_COLUMN" envDefault:"id"`
	// SequenceFormat turns a table name into the name of the sequence its keys are drawn from.
	SequenceFormat string `env:"AGGREGATE_PG_SEQUENCE_FORMAT" envDefault:"%s_id_seq"`
}

// LoadConfig reads the Config from the environment.
func LoadConfig() (Config, error) {
	return env.ParseAs[Config]()
}

// Open connects to the configured database and returns a Store using it.
func Open(c Config) (*Store, error) {
	conn, err := Connect(c.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{
		Connection:     conn,
		IDColumn:       c.IDColumn,
		SequenceFormat: c.SequenceFormat,
	}, nil
}

type Store struct {
	Connection flsql.Connection
	// IDColumn [optional] is the identifier column of the tables.
	//
	// Default: "id"
	IDColumn string
	// SequenceFormat [optional] is the fmt format of the key sequence name, receiving the table name.
	//
	// Default: "%s_id_seq"
	SequenceFormat string
	// Keys [optional] allocates the primary keys instead of the table sequences.
	Keys store.KeyAllocator
}

var _ store.Driver = (*Store)(nil)

func (s *Store) BeginTx(ctx context.Context) (context.Context, error) {
	return s.Connection.BeginTx(ctx)
}

func (s *Store) CommitTx(ctx context.Context) error {
	return s.Connection.CommitTx(ctx)
}

func (s *Store) RollbackTx(ctx context.Context) error {
	return s.Connection.RollbackTx(ctx)
}

func (s *Store) Close() error {
	return s.Connection.Close()
}

func (s *Store) PrimaryKeys(ctx context.Context, table string, n int) (_ []store.ID, rErr error) {
	if table == "" {
		return nil, store.ErrInvalidTable
	}
	if n < 0 {
		return nil, ErrInvalidCount.F("%d", n)
	}
	if s.Keys != nil {
		return s.Keys.PrimaryKeys(ctx, table, n)
	}
	if n == 0 {
		return []store.ID{}, nil
	}
	rows, err := s.Connection.QueryContext(ctx,
		`SELECT nextval($1::regclass) FROM generate_series(1, $2)`,
		fmt.Sprintf(s.sequenceFormat(), table), n)
	if err != nil {
		return nil, err
	}
	defer errorkit.Finish(&rErr, rows.Close)
	ids := make([]store.ID, 0, n)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) != n {
		return nil, ErrInvalidCount.F("expected %d keys from the %s sequence, got %d", n, table, len(ids))
	}
	return ids, nil
}

func (s *Store) Insert(ctx context.Context, table string, rows []store.Row) error {
	ref, err := tableRef(table)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if store.IsAbsentID(row.ID) {
			return fmt.Errorf("postgresql: %s row without id", table)
		}
		var (
			cols = columnsOf(row.Values)
			next = makePrepareStatementPlaceholderGenerator()
			refs = []string{quote(s.idColumn())}
			phs  = []string{next()}
			args = []any{row.ID}
		)
		for _, col := range cols {
			refs = append(refs, quote(col))
			phs = append(phs, next())
			args = append(args, row.Values[col])
		}
		query := fmt.Sprintf("INSERT INTO %s (%s)\nVALUES (%s)", ref, strings.Join(refs, ", "), strings.Join(phs, ", "))
		if _, err := s.Connection.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table string, rows []store.Row) error {
	ref, err := tableRef(table)
	if err != nil {
		return err
	}
	for _, row := range rows {
		var (
			next          = makePrepareStatementPlaceholderGenerator()
			idPlaceHolder = next()
			args          = []any{row.ID}
			querySetParts []string
		)
		for _, col := range columnsOf(row.Values) {
			querySetParts = append(querySetParts, fmt.Sprintf("%s = %s", quote(col), next()))
			args = append(args, row.Values[col])
		}
		if len(querySetParts) == 0 {
			querySetParts = append(querySetParts, fmt.Sprintf("%s = %s", quote(s.idColumn()), quote(s.idColumn())))
		}
		query := fmt.Sprintf("UPDATE %s\nSET %s\nWHERE %s = %s",
			ref, strings.Join(querySetParts, ", "), quote(s.idColumn()), idPlaceHolder)
		res, err := s.Connection.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound.F("%s: %v", table, row.ID)
		}
	}
	return nil
}

func (s *Store) DeleteByIDs(ctx context.Context, table string, ids []store.ID) error {
	ref, err := tableRef(table)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	list, args := inList(ids)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", ref, quote(s.idColumn()), list)
	_, err = s.Connection.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) FindByIDs(ctx context.Context, table string, ids []store.ID) ([]store.Row, error) {
	ref, err := tableRef(table)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []store.Row{}, nil
	}
	list, args := inList(ids)
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s) ORDER BY %s",
		ref, quote(s.idColumn()), list, quote(s.idColumn()))
	return s.query(ctx, query, args...)
}

func (s *Store) FindBy(ctx context.Context, table string, where store.Values) ([]store.Row, error) {
	ref, err := tableRef(table)
	if err != nil {
		return nil, err
	}
	var (
		next  = makePrepareStatementPlaceholderGenerator()
		conds []string
		args  []any
	)
	for _, col := range columnsOf(where) {
		if where[col] == nil {
			conds = append(conds, fmt.Sprintf("%s IS NULL", quote(col)))
			continue
		}
		conds = append(conds, fmt.Sprintf("%s = %s", quote(col), next()))
		args = append(args, where[col])
	}
	query := fmt.Sprintf("SELECT * FROM %s", ref)
	if len(conds) > 0 {
		query += "\nWHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf("\nORDER BY %s", quote(s.idColumn()))
	return s.query(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (_ []store.Row, rErr error) {
	rows, err := s.Connection.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer errorkit.Finish(&rErr, rows.Close)
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []store.Row{}
	for rows.Next() {
		var (
			vals = make([]any, len(cols))
			ptrs = make([]any, len(cols))
		)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := store.Row{Values: make(store.Values, len(cols))}
		for i, col := range cols {
			if col == s.idColumn() {
				row.ID = vals[i]
				continue
			}
			row.Values[col] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) idColumn() string {
	if s.IDColumn != "" {
		return s.IDColumn
	}
	return "id"
}

func (s *Store) sequenceFormat() string {
	if s.SequenceFormat != "" {
		return s.SequenceFormat
	}
	return "%s_id_seq"
}

// tableRef quotes the table name, which may be schema qualified.
func tableRef(table string) (string, error) {
	if table == "" {
		return "", store.ErrInvalidTable
	}
	return pgx.Identifier(strings.Split(table, ".")).Sanitize(), nil
}

func quote(col string) string {
	return pgx.Identifier{col}.Sanitize()
}

func columnsOf(vs store.Values) []string {
	cols := make([]string, 0, len(vs))
	for col := range vs {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func inList(ids []store.ID) (string, []any) {
	var (
		next = makePrepareStatementPlaceholderGenerator()
		phs  = make([]string, 0, len(ids))
		args = make([]any, 0, len(ids))
	)
	for _, id := range ids {
		phs = append(phs, next())
		args = append(args, id)
	}
	return strings.Join(phs, ", "), args
}

func makePrepareStatementPlaceholderGenerator() func() string {
	var index = 0
	return func() string {
		index++
		return fmt.Sprintf(`$%d`, index)
	}
}
