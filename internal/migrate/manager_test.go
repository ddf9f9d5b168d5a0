package migrate

import (
	"context"
	"io"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSplitStatements(t *testing.T) {
	src := `
-- schema
create table a (id int); -- trailing
insert into a values (1), (2);
insert into b (note) values ('semi;colon');
create function f() returns int as $$ begin return 1; end; $$ language plpgsql;
create function g() returns int as $body$ select 2; $body$ language sql;
`
	got := splitStatements(src)
	want := []string{
		"create table a (id int)",
		"insert into a values (1), (2)",
		"insert into b (note) values ('semi;colon')",
		"create function f() returns int as $$ begin return 1; end; $$ language plpgsql",
		"create function g() returns int as $body$ select 2; $body$ language sql",
	}
	assert.Equal(t, want, got)
}

func TestSplitStatementsKeepsPlaceholders(t *testing.T) {
	got := splitStatements(`insert into t values ($1, $2); select 1`)
	assert.Equal(t, []string{"insert into t values ($1, $2)", "select 1"}, got)
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"sql/0002_more.up.sql":   {Data: []byte("alter table a add column b int;")},
		"sql/0001_init.up.sql":   {Data: []byte("create table a (id int);")},
		"sql/0001_init.down.sql": {Data: []byte("drop table a;")},
	}

	mock.ExpectExec("select pg_advisory_lock").WithArgs(advisoryLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_seeds").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_init.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("alter table a add column b int").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into schema_migrations").
		WithArgs("0002_more.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec("select pg_advisory_unlock").WithArgs(advisoryLockKey).WillReturnResult(sqlmock.NewResult(0, 0))

	mgr := NewManager(db, fsys, "sql", "seeds", WithLogger(quiet()))
	applied, err := mgr.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_more.up.sql"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownWithoutHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_seeds").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}))

	mgr := NewManager(db, fstest.MapFS{}, "sql", "seeds", WithoutLock(), WithLogger(quiet()))
	_, err = mgr.Down(context.Background())
	require.ErrorIs(t, err, ErrNothingApplied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectSQLMissingDir(t *testing.T) {
	files, err := collectSQL(fstest.MapFS{}, "nope", ".sql")
	require.NoError(t, err)
	assert.Empty(t, files)
}
