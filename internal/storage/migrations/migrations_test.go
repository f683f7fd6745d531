package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.Len(t, pg, 1)
	assert.Equal(t, "001_execution_outcomes.sql", pg[0].name)

	ch, err := load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Len(t, ch, 1)
	assert.Equal(t, "001_reserve_snapshots.sql", ch[0].name)

	stmts, err := statements(ch[0].sql)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS reserve_snapshots")
	assert.NotContains(t, stmts[0], "--")
}

func TestLoadOrdersAndSkipsEmpty(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/002_b.sql":  {Data: []byte("SELECT 2;")},
		"pg/001_a.sql":  {Data: []byte("SELECT 1;")},
		"pg/003_c.sql":  {Data: []byte("  \n")},
		"pg/README.txt": {Data: []byte("not sql")},
	}
	migs, err := load(fsys, "pg")
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, "001_a.sql", migs[0].name)
	assert.Equal(t, "002_b.sql", migs[1].name)
}

func TestStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"comments and blanks", "-- header\nCREATE TABLE a (x UInt8);\n\n  -- note\nCREATE TABLE b (y UInt8)\n;\n",
			[]string{"CREATE TABLE a (x UInt8)", "CREATE TABLE b (y UInt8)"}},
		{"semicolon in literal", "SELECT 'a;b'; SELECT 1", []string{"SELECT 'a;b'", "SELECT 1"}},
		{"escaped quote", "SELECT 'it''s; fine'", []string{"SELECT 'it''s; fine'"}},
		{"dashes in literal", "SELECT '--keep'", []string{"SELECT '--keep'"}},
		{"only comments", "-- nothing\n;\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := statements(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := statements("SELECT 'open")
	assert.Error(t, err)
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/arb")
	require.NoError(t, err)
	assert.Equal(t, "arb", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`arb`", quoteIdent("arb"))
	assert.Equal(t, "`a``b`", quoteIdent("a`b"))
}
