package csvio

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/dmitrijs2005/gophid/internal/dbx"
	"github.com/dmitrijs2005/gophid/internal/models"
	"github.com/dmitrijs2005/gophid/internal/repositories/accounts"

	_ "modernc.org/sqlite"
)

func TestDecode(t *testing.T) {
	utf16le, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("a,ö\n")
	require.NoError(t, err)
	utf16be, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().String("a,ö\n")
	require.NoError(t, err)
	latin1, err := charmap.ISO8859_1.NewEncoder().String("a,ö\n")
	require.NoError(t, err)

	tests := []struct {
		name    string
		in      []byte
		wantEnc string
	}{
		{"utf-8", []byte("a,ö\n"), "utf-8"},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, "a,ö\n"...), "utf-8-bom"},
		{"utf-16le", []byte(utf16le), "utf-16le"},
		{"utf-16be", []byte(utf16be), "utf-16be"},
		{"latin-1", []byte(latin1), "latin-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, enc, err := Decode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEnc, enc)
			assert.Equal(t, "a,ö\n", string(out))
		})
	}
}

func TestParse_PadsAndTruncates(t *testing.T) {
	tbl, err := Parse([]byte(" firstname ,LastName,DOB\nJane,Smith,1/1/1990\nJohn,Doe\nAl,Bo,1/2/1980,extra\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"firstname", "LastName", "DOB"}, tbl.Header)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, []string{"John", "Doe", ""}, tbl.Rows[1])
	assert.Equal(t, []string{"Al", "Bo", "1/2/1980"}, tbl.Rows[2])
	require.Len(t, tbl.Warnings, 2)
	assert.Equal(t, 3, tbl.Warnings[0].Row)
	assert.Contains(t, tbl.Warnings[0].Message, "padding")
	assert.Equal(t, 4, tbl.Warnings[1].Row)
	assert.Contains(t, tbl.Warnings[1].Message, "truncating")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil)
	require.Error(t, err)
}

func TestReadAccounts(t *testing.T) {
	in := "\"firstname\",\"LastName\",\"LawsonId\"\n\"Jane\",\"Smith\",\"B0000001\"\n\"John\",\"Doe\",\"\"\n"
	accs, tbl, err := ReadAccounts(strings.NewReader(in), AccountOptions{SourceID: "hr", SourceName: "HR", IDColumn: "LawsonId", NameColumn: "LastName"})
	require.NoError(t, err)
	require.Len(t, accs, 2)
	assert.Equal(t, "utf-8", tbl.Encoding)

	assert.Equal(t, "B0000001", accs[0].ID)
	assert.Equal(t, "B0000001", accs[0].NativeIdentity)
	assert.Equal(t, "Smith", accs[0].Name)
	assert.Equal(t, "HR", accs[0].SourceName)
	assert.Equal(t, "Jane", accs[0].Attr("firstname"))
	assert.Equal(t, "row-2", accs[1].ID)
}

func TestWrite(t *testing.T) {
	a := models.NewAccount("1", map[string]string{"firstname": "Jane", "LID": "0000001", "UVID": "jsmith"})
	b := models.NewAccount("2", map[string]string{"firstname": "Jo, Jr"})

	var buf bytes.Buffer
	err := Write(&buf, []string{"firstname", "LID"}, []string{"LID", "UVID"}, []*models.Account{a, b})
	require.NoError(t, err)
	assert.Equal(t, "firstname,LID,UVID\nJane,0000001,jsmith\n\"Jo, Jr\",,\n", buf.String())
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`
CREATE TABLE accounts (
  id TEXT PRIMARY KEY, source_id TEXT NOT NULL, native_identity TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '', lookup_key TEXT NOT NULL DEFAULT '',
  attributes TEXT NOT NULL DEFAULT '{}', created_at TEXT NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func sqliteAccounts(db dbx.DBTX) accounts.Repository { return accounts.NewSQLiteRepository(db) }

func TestImportHistory(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	in := "LID,Consolidated Search Field\n0000001,JANESMITH1/1/1990\n,NOID\n0000002,JOHNDOE2/2/1980\n"

	n, err := ImportHistory(ctx, db, sqliteAccounts, strings.NewReader(in),
		HistorySpec{SourceID: "lids", IDColumn: "LID", KeyColumn: "Consolidated Search Field"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := accounts.NewSQLiteRepository(db).ListBySource(ctx, "lids")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "JANESMITH1/1/1990", list[0].LookupKey)
	assert.Equal(t, "0000001", list[0].Attr("LID"))
	assert.Equal(t, "0000002", list[1].NativeIdentity)
}

func TestImportHistory_MissingColumn(t *testing.T) {
	db := setupDB(t)
	_, err := ImportHistory(context.Background(), db, sqliteAccounts, strings.NewReader("LID\n1\n"),
		HistorySpec{SourceID: "lids", IDColumn: "LID", KeyColumn: "Consolidated Search Field"})
	require.ErrorContains(t, err, "missing column")
}

type failingRepo struct{ accounts.Repository }

func (failingRepo) CreateAccount(context.Context, *models.Account, string) (*models.Account, error) {
	return nil, assert.AnError
}

func TestImportHistory_RollsBack(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	calls := 0
	repo := func(tx dbx.DBTX) accounts.Repository {
		calls++
		return failingRepo{accounts.NewSQLiteRepository(tx)}
	}
	_, err := ImportHistory(ctx, db, repo, strings.NewReader("LID,K\n1,A\n"), HistorySpec{SourceID: "s", IDColumn: "LID", KeyColumn: "K"})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)

	list, err := accounts.NewSQLiteRepository(db).ListBySource(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, list)
}
