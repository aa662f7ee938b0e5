package source

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLoadCSV(t *testing.T) {
	p := filepath.Join(t.TempDir(), "left.csv")
	body := "\xEF\xBB\xBFCenter,CAReportName,Amount,Amount\n1,1234-5678 Revenue,\"1,200.50\",3\n2,Salaries\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	rs, err := Load(p, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Center", "CAReportName", "Amount", "Amount.1"}, rs.Columns)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, "1,200.50", rs.Rows[0]["Amount"])
	assert.Equal(t, "3", rs.Rows[0]["Amount.1"])
	assert.Equal(t, "", rs.Rows[1]["Amount"])
}

func TestUniqueHeaders(t *testing.T) {
	got := UniqueHeaders([]string{" a ", "a", "", "a", "a.1"})
	assert.Equal(t, []string{"a", "a.1", "Unnamed: 2", "a.2", "a.1.1"}, got)
}

func TestLoadXLSX(t *testing.T) {
	p := filepath.Join(t.TempDir(), "left.xlsx")
	f := excelize.NewFile()
	_, err := f.NewSheet("Ledger")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Ledger", "A1", &[]any{"Account", "Amount"}))
	require.NoError(t, f.SetSheetRow("Ledger", "A2", &[]any{"6101-6001", 42}))
	require.NoError(t, f.SetSheetRow("Ledger", "A4", &[]any{"Salaries", "(10)"}))
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	names, err := SheetNames(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Ledger"}, names)

	rs, err := LoadXLSX(p, "Ledger")
	require.NoError(t, err)
	assert.Equal(t, []string{"Account", "Amount"}, rs.Columns)
	require.Equal(t, 2, rs.Len(), "blank row 3 is dropped")
	assert.Equal(t, "42", rs.Rows[0]["Amount"])
	assert.Equal(t, "(10)", rs.Rows[1]["Amount"])

	rs, err = Load(p, "")
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len(), "first sheet is empty")
}

func TestQuerySQLite(t *testing.T) {
	p := filepath.Join(t.TempDir(), "right.db")
	db, err := sql.Open("sqlite", p)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE gl (center TEXT, account TEXT, amount REAL, qty INTEGER, note BLOB)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO gl VALUES ('1', '1234-5678', -100.5, 3, x'6869'), ('2', 'Salaries', NULL, 0, NULL)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ctx := context.Background()
	rs, err := Query(ctx, "sqlite3", p, "SELECT center, account, amount, qty, note FROM gl ORDER BY center")
	require.NoError(t, err)
	assert.Equal(t, []string{"center", "account", "amount", "qty", "note"}, rs.Columns)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, -100.5, rs.Rows[0]["amount"])
	assert.Equal(t, int64(3), rs.Rows[0]["qty"])
	assert.Equal(t, "hi", rs.Rows[0]["note"])
	assert.Nil(t, rs.Rows[1]["amount"])

	whole, err := Load(p, "")
	require.NoError(t, err)
	assert.Equal(t, 2, whole.Len())

	_, err = Query(ctx, "mysql", "user:pw@tcp(127.0.0.1:1)/x", "")
	assert.Error(t, err)
}

func TestUnsupported(t *testing.T) {
	_, err := Load("ledger.pdf", "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = DriverName("oracle")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	d, err := DriverName("Postgres")
	require.NoError(t, err)
	assert.Equal(t, "pgx", d)
}
