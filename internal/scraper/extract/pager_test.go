package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name+".html"))
	require.NoError(t, err)
	return string(data)
}

func TestParseRows(t *testing.T) {
	html := loadFixture(t, "estado_page")

	rows, err := ParseRows(html, "table.table__container tbody tr")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "123456789", rows[0][0])
	assert.Equal(t, "$1.234.567", rows[0][6])
	assert.Equal(t, "JUAN PEREZ", rows[1][5])
	// Truncated rows still come back; the pagination loop filters them.
	assert.Len(t, rows[2], 2)
}

func TestParseRowsHeaderNotIncluded(t *testing.T) {
	html := loadFixture(t, "estado_page")

	rows, err := ParseRows(html, "table.table__container tbody tr")
	require.NoError(t, err)
	for _, row := range rows {
		assert.NotEqual(t, "N° Operación", row[0])
	}
}

func TestParseRowsNoMatches(t *testing.T) {
	rows, err := ParseRows("<html><body><p>sin movimientos</p></body></html>", "table tbody tr")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
