package fetcher

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func buildXLSX(t *testing.T, sheets map[string][][]string) *xlsx.File {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	return f
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, buildXLSX(t, sheets).Save(path))
	return path
}

func xlsxBytes(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, buildXLSX(t, sheets).Write(&buf))
	return buf.Bytes()
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Все оплаты": {
			{"Почта", "Сумма"},
			{" a@x.ru ", "5000"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Почта", "Сумма"}, rows[0])
	assert.Equal(t, []string{"a@x.ru", "5000"}, rows[1])
}

func TestReadXLSX_SkipRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Header1", "Header2"},
			{"a", "b"},
			{"c", "d"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}}, rows)
}

func TestReadXLSXBinary_SheetName(t *testing.T) {
	data := xlsxBytes(t, map[string][][]string{
		"Каналы":  {{"Ключ", "Название"}, {"vk", "VK"}},
		"Расходы": {{"Дата"}},
	})

	rows, err := ReadXLSXBinary(data, XLSXOptions{SheetName: "Каналы"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Ключ", "Название"}, {"vk", "VK"}}, rows)
}

func TestReadXLSX_SheetNameNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"a"}},
	})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"a"}},
	})

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSXBinary_Garbage(t *testing.T) {
	_, err := ReadXLSXBinary([]byte("not a workbook"), XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open binary")
}
