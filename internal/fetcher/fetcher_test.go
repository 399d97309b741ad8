package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://docs.example.com/export?format=xlsx"))
	assert.True(t, IsRemote("HTTP://host/x.csv"))
	assert.False(t, IsRemote("/data/ledger.xlsx"))
	assert.False(t, IsRemote("ledger.csv"))
}

func TestLoadTable_LocalXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Лендинги": {
			{"", ""},
			{"Посадочная", "Тип трафика"},
			{"https://ai.example.com/gpt", "платный трафик"},
		},
	})

	tbl, err := LoadTable(context.Background(), nil, path, "Лендинги")
	require.NoError(t, err)
	assert.Equal(t, []string{"Посадочная", "Тип трафика"}, tbl.Header)
	assert.Equal(t, [][]string{{"https://ai.example.com/gpt", "платный трафик"}}, tbl.Rows)
}

func TestLoadTable_LocalCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte("email;name\n a@x.ru ;Ann\n"), 0o600))

	tbl, err := LoadTable(context.Background(), nil, path, "ignored")
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "name"}, tbl.Header)
	assert.Equal(t, [][]string{{"a@x.ru", "Ann"}}, tbl.Rows)
}

func TestLoadTable_RemoteXLSX(t *testing.T) {
	data := xlsxBytes(t, map[string][][]string{"Каналы": {{"Ключ", "Название"}, {"vk", "VK"}}})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	tbl, err := LoadTable(context.Background(), newTestFetcher(), srv.URL+"/export?format=xlsx", "Каналы")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ключ", "Название"}, tbl.Header)
	assert.Len(t, tbl.Rows, 1)
}

func TestLoadTable_RemoteCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	defer srv.Close()

	tbl, err := LoadTable(context.Background(), newTestFetcher(), srv.URL+"/export?format=csv", "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}}, tbl.Rows)
}

func TestLoadTable_RemoteWithoutDownloader(t *testing.T) {
	_, err := LoadTable(context.Background(), nil, "https://host/x.xlsx", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no downloader")
}

func TestLoadTable_MissingFile(t *testing.T) {
	_, err := LoadTable(context.Background(), nil, filepath.Join(t.TempDir(), "nope.xlsx"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher: read")
}

func TestLoadTable_EmptyCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))

	tbl, err := LoadTable(context.Background(), nil, path, "")
	require.NoError(t, err)
	assert.Empty(t, tbl.Header)
	assert.Empty(t, tbl.Rows)
}
