// Package fetcher reads the tabular exports the back office consumes: the
// payments ledger, the landing-page reference workbook and form lead CSVs.
// A location is either a local path or an http(s) URL of a published export.
package fetcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a sheet split into its header row and data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Downloader fetches a remote export.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// LoadTable reads the named sheet of the workbook or CSV at location. CSV
// files have a single sheet and ignore sheet. The first non-empty row is
// the header.
func LoadTable(ctx context.Context, d Downloader, location, sheet string) (Table, error) {
	data, err := read(ctx, d, location)
	if err != nil {
		return Table{}, err
	}

	var rows [][]string
	if isCSV(location) {
		rows, err = ReadCSV(ctx, bytes.NewReader(data), CSVOptions{TrimSpace: true})
	} else {
		rows, err = ReadXLSXBinary(data, XLSXOptions{SheetName: sheet})
	}
	if err != nil {
		return Table{}, eris.Wrapf(err, "fetcher: load %s", location)
	}
	return split(rows), nil
}

func read(ctx context.Context, d Downloader, location string) ([]byte, error) {
	if IsRemote(location) {
		if d == nil {
			return nil, eris.Errorf("fetcher: no downloader for %s", location)
		}
		return d.Download(ctx, location)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", location)
	}
	return data, nil
}

func isCSV(location string) bool {
	if IsRemote(location) {
		return strings.Contains(strings.ToLower(location), "format=csv") ||
			strings.HasSuffix(strings.ToLower(strings.SplitN(location, "?", 2)[0]), ".csv")
	}
	return strings.EqualFold(filepath.Ext(location), ".csv")
}

func split(rows [][]string) Table {
	for i, r := range rows {
		if blank(r) {
			continue
		}
		return Table{Header: r, Rows: rows[i+1:]}
	}
	return Table{}
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
