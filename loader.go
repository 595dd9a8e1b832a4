package citydb

import (
	"compress/bzip2"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/rotisserie/eris"
)

// ErrMissingColumn is returned when the CSV header lacks a required column.
var ErrMissingColumn = eris.New("missing required column")

// Column names of the gazetteer CSV.
const (
	ColumnCity       = "city"
	ColumnRegion     = "admin_name"
	ColumnCountry    = "country"
	ColumnPopulation = "population"
	ColumnCapital    = "capital"
	ColumnLat        = "lat"
	ColumnLng        = "lng"
)

var requiredColumns = []string{
	ColumnCity, ColumnRegion, ColumnCountry, ColumnPopulation,
	ColumnCapital, ColumnLat, ColumnLng,
}

// zipEntryName is the CSV inside the gazetteer's distribution archive.
const zipEntryName = "worldcities.csv"

// ReadRows reads a gazetteer CSV with a header line and calls fn for each
// data row in file order. Columns other than the required ones are
// ignored; cells missing from short rows read as "". Reading stops at the
// first error returned by fn.
func ReadRows(r io.Reader, fn func(RawRow) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return eris.Wrap(ErrMissingColumn, "loader: empty input")
	}
	if err != nil {
		return eris.Wrap(err, "loader: read header")
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	idx := make([]int, len(requiredColumns))
	for i, name := range requiredColumns {
		pos, ok := cols[name]
		if !ok {
			return eris.Wrapf(ErrMissingColumn, "loader: column %q", name)
		}
		idx[i] = pos
	}

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "loader: read row")
		}
		line, _ := reader.FieldPos(0)

		cell := func(i int) string {
			if idx[i] < len(rec) {
				return rec[idx[i]]
			}
			return ""
		}
		row := RawRow{
			City:       cell(0),
			Region:     cell(1),
			Country:    cell(2),
			Population: cell(3),
			Capital:    cell(4),
			Lat:        cell(5),
			Lng:        cell(6),
			Line:       line,
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// OpenInput opens a gazetteer file, decompressing it according to its
// extension (.gz, .zst, .lz4, .bz2 or .zip). The returned cleanup func
// closes everything that was opened.
func OpenInput(path string) (io.Reader, func() error, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".zip" {
		return openZipEntry(path)
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "loader: open %s", path)
	}

	switch ext {
	case ".gz":
		zr, err := gzip.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, nil, eris.Wrapf(err, "loader: gzip %s", path)
		}
		return zr, closeAll(zr.Close, fh.Close), nil
	case ".zst":
		zr, err := zstd.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, nil, eris.Wrapf(err, "loader: zstd %s", path)
		}
		return zr, closeAll(func() error { zr.Close(); return nil }, fh.Close), nil
	case ".lz4":
		return lz4.NewReader(fh), fh.Close, nil
	case ".bz2":
		return bzip2.NewReader(fh), fh.Close, nil
	default:
		return fh, fh.Close, nil
	}
}

// openZipEntry opens the gazetteer CSV inside a zip archive: the entry
// named worldcities.csv if present, otherwise the first .csv entry.
func openZipEntry(path string) (io.Reader, func() error, error) {
	rz, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "loader: open zip %s", path)
	}

	var entry *zip.File
	for _, f := range rz.File {
		name := filepath.Base(f.Name)
		if name == zipEntryName {
			entry = f
			break
		}
		if entry == nil && strings.EqualFold(filepath.Ext(name), ".csv") {
			entry = f
		}
	}
	if entry == nil {
		rz.Close()
		return nil, nil, eris.Errorf("loader: no csv entry in %s", path)
	}

	fi, err := entry.Open()
	if err != nil {
		rz.Close()
		return nil, nil, eris.Wrapf(err, "loader: open %s in %s", entry.Name, path)
	}
	return fi, closeAll(fi.Close, rz.Close), nil
}

// closeAll runs every close func in order and returns the first error.
func closeAll(fns ...func() error) func() error {
	return func() error {
		var first error
		for _, fn := range fns {
			if err := fn(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}
