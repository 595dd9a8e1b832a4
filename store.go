package citydb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// File names of the three database artifacts.
const (
	CitiesFile    = "cities.json"
	CountriesFile = "countries.json"
	RegionsFile   = "regions.json"
)

// DefaultIndent is the number of spaces used to indent the artifacts.
const DefaultIndent = 4

// WriteDir writes the three artifacts into dir, creating it if needed.
// Each file is encoded to a temporary sibling first and the set is renamed
// into place only once all three encoded. Files being replaced are moved
// aside and restored if any rename fails, so dir holds either the old
// triple or the new one. indent <= 0 writes compact JSON.
func (d *Dataset) WriteDir(dir string, indent int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return eris.Wrapf(err, "store: create %s", dir)
	}

	outputs := []struct {
		name string
		v    any
	}{
		{CitiesFile, nonNil(d.Cities)},
		{CountriesFile, nonNil(d.Countries)},
		{RegionsFile, nonNil(d.Regions)},
	}
	names := make([]string, len(outputs))
	for i, o := range outputs {
		names[i] = o.name
		if fi, err := os.Lstat(filepath.Join(dir, o.name)); err == nil && fi.IsDir() {
			return eris.Errorf("store: %s is a directory", filepath.Join(dir, o.name))
		}
	}

	temps := make([]string, 0, len(outputs))
	success := false
	defer func() {
		if !success {
			for _, t := range temps {
				os.Remove(t) // best-effort cleanup of partial files
			}
		}
	}()

	for _, o := range outputs {
		tmp, err := writeTemp(dir, o.name, o.v, indent)
		if tmp != "" {
			temps = append(temps, tmp)
		}
		if err != nil {
			return err
		}
	}

	if err := commit(dir, names, temps); err != nil {
		return err
	}
	success = true
	return nil
}

// replaced records one destination swapped in by commit.
type replaced struct {
	dst    string
	backup string // "" when dst did not exist before
}

// commit renames each temp onto dir/names[i]. An existing destination is
// renamed aside first; on any failure every destination already swapped
// is put back the way it was.
func commit(dir string, names, temps []string) error {
	var done []replaced
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			r := done[i]
			if r.backup != "" {
				os.Rename(r.backup, r.dst)
			} else {
				os.Remove(r.dst)
			}
		}
	}

	for i, name := range names {
		r := replaced{dst: filepath.Join(dir, name)}
		if _, err := os.Lstat(r.dst); err == nil {
			r.backup = temps[i] + ".prev"
			if err := os.Rename(r.dst, r.backup); err != nil {
				rollback()
				return eris.Wrapf(err, "store: move aside %s", name)
			}
		}
		if err := os.Rename(temps[i], r.dst); err != nil {
			if r.backup != "" {
				os.Rename(r.backup, r.dst)
			}
			rollback()
			return eris.Wrapf(err, "store: rename %s", name)
		}
		done = append(done, r)
	}

	for _, r := range done {
		if r.backup != "" {
			os.Remove(r.backup)
		}
	}
	return nil
}

func writeTemp(dir, name string, v any, indent int) (string, error) {
	out, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", eris.Wrapf(err, "store: create temp for %s", name)
	}
	tmp := out.Name()

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	if err := enc.Encode(v); err != nil {
		out.Close()
		return tmp, eris.Wrapf(err, "store: encode %s", name)
	}
	// Explicit close to catch flush errors.
	if err := out.Close(); err != nil {
		return tmp, eris.Wrapf(err, "store: close %s", name)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		return tmp, eris.Wrapf(err, "store: chmod %s", name)
	}
	return tmp, nil
}

// nonNil keeps empty tables encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// LoadDir reads the three artifacts written by WriteDir.
func LoadDir(dir string) (*Dataset, error) {
	d := &Dataset{}
	inputs := []struct {
		name string
		v    any
	}{
		{CitiesFile, &d.Cities},
		{CountriesFile, &d.Countries},
		{RegionsFile, &d.Regions},
	}
	for _, in := range inputs {
		if err := readJSON(filepath.Join(dir, in.name), in.v); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func readJSON(path string, v any) error {
	fh, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "store: open %s", path)
	}
	defer fh.Close()

	if err := json.NewDecoder(fh).Decode(v); err != nil {
		return eris.Wrapf(err, "store: decode %s", path)
	}
	return nil
}
