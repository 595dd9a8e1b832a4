package citydb

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	. "gopkg.in/check.v1"
)

type StoreSuite struct {
	dir string
}

var _ = Suite(&StoreSuite{})

func (s *StoreSuite) SetUpTest(c *C) {
	s.dir = c.MkDir()
}

func sampleDataset() *Dataset {
	return &Dataset{
		Cities: Cities{
			{Name: "Moscow", Region: 0, Country: 0, Radius: 15.3, Loc: Geo{Lat: 55.7558, Lon: 37.6178}},
			{Name: "Tver", Region: 1, Country: 0, Radius: 0.37, Loc: Geo{Lat: 56.8584, Lon: 35.9006}},
		},
		Regions:   []string{"Moskva", "Tverskaya Oblast'"},
		Countries: []string{"Russia"},
	}
}

func (s *StoreSuite) TestWriteThenLoad(c *C) {
	d := sampleDataset()
	c.Assert(d.WriteDir(s.dir, DefaultIndent), IsNil)

	got, err := LoadDir(s.dir)
	c.Assert(err, IsNil)
	c.Assert(got, DeepEquals, d)
}

func (s *StoreSuite) TestCityLayout(c *C) {
	c.Assert(sampleDataset().WriteDir(s.dir, 4), IsNil)

	raw, err := os.ReadFile(filepath.Join(s.dir, CitiesFile))
	c.Assert(err, IsNil)
	text := string(raw)

	want := `[
    {
        "Field0": "Moscow",
        "Field1": 0,
        "Field2": 0,
        "Field3": 15.3,
        "Field4": {
            "Field0": 55.7558,
            "Field1": 37.6178
        }
    },`
	c.Assert(strings.HasPrefix(text, want), Equals, true, Commentf("got:\n%s", text))
}

func (s *StoreSuite) TestCompactAndEmpty(c *C) {
	d := &Dataset{}
	c.Assert(d.WriteDir(s.dir, 0), IsNil)

	for _, name := range []string{CitiesFile, CountriesFile, RegionsFile} {
		raw, err := os.ReadFile(filepath.Join(s.dir, name))
		c.Assert(err, IsNil)
		c.Assert(string(raw), Equals, "[]\n")
	}
}

func (s *StoreSuite) TestNoHTMLEscaping(c *C) {
	d := &Dataset{Countries: []string{"Trinidad & Tobago"}}
	c.Assert(d.WriteDir(s.dir, 0), IsNil)

	raw, err := os.ReadFile(filepath.Join(s.dir, CountriesFile))
	c.Assert(err, IsNil)
	c.Assert(string(raw), Equals, "[\"Trinidad & Tobago\"]\n")
}

func (s *StoreSuite) TestFailedWriteLeavesNothing(c *C) {
	d := sampleDataset()
	d.Cities[1].Radius = math.NaN()

	c.Assert(d.WriteDir(s.dir, 4), NotNil)

	entries, err := os.ReadDir(s.dir)
	c.Assert(err, IsNil)
	c.Assert(entries, HasLen, 0)
}

func (s *StoreSuite) TestOverwriteReplacesTriple(c *C) {
	c.Assert(sampleDataset().WriteDir(s.dir, 4), IsNil)

	next := &Dataset{
		Cities:    Cities{{Name: "Lima", Radius: 9}},
		Regions:   []string{"Lima"},
		Countries: []string{"Peru"},
	}
	c.Assert(next.WriteDir(s.dir, 4), IsNil)

	got, err := LoadDir(s.dir)
	c.Assert(err, IsNil)
	c.Assert(got, DeepEquals, next)

	entries, err := os.ReadDir(s.dir)
	c.Assert(err, IsNil)
	c.Assert(entries, HasLen, 3)
}

func (s *StoreSuite) TestDirectoryInTheWayKeepsOldTriple(c *C) {
	c.Assert(sampleDataset().WriteDir(s.dir, 4), IsNil)
	before, err := os.ReadFile(filepath.Join(s.dir, CitiesFile))
	c.Assert(err, IsNil)

	blocker := filepath.Join(s.dir, CountriesFile)
	c.Assert(os.Remove(blocker), IsNil)
	c.Assert(os.Mkdir(blocker, 0755), IsNil)
	c.Assert(os.WriteFile(filepath.Join(blocker, "keep"), []byte("x"), 0644), IsNil)

	next := &Dataset{Cities: Cities{{Name: "Lima", Radius: 9}}, Regions: []string{"Lima"}, Countries: []string{"Peru"}}
	c.Assert(next.WriteDir(s.dir, 4), ErrorMatches, `(?s).*countries\.json is a directory.*`)

	after, err := os.ReadFile(filepath.Join(s.dir, CitiesFile))
	c.Assert(err, IsNil)
	c.Assert(string(after), Equals, string(before))

	entries, err := os.ReadDir(s.dir)
	c.Assert(err, IsNil)
	c.Assert(entries, HasLen, 3)
}

func (s *StoreSuite) TestCommitRollsBackOnRenameFailure(c *C) {
	for _, name := range []string{"a.json", "b.json"} {
		c.Assert(os.WriteFile(filepath.Join(s.dir, name), []byte("old "+name), 0644), IsNil)
	}
	tmpA := filepath.Join(s.dir, ".a.json.new")
	c.Assert(os.WriteFile(tmpA, []byte("new a.json"), 0644), IsNil)
	missing := filepath.Join(s.dir, ".b.json.new")

	err := commit(s.dir, []string{"a.json", "b.json"}, []string{tmpA, missing})
	c.Assert(err, ErrorMatches, `(?s).*rename b\.json.*`)

	for _, name := range []string{"a.json", "b.json"} {
		raw, err := os.ReadFile(filepath.Join(s.dir, name))
		c.Assert(err, IsNil)
		c.Assert(string(raw), Equals, "old "+name)
	}

	entries, err := os.ReadDir(s.dir)
	c.Assert(err, IsNil)
	c.Assert(entries, HasLen, 2)
}

func (s *StoreSuite) TestLoadDirMissingFile(c *C) {
	c.Assert(sampleDataset().WriteDir(s.dir, 4), IsNil)
	c.Assert(os.Remove(filepath.Join(s.dir, RegionsFile)), IsNil)

	_, err := LoadDir(s.dir)
	c.Assert(err, ErrorMatches, `(?s).*regions\.json.*`)
}

func (s *StoreSuite) TestLoadDirCorrupt(c *C) {
	c.Assert(sampleDataset().WriteDir(s.dir, 4), IsNil)
	c.Assert(os.WriteFile(filepath.Join(s.dir, CitiesFile), []byte("{not json"), 0644), IsNil)

	_, err := LoadDir(s.dir)
	c.Assert(err, NotNil)
}
